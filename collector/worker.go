// The MIT License (MIT)

// Copyright (c) 2017-2020 Uber Technologies Inc.

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package collector

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/multierr"

	"github.com/uber/weir/common/clock"
	"github.com/uber/weir/common/config"
	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/common/metrics"
	"github.com/uber/weir/kv"
	"github.com/uber/weir/types"
)

const (
	dequeueTimeout   = 100 * time.Microsecond
	statsLogInterval = 30 * time.Second
)

// eventPrefixes are checked in this order against each datagram; the
// prefix may follow a syslog header, so the payload is scanned rather
// than prefix-matched.
var eventPrefixes = []string{
	types.EventReq + types.EventDelimiter,
	types.EventReqEnd + types.EventDelimiter,
	types.EventDataXfer + types.EventDelimiter,
	types.EventActiveReqs + types.EventDelimiter,
}

type (
	// worker owns one ingress socket, one bounded FIFO, one consumer
	// goroutine and one KV connection. Nothing is shared between
	// workers.
	worker struct {
		id           int
		conn         *net.UDPConn
		bufferSize   int
		queue        chan string
		store        *kv.Store
		processor    *processor
		clock        clock.TimeSource
		logger       log.Logger
		accessLogger log.Logger
		scope        tally.Scope

		checkConnInterval time.Duration
	}
)

func newWorker(
	id int,
	cfg *config.Collector,
	timeSource clock.TimeSource,
	logger log.Logger,
	accessLogger log.Logger,
	scope tally.Scope,
) (*worker, error) {
	workerLogger := logger.WithTags(tag.WorkerID(id))
	conn, bufferSize, err := newUDPSocket(cfg.Port, workerLogger)
	if err != nil {
		return nil, err
	}
	store, err := kv.NewStore(cfg.RedisServer, workerLogger, scope)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	checkConnInterval := time.Duration(cfg.RedisCheckConnIntervalSec) * time.Second
	return &worker{
		id:           id,
		conn:         conn,
		bufferSize:   bufferSize,
		queue:        make(chan string, cfg.MsgQueueSize),
		store:        store,
		clock:        timeSource,
		logger:       workerLogger,
		accessLogger: accessLogger,
		scope:        scope,
		processor: newProcessor(
			cfg.Endpoint,
			time.Duration(cfg.RedisQosTTLSec)*time.Second,
			time.Duration(cfg.RedisQosConnTTLSec)*time.Second,
			cfg.MetricsBatchCount,
			time.Duration(cfg.MetricsBatchPeriodMsec)*time.Millisecond,
			checkConnInterval,
			store,
			timeSource,
			workerLogger,
			scope,
		),
		checkConnInterval: checkConnInterval,
	}, nil
}

// runProducer receives datagrams and classifies them: known event
// prefixes are queued for the consumer, JSON lines go to the access
// log, anything else is an ordinary proxy log line.
func (w *worker) runProducer(ctx context.Context) error {
	buffer := make([]byte, w.bufferSize)
	var totalMsgs, lastLoggedMsgs int64
	lastStats := w.clock.Now()

	for ctx.Err() == nil {
		n, err := w.conn.Read(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("error receiving datagram", tag.Error(err))
			return err
		}
		if n == 0 {
			continue
		}
		w.scope.Counter(metrics.DatagramsReceived).Inc(1)

		// A read that fills the buffer means the datagram was
		// truncated; the buffer equals the socket buffer so this is
		// an oversized message, not a short read.
		if n == w.bufferSize {
			w.scope.Counter(metrics.DatagramsOversized).Inc(1)
			w.logger.Error("message is too big", tag.Counter(n))
			continue
		}

		payload := strings.TrimRight(string(buffer[:n]), "\n")
		if payload == "" {
			continue
		}
		if pos := findEventStart(payload); pos >= 0 {
			select {
			case w.queue <- payload[pos:]:
			default:
				w.scope.Counter(metrics.QueueFullDrops).Inc(1)
				w.logger.Error("queue is full, dropping message", tag.Payload(payload[pos:]))
			}
		} else if payload[0] == '{' {
			w.accessLogger.Info(payload)
		} else {
			w.logger.Info("proxy logged message", tag.Payload(payload))
		}

		totalMsgs++
		if now := w.clock.Now(); now.Sub(lastStats) > statsLogInterval {
			w.logger.Info("producer stats",
				tag.Counter(len(w.queue)),
				tag.Value(totalMsgs-lastLoggedMsgs))
			lastLoggedMsgs = totalMsgs
			lastStats = now
		}
	}
	return nil
}

func findEventStart(payload string) int {
	for _, prefix := range eventPrefixes {
		if pos := strings.Index(payload, prefix); pos >= 0 {
			return pos
		}
	}
	return -1
}

// runConsumer drains the FIFO, aggregates events and flushes batches
// to the KV store.
func (w *worker) runConsumer(ctx context.Context) error {
	lastStats := w.clock.Now()
	for {
		select {
		case <-ctx.Done():
			w.processor.maybeFlush()
			return nil
		case msg := <-w.queue:
			w.processor.process(msg)
		default:
			w.clock.Sleep(dequeueTimeout)
		}
		w.processor.maybeFlush()

		if now := w.clock.Now(); now.Sub(lastStats) > statsLogInterval {
			w.logger.Info("consumer stats", tag.Counter(len(w.queue)))
			lastStats = now
		}
	}
}

// runConnChecker periodically re-resolves the KV host so the worker
// follows a moved server.
func (w *worker) runConnChecker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(w.checkConnInterval):
			w.store.CheckConn()
		}
	}
}

func (w *worker) close() error {
	return multierr.Append(w.conn.Close(), w.store.Close())
}
