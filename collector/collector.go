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

// Package collector implements the per-edge event collector: it drains
// edge event datagrams, aggregates them with second resolution and
// applies them to the shared KV store as expiring updates.
package collector

import (
	"context"

	"github.com/uber-go/tally"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/uber/weir/common/clock"
	"github.com/uber/weir/common/config"
	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
)

// Service runs the configured number of independent workers, each
// owning a port-reuse socket, a FIFO, a consumer and a KV connection.
type Service struct {
	cfg          *config.Collector
	logger       log.Logger
	accessLogger log.Logger
	scope        tally.Scope
	clock        clock.TimeSource

	cancel  context.CancelFunc
	group   *errgroup.Group
	workers []*worker
}

// NewService builds a collector service from its configuration.
func NewService(
	cfg *config.Collector,
	logger log.Logger,
	accessLogger log.Logger,
	scope tally.Scope,
) *Service {
	return &Service{
		cfg:          cfg,
		logger:       logger,
		accessLogger: accessLogger,
		scope:        scope,
		clock:        clock.NewRealTimeSource(),
	}
}

// Start launches all workers. It returns once sockets are bound.
func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < s.cfg.NumWorkers; i++ {
		w, err := newWorker(i, s.cfg, s.clock, s.logger, s.accessLogger, s.scope)
		if err != nil {
			cancel()
			return err
		}
		s.workers = append(s.workers, w)
		worker := w
		s.group.Go(func() error { return worker.runProducer(ctx) })
		s.group.Go(func() error { return worker.runConsumer(ctx) })
		s.group.Go(func() error { return worker.runConnChecker(ctx) })
		s.logger.Info("collector worker started", tag.WorkerID(i), tag.Port(s.cfg.Port))
	}
	return nil
}

// Stop shuts all workers down and waits for them to drain.
func (s *Service) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	for _, w := range s.workers {
		err = multierr.Append(err, w.close())
	}
	if s.group != nil {
		err = multierr.Append(err, s.group.Wait())
	}
	return err
}
