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

package polygen

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/uber-go/tally"

	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/common/metrics"
)

type (
	// ChannelServer owns the policy channel's listening side. Every
	// edge enforcer keeps one long-lived connection; policy blocks
	// are broadcast to all of them through bounded per-connection
	// queues, so one slow edge cannot stall the rest.
	ChannelServer struct {
		listener  net.Listener
		queueSize int
		logger    log.Logger
		scope     tally.Scope

		mu    sync.Mutex
		conns map[*subscriber]struct{}
	}

	subscriber struct {
		conn  net.Conn
		queue chan string
	}
)

// NewChannelServer binds the policy channel listener.
func NewChannelServer(port int, queueSize int, logger log.Logger, scope tally.Scope) (*ChannelServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind policy channel port %d: %w", port, err)
	}
	return &ChannelServer{
		listener:  listener,
		queueSize: queueSize,
		logger:    logger,
		scope:     scope,
		conns:     make(map[*subscriber]struct{}),
	}, nil
}

// Addr returns the bound listener address.
func (s *ChannelServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts edge connections until the context is cancelled.
func (s *ChannelServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.logger.Info("edge connected to policy channel", tag.Address(conn.RemoteAddr().String()))
		sub := &subscriber{conn: conn, queue: make(chan string, s.queueSize)}
		s.mu.Lock()
		s.conns[sub] = struct{}{}
		s.mu.Unlock()
		go s.writeLoop(sub)
		go s.readLoop(sub)
	}
}

func (s *ChannelServer) writeLoop(sub *subscriber) {
	for block := range sub.queue {
		if _, err := io.WriteString(sub.conn, block); err != nil {
			s.logger.Warn("policy channel write failed", tag.Error(err))
			s.drop(sub)
			return
		}
	}
}

// readLoop exists only to observe the peer closing the connection;
// edges never send anything upstream.
func (s *ChannelServer) readLoop(sub *subscriber) {
	_, _ = io.Copy(io.Discard, sub.conn)
	s.drop(sub)
}

func (s *ChannelServer) drop(sub *subscriber) {
	s.mu.Lock()
	_, present := s.conns[sub]
	delete(s.conns, sub)
	s.mu.Unlock()
	if present {
		close(sub.queue)
		_ = sub.conn.Close()
	}
}

// Broadcast enqueues one framed block to every connected edge. A full
// queue drops the block for that edge with a log; the next tick
// recomputes everything from scratch anyway.
func (s *ChannelServer) Broadcast(block string) {
	if block == "" {
		return
	}
	// Enqueue under the lock so a concurrent drop cannot close a
	// queue mid-send; sends never block (queues are bounded).
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.conns {
		select {
		case sub.queue <- block:
		default:
			s.scope.Counter(metrics.PolicyMessagesDropped).Inc(1)
			s.logger.Error("policy message queue full, dropping block",
				tag.Address(sub.conn.RemoteAddr().String()))
		}
	}
}
