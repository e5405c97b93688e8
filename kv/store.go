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

// Package kv wraps the shared Redis store holding the fleet-wide
// aggregated usage counters. Keys self-evict on short TTLs, so no
// transactional semantics are needed across keys.
package kv

import (
	"fmt"
	"net"
	"time"

	"github.com/go-redis/redis"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"

	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/common/metrics"
)

type (
	// Store is one connection to the shared KV service. A Store must
	// only be used from a single goroutine, matching the
	// one-connection-per-worker model; CheckConn is the exception and
	// is safe to call from a health-check goroutine.
	Store struct {
		host   string
		port   string
		logger log.Logger
		scope  tally.Scope

		client      atomic.Value // *redis.Client
		connectedIP atomic.String
		healthy     atomic.Bool
		failures    atomic.Int64
	}

	// Pipeline is the subset of redis pipelining the collector needs;
	// it allows a fake in tests.
	Pipeline interface {
		HIncrBy(key string, field string, incr int64) *redis.IntCmd
		Expire(key string, expiration time.Duration) *redis.BoolCmd
		Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd
		Exec() ([]redis.Cmder, error)
	}
)

// NewStore parses a host:port address and prepares a client. The
// connection itself is established lazily; call TryConnect to probe.
func NewStore(addr string, logger log.Logger, scope tally.Scope) (*Store, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("unparseable kv server address %q: %w", addr, err)
	}
	s := &Store{
		host:   host,
		port:   port,
		logger: logger,
		scope:  scope,
	}
	s.resetClient()
	return s, nil
}

func (s *Store) resetClient() {
	ip := s.host
	if ips, err := net.LookupHost(s.host); err == nil && len(ips) > 0 {
		ip = ips[0]
	}
	if old, ok := s.client.Load().(*redis.Client); ok && old != nil {
		_ = old.Close()
	}
	s.connectedIP.Store(ip)
	s.client.Store(redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort(ip, s.port),
	}))
}

func (s *Store) redisClient() *redis.Client {
	return s.client.Load().(*redis.Client)
}

// Healthy reports whether the last probe or command succeeded.
func (s *Store) Healthy() bool {
	return s.healthy.Load()
}

// Failures returns the count of command errors observed so far.
func (s *Store) Failures() int64 {
	return s.failures.Load()
}

// TryConnect probes the server and updates health state.
func (s *Store) TryConnect() error {
	err := s.redisClient().Ping().Err()
	s.markResult(err)
	return err
}

func (s *Store) markResult(err error) {
	if err == nil {
		s.healthy.Store(true)
		return
	}
	s.failures.Inc()
	s.scope.Counter(metrics.KVCommandErrors).Inc(1)
	s.healthy.Store(false)
}

// CheckConn re-resolves the configured host name; when the address has
// moved, the current connection is dropped so the next command dials
// the new address.
func (s *Store) CheckConn() {
	ips, err := net.LookupHost(s.host)
	if err != nil {
		s.logger.Warn("kv host lookup failed", tag.Address(s.host), tag.Error(err))
		return
	}
	if len(ips) == 0 || ips[0] == s.connectedIP.Load() {
		return
	}
	s.logger.Info("kv server address changed, reconnecting",
		tag.Address(ips[0]))
	s.scope.Counter(metrics.KVReconnects).Inc(1)
	s.resetClient()
	s.healthy.Store(false)
}

// NewPipeline starts a command pipeline.
func (s *Store) NewPipeline() Pipeline {
	return s.redisClient().Pipeline()
}

// ExecPipeline runs a pipeline and records the outcome.
func (s *Store) ExecPipeline(p Pipeline) error {
	_, err := p.Exec()
	if err != nil && err != redis.Nil {
		s.markResult(err)
		return err
	}
	s.markResult(nil)
	return nil
}

// ScanOnce runs one SCAN step over keys matching pattern.
func (s *Store) ScanOnce(cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, next, err := s.redisClient().Scan(cursor, pattern, count).Result()
	s.markResult(err)
	return keys, next, err
}

// ScanAll iterates SCAN to completion, deduplicating keys (SCAN may
// return duplicates).
func (s *Store) ScanAll(pattern string, count int64) ([]string, error) {
	var cursor uint64
	seen := make(map[string]struct{})
	for {
		keys, next, err := s.ScanOnce(cursor, pattern, count)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out, nil
}

// MGet fetches multiple string keys; missing keys yield nil entries.
func (s *Store) MGet(keys []string) ([]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.redisClient().MGet(keys...).Result()
	s.markResult(err)
	return vals, err
}

// HGetAll fetches all fields of a hash key.
func (s *Store) HGetAll(key string) (map[string]string, error) {
	m, err := s.redisClient().HGetAll(key).Result()
	s.markResult(err)
	return m, err
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.redisClient().Close()
}
