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

// Package polygen implements the cluster policy generator: it reads
// the aggregated usage out of the shared KV store at a fixed cadence,
// compares it with the configured per-tier limits, and broadcasts
// violations and bandwidth limit shares to every edge enforcer over
// the policy channel.
package polygen

import (
	"context"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/uber/weir/common/clock"
	"github.com/uber/weir/common/config"
	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/kv"
	"github.com/uber/weir/types"
)

// demandSleepMultiplier paces the limit-share loop relative to the
// violation loops: a share stays valid until overwritten, unlike an
// instantaneous stop-sending instruction, so it needs far fewer
// updates.
const demandSleepMultiplier = 100

type (
	// Generator is the single per-cluster policy generator. All state
	// is recomputed from the KV store every tick, so a missed tick
	// needs no reconciliation.
	Generator struct {
		cfg            *config.Polygen
		limitsPath     string
		reloadFIFOPath string

		limits       atomic.Value // *types.LimitsConfig
		shouldReload atomic.Bool

		store      *kv.Store
		server     *ChannelServer
		violations *violationState
		unknown    *unknownUsers

		// blockedUsers maps a blocked user to when the block message
		// was last sent, driving the re-emission heartbeat.
		blockedUsers map[string]time.Time

		clock  clock.TimeSource
		logger log.Logger
		scope  tally.Scope

		cancel context.CancelFunc
		group  *errgroup.Group
	}
)

// New builds a generator: it connects the KV store, binds the policy
// channel listener, loads the limits file and prepares the reload
// FIFO.
func New(cfg *config.Polygen, logger log.Logger, scope tally.Scope) (*Generator, error) {
	store, err := kv.NewStore(cfg.RedisServer, logger, scope)
	if err != nil {
		return nil, err
	}
	server, err := NewChannelServer(cfg.ListenPort, cfg.PolicyMsgQueueSize, logger, scope)
	if err != nil {
		return nil, err
	}
	limitsPath, err := types.CacheLimitsPath(cfg.Zone)
	if err != nil {
		return nil, err
	}
	fifoPath := ReloadFIFOPath(cfg.Zone)
	if err := ensureFIFO(fifoPath); err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:            cfg,
		limitsPath:     limitsPath,
		reloadFIFOPath: fifoPath,
		store:          store,
		server:         server,
		violations:     newViolationState(),
		unknown:        newUnknownUsers(time.Duration(cfg.UnknownUsersReportSec) * time.Second),
		blockedUsers:   make(map[string]time.Time),
		clock:          clock.NewRealTimeSource(),
		logger:         logger,
		scope:          scope,
	}
	g.reloadLimits()
	return g, nil
}

// Start launches the scan loops, the channel server and the reload
// monitor.
func (g *Generator) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.group, ctx = errgroup.WithContext(ctx)

	g.group.Go(func() error { return g.server.Run(ctx) })
	g.group.Go(func() error { return g.runVerbLoop(ctx) })
	g.group.Go(func() error { return g.runConnLoop(ctx) })
	g.group.Go(func() error { return g.runDemandLoop(ctx) })
	g.group.Go(func() error { return g.runReloadMonitor(ctx) })
	g.logger.Info("policy generator started", tag.Port(g.cfg.ListenPort))
	return nil
}

// Stop shuts the generator down.
func (g *Generator) Stop() error {
	if g.cancel != nil {
		g.cancel()
	}
	if g.group != nil {
		return g.group.Wait()
	}
	return nil
}

func (g *Generator) limitsSnapshot() *types.LimitsConfig {
	return g.limits.Load().(*types.LimitsConfig)
}

func (g *Generator) reloadLimits() {
	g.shouldReload.Store(false)
	limits, err := types.LoadLimitsFile(g.limitsPath)
	if err != nil {
		g.logger.Error("failed to load limits file", tag.Error(err))
		if g.limits.Load() == nil {
			g.limits.Store(&types.LimitsConfig{})
		}
		return
	}
	g.limits.Store(limits)
	g.logger.Info("limits loaded", tag.Value(g.limitsPath))
}

// limitFor resolves one category limit, recording users that fell
// through to defaults.
func (g *Generator) limitFor(category string, user string) float64 {
	limit, known := g.limitsSnapshot().LimitFor(category, user)
	if !known {
		g.unknown.Add(user)
	}
	return limit
}

func (g *Generator) sleepTime() time.Duration {
	return time.Duration(g.cfg.SleepTimeMsec) * time.Millisecond
}

func (g *Generator) tickHousekeeping() {
	if g.shouldReload.Load() {
		g.reloadLimits()
	}
	g.unknown.Report(g.clock.Now(), g.logger)
}
