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

// Package enforcer implements the edge side of the weir QoS loop: it
// admits or rejects requests against locally-held violation tables,
// shapes every forwarded byte against the user's bandwidth share, and
// emits usage events to the local collector.
package enforcer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uber-go/tally"

	"github.com/uber/weir/common/clock"
	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/types"
)

// User-limit table GC: entries are swept at most once per interval,
// and only once a user has been quiet for the minimum window, so a
// user making serial requests keeps accumulating against the same
// counter.
const (
	cleanupInterval        = 30 * time.Second
	cleanupMinSinceLastReq = 5 * time.Second
	defaultRefreshInterval = 10 * time.Second
)

type (
	// Config carries the per-instance enforcer settings.
	Config struct {
		InstanceID string
		// RefreshInterval paces the periodic active_reqs emission
		// refreshing the KV-store TTLs.
		RefreshInterval time.Duration
		// UnknownUserLimit applies before a limit share has been
		// received for a user.
		UnknownUserLimit uint32
		// MinimumLimit floors any received share.
		MinimumLimit uint32
	}

	// Enforcer is the per-proxy filter state: the user limit table,
	// the violation and throttle tables, and the event emitter.
	Enforcer struct {
		cfg     Config
		clock   clock.TimeSource
		logger  log.Logger
		scope   tally.Scope
		emitter Emitter

		// mu guards userLimits, the per-entry active counts and
		// nextCleanup. Payload-path reads take the read lock.
		mu          sync.RWMutex
		userLimits  map[string]*userLimit
		nextCleanup time.Time

		rateViolations *rateViolationTable
		reqsBlock      *reqsBlockTable
		throttleUp     *throttleTable
		throttleDown   *throttleTable
		endpoints      *endpointTable
	}

	// LimitSnapshot is one user's state for the admin surface.
	LimitSnapshot struct {
		UserKey        string
		LastRequestEnd time.Time
		Upload         DirectionSnapshot
		Download       DirectionSnapshot
	}

	// DirectionSnapshot is one direction's state for the admin
	// surface.
	DirectionSnapshot struct {
		LimitReceived  bool
		BytesPerSecond uint32
		LimitTimestamp int64
		ActiveRequests int
	}
)

// New builds an enforcer. The caller owns running the background
// loops (RunPolicyChannel, RunActiveReqsRefresh, RunThrottleSweeper).
func New(cfg Config, emitter Emitter, timeSource clock.TimeSource, logger log.Logger, scope tally.Scope) *Enforcer {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	return &Enforcer{
		cfg:            cfg,
		clock:          timeSource,
		logger:         logger,
		scope:          scope,
		emitter:        emitter,
		userLimits:     make(map[string]*userLimit),
		nextCleanup:    timeSource.Now().Add(cleanupInterval),
		rateViolations: newRateViolationTable(),
		reqsBlock:      newReqsBlockTable(),
		throttleUp:     newThrottleTable(),
		throttleDown:   newThrottleTable(),
		endpoints:      newEndpointTable(),
	}
}

var (
	globalMu       sync.Mutex
	globalEnforcer *Enforcer
)

// Init installs the process-wide enforcer handle used by the admin
// surface.
func Init(e *Enforcer) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalEnforcer != nil {
		return fmt.Errorf("enforcer already initialized")
	}
	globalEnforcer = e
	return nil
}

// Shutdown clears the process-wide handle.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalEnforcer = nil
}

// Global returns the process-wide enforcer, or nil before Init.
func Global() *Enforcer {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalEnforcer
}

// InstanceID returns this enforcer's fleet identity.
func (e *Enforcer) InstanceID() string {
	return e.cfg.InstanceID
}

func (e *Enforcer) throttleTable(dir types.Direction) *throttleTable {
	if dir == types.DirectionUp {
		return e.throttleUp
	}
	return e.throttleDown
}

// Admit decides whether a request from userKey using verb (and
// optionally an operation class) may proceed. The returned reason is
// "requests" for an active block and "rate" for a per-second
// violation.
func (e *Enforcer) Admit(userKey string, verb string, opClass types.OperationClass) (bool, string) {
	now := e.clock.Now()
	if e.reqsBlock.IsBlocked(userKey, now) {
		return false, "requests"
	}
	nowSec := now.Unix()
	if e.rateViolations.IsViolating(types.UserCategory(verb), userKey, nowSec) {
		return false, "rate"
	}
	if opClass != types.OpClassNone &&
		e.rateViolations.IsViolating(types.UserCategory(string(opClass)), userKey, nowSec) {
		return false, "rate"
	}
	return true, ""
}

// getOrCreateLimitLocked requires the write lock.
func (e *Enforcer) getOrCreateLimitLocked(userKey string) *userLimit {
	if limit, ok := e.userLimits[userKey]; ok {
		return limit
	}
	limit := &userLimit{}
	e.userLimits[userKey] = limit
	return limit
}

// maybeCleanupLocked sweeps quiescent users. Requires the write lock.
func (e *Enforcer) maybeCleanupLocked(now time.Time) {
	if now.Before(e.nextCleanup) {
		return
	}
	for userKey, limit := range e.userLimits {
		if limit.download.activeRequests < 0 || limit.upload.activeRequests < 0 {
			e.logger.Warn("negative active request count",
				tag.UserKey(userKey),
				tag.Counter(limit.download.activeRequests+limit.upload.activeRequests))
		}
		if limit.download.activeRequests > 0 || limit.upload.activeRequests > 0 {
			continue
		}
		lastEnd := time.Unix(0, limit.lastRequestEnd)
		if now.Sub(lastEnd) >= cleanupMinSinceLastReq {
			delete(e.userLimits, userKey)
		}
	}
	e.nextCleanup = now.Add(cleanupInterval)
}

// RunActiveReqsRefresh periodically re-emits active-request counts so
// the KV store's TTLs are refreshed while requests are in flight, and
// instances that die are naturally forgotten.
func (e *Enforcer) RunActiveReqsRefresh(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.clock.After(e.cfg.RefreshInterval):
		}
		type refresh struct {
			user  string
			dir   types.Direction
			count int
		}
		var refreshes []refresh
		e.mu.RLock()
		for userKey, limit := range e.userLimits {
			if limit.download.activeRequests > 0 {
				refreshes = append(refreshes, refresh{userKey, types.DirectionDown, limit.download.activeRequests})
			}
			if limit.upload.activeRequests > 0 {
				refreshes = append(refreshes, refresh{userKey, types.DirectionUp, limit.upload.activeRequests})
			}
		}
		e.mu.RUnlock()
		for _, r := range refreshes {
			e.emitter.EmitActiveReqs(e.cfg.InstanceID, r.user, r.dir, r.count)
		}
	}
}

// RunThrottleSweeper drops slowdown entries whose policies went stale
// long ago.
func (e *Enforcer) RunThrottleSweeper(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.clock.After(throttleSweepInterval):
			nowSec := e.clock.Now().Unix()
			e.throttleUp.Sweep(nowSec)
			e.throttleDown.Sweep(nowSec)
		}
	}
}

// DumpLimits snapshots the limit table for the admin surface.
func (e *Enforcer) DumpLimits() []LimitSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]LimitSnapshot, 0, len(e.userLimits))
	for userKey, limit := range e.userLimits {
		out = append(out, LimitSnapshot{
			UserKey:        userKey,
			LastRequestEnd: time.Unix(0, limit.lastRequestEnd),
			Upload:         snapshotDirection(&limit.upload),
			Download:       snapshotDirection(&limit.download),
		})
	}
	return out
}

func snapshotDirection(d *directionLimit) DirectionSnapshot {
	return DirectionSnapshot{
		LimitReceived:  d.limitReceived,
		BytesPerSecond: d.bytesPerSecond,
		LimitTimestamp: d.limitTimestamp,
		ActiveRequests: d.activeRequests,
	}
}
