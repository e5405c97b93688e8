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
	"strconv"
	"time"

	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/types"
)

// runConnLoop sums each user's active requests across all instances
// every tick and drives the reqs_block / reqs_unblock state machine.
func (g *Generator) runConnLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.clock.After(g.sleepTime()):
		}
		g.checkConnViolations()
	}
}

func (g *Generator) checkConnViolations() {
	counts, err := g.aggregateConnCounts()
	if err != nil {
		g.logger.Warn("failed to collect concurrent-request counts", tag.Error(err))
		return
	}
	g.applyConnPolicy(counts, g.clock.Now())
	g.flushViolations()
}

// applyConnPolicy runs the block/unblock state machine over the
// aggregated per-user counts.
func (g *Generator) applyConnPolicy(counts map[string]int64, now time.Time) {
	epochSec := now.Unix()
	backoff := time.Duration(g.cfg.ReqsUnblockBackoffMsec) * time.Millisecond

	for user, count := range counts {
		limit := g.limitFor(types.CategoryConns, user)
		if limit <= 0 {
			continue
		}
		ratio := float64(count) / limit
		limitReached := ratio >= 1

		blockedAt, isBlocked := g.blockedUsers[user]
		readyForHeartbeat := !isBlocked || now.Sub(blockedAt) > backoff

		switch {
		// Not blocked but should be; or blocked and due a heartbeat
		// so late-joining edges converge; or below the limit but
		// still inside the hysteresis band.
		case (limitReached && !isBlocked) ||
			(limitReached && readyForHeartbeat) ||
			(!limitReached && isBlocked && readyForHeartbeat && ratio > g.cfg.ReqsUnblockRatio):
			g.violations.Add(epochSec, categoryReqsBlock, user, ratio)
			g.blockedUsers[user] = now

		// Blocked but clearly below the limit: unblock is
		// edge-triggered.
		case isBlocked && ratio <= g.cfg.ReqsUnblockRatio:
			g.violations.Add(epochSec, categoryReqsUnblock, user, ratio)
			delete(g.blockedUsers, user)
		}
	}
}

// aggregateConnCounts sums conn-key values per user across instances
// and directions.
func (g *Generator) aggregateConnCounts() (map[string]int64, error) {
	keys, err := g.store.ScanAll(types.ConnKeyScanPattern, int64(g.cfg.RedisKeysBatch))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := g.store.MGet(keys)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for i, key := range keys {
		// A key can be deleted between SCAN and MGET.
		if i >= len(vals) || vals[i] == nil {
			continue
		}
		parsed, err := types.ParseConnKey(key)
		if err != nil {
			g.logger.Warn("invalid connection key", tag.Key(key), tag.Error(err))
			continue
		}
		raw, ok := vals[i].(string)
		if !ok {
			continue
		}
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			g.logger.Warn("invalid connection count", tag.Key(key), tag.Error(err))
			continue
		}
		counts[parsed.UserKey] += count
	}
	return counts, nil
}
