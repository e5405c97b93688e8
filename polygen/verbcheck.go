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

	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/common/metrics"
	"github.com/uber/weir/policy"
	"github.com/uber/weir/types"
)

// runVerbLoop scans the current second's verb keys each tick and
// turns per-verb, per-operation-class and bandwidth overshoots into
// violation messages.
func (g *Generator) runVerbLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.clock.After(g.sleepTime()):
		}
		g.tickHousekeeping()
		g.checkVerbViolations()
	}
}

// checkVerbViolations runs one verb tick. The scan is bound to one
// wall-clock second: spilling into the next second abandons the tick,
// since the next tick recomputes everything anyway.
func (g *Generator) checkVerbViolations() {
	epochSec := g.clock.Now().Unix()
	pattern := types.VerbKeyScanPattern(epochSec)

	var keys []string
	var cursor uint64
	for {
		scanned, next, err := g.store.ScanOnce(cursor, pattern, int64(g.cfg.RedisKeysBatch))
		if err != nil {
			g.logger.Warn("kv scan failed", tag.Error(err))
			return
		}
		if g.clock.Now().Unix() != epochSec {
			g.logger.Debug("verb scan spilled over the next second, abandoning tick")
			return
		}
		keys = append(keys, scanned...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return
	}

	for _, key := range keys {
		g.checkVerbKey(key, epochSec)
	}
	g.flushViolations()
}

// checkVerbKey compares one verb key's fields (verbs, operation
// classes and bnd_* byte counters) against the user's tier limits.
func (g *Generator) checkVerbKey(key string, epochSec int64) {
	parsed, err := types.ParseVerbKey(key)
	if err != nil {
		g.logger.Warn("could not parse verb key", tag.Key(key), tag.Error(err))
		return
	}
	fields, err := g.store.HGetAll(key)
	if err != nil {
		g.logger.Warn("kv hash read failed", tag.Key(key), tag.Error(err))
		return
	}
	for field, valStr := range fields {
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			g.logger.Warn("bad counter value", tag.Key(key), tag.Error(err))
			continue
		}
		reached, diffRatio := g.isVerbLimitReached(field, parsed.UserKey, val)
		if reached {
			g.violations.Add(epochSec, field, parsed.UserKey, diffRatio)
			g.scope.Counter(metrics.ViolationsEmitted).Inc(1)
		}
	}
}

// isVerbLimitReached compares one field's count against its limit.
// Bandwidth limits are configured in MB/s while the counters are in
// bytes, so those scale before comparing. The returned ratio is
// rounded to one decimal, which also bounds re-send churn.
func (g *Generator) isVerbLimitReached(field string, user string, val float64) (bool, float64) {
	category := types.UserCategory(field)
	limit := g.limitFor(category, user)
	if field == types.BandwidthUpField || field == types.BandwidthDownField {
		limit *= types.MB
	}
	if limit <= 0 || val < limit {
		return false, 0
	}
	ratio := float64(int(val/limit*10)) / 10
	return true, ratio
}

// flushViolations frames and broadcasts any pending violations.
func (g *Generator) flushViolations() {
	nowUsec := g.clock.Now().UnixMicro()
	lines := g.violations.CollectMessages(nowUsec)
	if len(lines) == 0 {
		return
	}
	for _, line := range lines {
		g.logger.Info("violation message", tag.Payload(line))
	}
	g.server.Broadcast(policy.FramePolicies(lines))
}
