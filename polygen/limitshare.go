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

type (
	demandKey struct {
		user      string
		direction types.Direction
	}

	// demandMap maps (user, direction) to per-instance active-request
	// counts. The instance stays out of the key because shares are
	// computed from a user's demand aggregated across instances.
	demandMap map[demandKey]map[string]int64
)

// runDemandLoop periodically recomputes every user's per-instance
// bandwidth shares from the observed demand distribution.
func (g *Generator) runDemandLoop(ctx context.Context) error {
	interval := demandSleepMultiplier * g.sleepTime()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.clock.After(interval):
		}
		g.broadcastLimitShares()
	}
}

func (g *Generator) broadcastLimitShares() {
	demand, err := g.collectDemand()
	if err != nil {
		g.logger.Warn("failed to collect demand info", tag.Error(err))
		return
	}
	if len(demand) == 0 {
		return
	}

	epochSec := g.clock.Now().Unix()
	var lines []string
	for key, instances := range demand {
		share := g.computeLimitShare(key, instances)
		if share == nil {
			continue
		}
		lines = append(lines, policy.FormatLimitShare(policy.LimitShare{
			TimestampSec: epochSec,
			User:         key.user,
			Shares:       share,
		}))
	}
	if len(lines) == 0 {
		return
	}
	g.scope.Counter(metrics.LimitSharesEmitted).Inc(int64(len(lines)))
	g.server.Broadcast(policy.FrameLimitShares(lines))
}

// computeLimitShare splits one user's configured byte/s limit across
// instances in proportion to each instance's share of the user's
// active requests, floored at the minimum share.
func (g *Generator) computeLimitShare(key demandKey, instances map[string]int64) []policy.LimitShareEntry {
	var total int64
	for _, count := range instances {
		total += count
	}
	if total == 0 {
		return nil
	}

	limit := g.limitFor(bandwidthCategory(key.direction), key.user) * types.MB

	entries := make([]policy.LimitShareEntry, 0, len(instances))
	for instanceID, count := range instances {
		if count <= 0 {
			continue
		}
		share := uint64(limit * float64(count) / float64(total))
		if share < g.cfg.MinimumLimitBytes {
			share = g.cfg.MinimumLimitBytes
		}
		entries = append(entries, policy.LimitShareEntry{
			InstanceID: instanceID,
			Direction:  key.direction,
			Bytes:      share,
		})
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}

func bandwidthCategory(dir types.Direction) string {
	return types.UserCategory("bnd_" + dir.String())
}

// collectDemand reads all per-instance concurrent-request keys into a
// demand map.
func (g *Generator) collectDemand() (demandMap, error) {
	keys, err := g.store.ScanAll(types.ConnV2KeyScanPattern, int64(g.cfg.RedisKeysBatch))
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

	demand := make(demandMap)
	for i, key := range keys {
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
			continue
		}
		dk := demandKey{user: parsed.UserKey, direction: parsed.Direction}
		if demand[dk] == nil {
			demand[dk] = make(map[string]int64)
		}
		demand[dk][parsed.InstanceID] += count
	}
	return demand, nil
}
