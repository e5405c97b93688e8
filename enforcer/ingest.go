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

package enforcer

import (
	"math"

	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/common/metrics"
	"github.com/uber/weir/policy"
	"github.com/uber/weir/types"
)

// HandleViolation applies one policy-channel violation record to the
// local tables.
func (e *Enforcer) HandleViolation(m policy.Message) {
	now := e.clock.Now()
	nowSec := now.Unix()
	switch v := m.(type) {
	case policy.RateViolation:
		sec := v.TimestampUsec / usecsInSec
		if sec < nowSec {
			e.scope.Counter(metrics.StalePolicyUpdates).Inc(1)
			e.logger.Debug("dropping stale rate violation", tag.Timestamp(v.TimestampUsec))
			return
		}
		e.rateViolations.Add(types.UserCategory(v.Category), sec, v.Users, nowSec)
	case policy.BandwidthViolation:
		table := e.throttleTable(v.Direction)
		for _, ur := range v.Users {
			table.Set(ur.User, v.TimestampUsec, ur.DiffRatio, nowSec)
		}
	case policy.ReqsBlock:
		e.reqsBlock.Block(v.Users, nowSec)
	case policy.ReqsUnblock:
		e.reqsBlock.Unblock(v.Users)
	}
}

// HandleLimitShare applies the shares addressed to this instance.
func (e *Enforcer) HandleLimitShare(s policy.LimitShare) {
	for _, entry := range s.Shares {
		if entry.InstanceID != e.cfg.InstanceID {
			continue
		}
		e.ingestLimitShare(s.TimestampSec, s.User, entry.Direction, entry.Bytes)
	}
}

// ingestLimitShare installs a new bandwidth share for (user, dir).
// Updates are monotonic per direction: an older timestamp than the
// stored one is ignored. Shares beyond 32 bits are clamped; the limit
// applies per instance, so a capped user regains full throughput by
// spreading load across instances.
func (e *Enforcer) ingestLimitShare(timestamp int64, userKey string, dir types.Direction, share uint64) {
	if share > math.MaxUint32 {
		e.logger.Warn("limit share exceeds the 4GB/s per-instance cap, clamping",
			tag.UserKey(userKey), tag.Direction(dir.String()), tag.Value(share))
		share = math.MaxUint32
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	limit := e.getOrCreateLimitLocked(userKey)
	d := limit.direction(dir)
	d.limitReceived = true
	if timestamp >= d.limitTimestamp {
		d.limitTimestamp = timestamp
		d.bytesPerSecond = uint32(share)
	} else {
		e.scope.Counter(metrics.StalePolicyUpdates).Inc(1)
	}
}
