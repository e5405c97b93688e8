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

// Package freqctr provides a sliding-window frequency counter for
// byte-rate enforcement. The window spans two fixed periods: the
// current period's count plus a linearly-decaying fraction of the
// previous period's count approximates the rate over the last period
// at any instant.
//
// The counter is safe for concurrent use without locks: the period
// start tick carries a rotation bit so exactly one updater rotates
// the window at each period boundary.
package freqctr

import (
	"runtime"
	"time"

	"go.uber.org/atomic"
)

const rotationBit = 1

// Counter counts events over a sliding two-period window.
// The zero value is ready to use.
type Counter struct {
	// tick is the current period's start in ms, shifted left one bit;
	// the low bit is held while a rotation is in progress.
	tick atomic.Uint64
	curr atomic.Uint64
	prev atomic.Uint64
}

// rotate advances the window to cover now and returns the elapsed
// time into the current period, in milliseconds.
func (c *Counter) rotate(nowMs int64, periodMs int64) int64 {
	for {
		t := c.tick.Load()
		start := int64(t >> 1)
		if t&rotationBit != 0 {
			runtime.Gosched()
			continue
		}
		elapsed := nowMs - start
		if start != 0 && elapsed >= 0 && elapsed < periodMs {
			return elapsed
		}
		if !c.tick.CompareAndSwap(t, t|rotationBit) {
			continue
		}
		if start == 0 || elapsed < 0 {
			// First use, or the clock went backwards: restart.
			c.prev.Store(0)
			c.curr.Store(0)
			c.tick.Store(uint64(nowMs) << 1)
			return 0
		}
		periods := elapsed / periodMs
		if periods >= 2 {
			c.prev.Store(0)
		} else {
			c.prev.Store(c.curr.Load())
		}
		c.curr.Store(0)
		newStart := start + periods*periodMs
		c.tick.Store(uint64(newStart) << 1)
		return nowMs - newStart
	}
}

// total estimates the event count over the trailing period.
func (c *Counter) total(elapsedMs int64, periodMs int64) uint64 {
	prev := c.prev.Load()
	carried := prev * uint64(periodMs-elapsedMs) / uint64(periodMs)
	return c.curr.Load() + carried
}

// Add records n events at time now.
func (c *Counter) Add(now time.Time, period time.Duration, n uint64) {
	c.rotate(now.UnixMilli(), period.Milliseconds())
	c.curr.Add(n)
}

// Overshoot returns how far the trailing window's count exceeds limit,
// or zero when within it.
func (c *Counter) Overshoot(now time.Time, period time.Duration, limit uint64) uint64 {
	elapsed := c.rotate(now.UnixMilli(), period.Milliseconds())
	total := c.total(elapsed, period.Milliseconds())
	if total <= limit {
		return 0
	}
	return total - limit
}

// Remain returns the quota left before the trailing window reaches
// limit.
func (c *Counter) Remain(now time.Time, period time.Duration, limit uint64) uint64 {
	elapsed := c.rotate(now.UnixMilli(), period.Milliseconds())
	total := c.total(elapsed, period.Milliseconds())
	if total >= limit {
		return 0
	}
	return limit - total
}

// NextEventDelay returns how long to wait until one more event fits
// under limit. A zero limit yields the full window span.
func (c *Counter) NextEventDelay(now time.Time, period time.Duration, limit uint64) time.Duration {
	periodMs := period.Milliseconds()
	if limit == 0 {
		return 2 * period
	}
	elapsed := c.rotate(now.UnixMilli(), periodMs)
	total := c.total(elapsed, periodMs)
	if total < limit {
		return 0
	}
	excess := total - limit + 1
	waitMs := int64(excess) * periodMs / int64(limit)
	if waitMs < 1 {
		waitMs = 1
	}
	return time.Duration(waitMs) * time.Millisecond
}
