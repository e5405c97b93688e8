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
	"time"

	"github.com/uber/weir/enforcer/freqctr"
)

// All limits are per second; the counter's sliding window spans two
// periods, so no wait ever needs to exceed that.
const (
	shaperPeriod  = time.Second
	shaperMaxWait = 2 * shaperPeriod
)

// ShapeResult tells the caller how many bytes it may forward now and
// how long to wait before trying again when the grant fell short.
type ShapeResult struct {
	Bytes     int
	Wait      time.Duration
	Throttled bool
}

// applyBandwidthLimit grants bytes out of the user's per-second limit,
// split evenly across the user's local concurrent requests. The first
// check guards against the initial burst: once the window overshoots
// the limit, nothing is forwarded and the wait is sized so the retry
// does not come back too early.
func applyBandwidthLimit(counter *freqctr.Counter, now time.Time, limit uint32, requests int, available int) ShapeResult {
	if requests < 1 {
		requests = 1
	}
	if available < 0 {
		available = 0
	}

	overshoot := counter.Overshoot(now, shaperPeriod, uint64(limit))
	if overshoot > 0 {
		wait := shaperMaxWait
		// A zero limit always waits the full window; computing a
		// proportional wait would divide by zero.
		if limit > 0 {
			proportional := time.Duration(overshoot*uint64(shaperPeriod.Milliseconds())*uint64(requests)/uint64(limit)) * time.Millisecond
			if proportional < wait {
				wait = proportional
			}
		}
		return ShapeResult{Bytes: 0, Wait: wait}
	}

	quota := counter.Remain(now, shaperPeriod, uint64(limit))
	quota = (quota + uint64(requests) - 1) / uint64(requests)

	grant := available
	if uint64(grant) > quota {
		grant = int(quota)
	}
	counter.Add(now, shaperPeriod, uint64(grant))

	result := ShapeResult{Bytes: grant}
	if grant < available {
		wait := counter.NextEventDelay(now, shaperPeriod, uint64(limit))
		if wait > shaperMaxWait {
			wait = shaperMaxWait
		}
		result.Wait = wait
	}
	return result
}
