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
	"math/rand"
	"sync"
	"time"
)

// Policy-driven slowdown parameters. Within the backoff window the
// allowed run time per wall-clock second doubles with every elapsed
// second since the violation was received, so a freshly-signalled
// violation bites hard and then relaxes.
const (
	backoffWindowSec = 6

	minRunTimeUsec = 50 * 1000
	usecsInSec     = 1000 * 1000

	// diffRatioJitterMark is the overshoot ratio at or above which a
	// random jitter sleep is applied to spread thread contention.
	diffRatioJitterMark = 1.5

	// baseJitterRangeMsec bounds the jitter sleep.
	baseJitterRangeMsec = 2

	staleThrottleAge      = 120 * time.Second
	throttleSweepInterval = 60 * time.Second
)

type (
	// throttleEntry is one user's slowdown state in one direction, as
	// received from the policy generator.
	throttleEntry struct {
		receivedEpochSec   int64
		elapsedUsecInEpoch int64
		diffRatio          float64
		previousDiffRatio  float64
	}

	// throttleTable holds the per-direction slowdown entries.
	throttleTable struct {
		mu sync.RWMutex
		m  map[string]throttleEntry
	}
)

func newThrottleTable() *throttleTable {
	return &throttleTable{m: make(map[string]throttleEntry)}
}

// Set installs a slowdown for user. The previous ratio is preserved so
// the jitter condition can key off its direction of change.
func (t *throttleTable) Set(user string, epochUsec int64, diffRatio float64, nowSec int64) {
	if user == "" {
		return
	}
	entry := throttleEntry{
		receivedEpochSec:   nowSec,
		elapsedUsecInEpoch: epochUsec % usecsInSec,
		diffRatio:          diffRatio,
	}
	t.mu.Lock()
	if old, ok := t.m[user]; ok {
		entry.previousDiffRatio = old.diffRatio
	}
	t.m[user] = entry
	t.mu.Unlock()
}

// Lookup returns the user's slowdown entry if one is still within the
// backoff window.
func (t *throttleTable) Lookup(user string, nowSec int64) (throttleEntry, bool) {
	t.mu.RLock()
	entry, ok := t.m[user]
	t.mu.RUnlock()
	if !ok {
		return throttleEntry{}, false
	}
	if nowSec-entry.receivedEpochSec > backoffWindowSec {
		return throttleEntry{}, false
	}
	return entry, true
}

// Sweep drops entries whose policy is long stale.
func (t *throttleTable) Sweep(nowSec int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for user, entry := range t.m {
		if nowSec-entry.receivedEpochSec > int64(staleThrottleAge/time.Second) {
			delete(t.m, user)
		}
	}
}

// allowedRunTimeUsec computes how far into each wall-clock second the
// user may transmit. Age zero allows nothing; each following second
// doubles the allowance until the backoff window ends.
func allowedRunTimeUsec(entry throttleEntry, nowSec int64) int64 {
	age := nowSec - entry.receivedEpochSec
	if age <= 0 {
		return 0
	}
	if age > backoffWindowSec {
		return usecsInSec
	}
	allowed := int64(float64(entry.elapsedUsecInEpoch) / entry.diffRatio)
	if allowed < minRunTimeUsec {
		allowed = minRunTimeUsec
	}
	allowed *= int64(math.Pow(2, float64(age-1)))
	if allowed > usecsInSec {
		allowed = usecsInSec
	}
	return allowed
}

// jitterDuration returns a random sleep spreading concurrent senders
// of a heavily-throttled user, or zero when no jitter applies.
func jitterDuration(entry throttleEntry) time.Duration {
	jitter := math.Max(entry.previousDiffRatio, entry.diffRatio) >= diffRatioJitterMark ||
		entry.diffRatio-entry.previousDiffRatio > 0
	if !jitter {
		return 0
	}
	return time.Duration(rand.Int63n(baseJitterRangeMsec)) * time.Millisecond
}
