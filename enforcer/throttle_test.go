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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedRunTime(t *testing.T) {
	entry := throttleEntry{
		receivedEpochSec:   1000,
		elapsedUsecInEpoch: 400000,
		diffRatio:          2.0,
	}

	// Age zero allows nothing at all.
	assert.Equal(t, int64(0), allowedRunTimeUsec(entry, 1000))
	// Age one: elapsed/ratio = 200ms.
	assert.Equal(t, int64(200000), allowedRunTimeUsec(entry, 1001))
	// Each following second doubles the allowance.
	assert.Equal(t, int64(400000), allowedRunTimeUsec(entry, 1002))
	assert.Equal(t, int64(800000), allowedRunTimeUsec(entry, 1003))
	// Clamped at one full second.
	assert.Equal(t, int64(usecsInSec), allowedRunTimeUsec(entry, 1004))
	// Beyond the backoff window the policy has no effect.
	assert.Equal(t, int64(usecsInSec), allowedRunTimeUsec(entry, 1000+backoffWindowSec+1))
}

func TestAllowedRunTimeFloor(t *testing.T) {
	entry := throttleEntry{
		receivedEpochSec:   1000,
		elapsedUsecInEpoch: 1000,
		diffRatio:          100.0,
	}
	// elapsed/ratio is tiny; the 50ms floor applies before doubling.
	assert.Equal(t, int64(minRunTimeUsec), allowedRunTimeUsec(entry, 1001))
	assert.Equal(t, int64(2*minRunTimeUsec), allowedRunTimeUsec(entry, 1002))
}

func TestThrottleTableSetPreservesPreviousRatio(t *testing.T) {
	table := newThrottleTable()
	table.Set("user1", 1000500000, 2.0, 1000)
	table.Set("user1", 1001500000, 3.0, 1001)

	entry, ok := table.Lookup("user1", 1001)
	require.True(t, ok)
	assert.Equal(t, 3.0, entry.diffRatio)
	assert.Equal(t, 2.0, entry.previousDiffRatio)
	assert.Equal(t, int64(500000), entry.elapsedUsecInEpoch)
}

func TestThrottleTableLookupWindow(t *testing.T) {
	table := newThrottleTable()
	table.Set("user1", 1000000000, 2.0, 1000)

	_, ok := table.Lookup("user1", 1000+backoffWindowSec)
	assert.True(t, ok)
	_, ok = table.Lookup("user1", 1000+backoffWindowSec+1)
	assert.False(t, ok)
	_, ok = table.Lookup("nobody", 1000)
	assert.False(t, ok)
}

func TestThrottleTableSweep(t *testing.T) {
	table := newThrottleTable()
	table.Set("old", 0, 2.0, 1000)
	table.Set("new", 0, 2.0, 1100)
	table.Sweep(1130)

	table.mu.RLock()
	defer table.mu.RUnlock()
	_, oldPresent := table.m["old"]
	_, newPresent := table.m["new"]
	assert.False(t, oldPresent)
	assert.True(t, newPresent)
}

func TestJitterCondition(t *testing.T) {
	// High ratio always jitters.
	d := jitterDuration(throttleEntry{diffRatio: 1.5, previousDiffRatio: 0})
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Less(t, d, baseJitterRangeMsec*time.Millisecond)

	// Falling, low ratio does not jitter.
	assert.Equal(t, time.Duration(0),
		jitterDuration(throttleEntry{diffRatio: 1.0, previousDiffRatio: 1.2}))

	// Rising ratio jitters even below the mark.
	rising := throttleEntry{diffRatio: 1.2, previousDiffRatio: 1.0}
	assert.Less(t, jitterDuration(rising), baseJitterRangeMsec*time.Millisecond)
}
