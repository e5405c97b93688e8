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

	"github.com/uber/weir/enforcer/freqctr"
)

var shaperBase = time.Unix(1700000000, 0)

func TestApplyBandwidthLimitGrantsWithinQuota(t *testing.T) {
	c := &freqctr.Counter{}
	result := applyBandwidthLimit(c, shaperBase, 1000, 1, 400)
	assert.Equal(t, 400, result.Bytes)
	assert.Equal(t, time.Duration(0), result.Wait)
	assert.False(t, result.Throttled)
}

func TestApplyBandwidthLimitFairSplitAcrossRequests(t *testing.T) {
	c := &freqctr.Counter{}
	// Four concurrent requests split the 1000-byte quota; each grant
	// is the ceiling of the per-request share.
	result := applyBandwidthLimit(c, shaperBase, 1000, 4, 1000)
	assert.Equal(t, 250, result.Bytes)
	// Quota remains for the other requests, so the retry needs no
	// delay.
	assert.Equal(t, time.Duration(0), result.Wait)
}

func TestApplyBandwidthLimitOvershootWaits(t *testing.T) {
	c := &freqctr.Counter{}
	first := applyBandwidthLimit(c, shaperBase, 100, 1, 100)
	assert.Equal(t, 100, first.Bytes)

	c.Add(shaperBase.Add(time.Millisecond), time.Second, 100)
	second := applyBandwidthLimit(c, shaperBase.Add(2*time.Millisecond), 100, 1, 50)
	assert.Equal(t, 0, second.Bytes)
	assert.Greater(t, second.Wait, time.Duration(0))
	assert.LessOrEqual(t, second.Wait, shaperMaxWait)
}

func TestApplyBandwidthLimitZeroLimitMaxWait(t *testing.T) {
	c := &freqctr.Counter{}
	c.Add(shaperBase, time.Second, 1)
	// With a zero limit any usage is an overshoot; the wait must be
	// the full window, never a division by zero.
	result := applyBandwidthLimit(c, shaperBase.Add(time.Millisecond), 0, 1, 100)
	assert.Equal(t, 0, result.Bytes)
	assert.Equal(t, shaperMaxWait, result.Wait)
}

func TestApplyBandwidthLimitZeroRequestsTreatedAsOne(t *testing.T) {
	c := &freqctr.Counter{}
	result := applyBandwidthLimit(c, shaperBase, 1000, 0, 100)
	assert.Equal(t, 100, result.Bytes)
}
