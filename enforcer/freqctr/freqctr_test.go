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

package freqctr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Unix(1700000000, 0)

func TestRemainDecreasesWithUsage(t *testing.T) {
	c := &Counter{}
	period := time.Second

	assert.Equal(t, uint64(1000), c.Remain(base, period, 1000))
	c.Add(base, period, 400)
	assert.Equal(t, uint64(600), c.Remain(base.Add(time.Millisecond), period, 1000))
	c.Add(base.Add(time.Millisecond), period, 600)
	assert.Equal(t, uint64(0), c.Remain(base.Add(2*time.Millisecond), period, 1000))
}

func TestOvershoot(t *testing.T) {
	c := &Counter{}
	period := time.Second

	c.Add(base, period, 1500)
	assert.Equal(t, uint64(500), c.Overshoot(base.Add(time.Millisecond), period, 1000))
	assert.Equal(t, uint64(0), c.Overshoot(base.Add(time.Millisecond), period, 2000))
}

func TestOvershootZeroLimitCountsEverything(t *testing.T) {
	c := &Counter{}
	period := time.Second
	c.Add(base, period, 10)
	assert.Equal(t, uint64(10), c.Overshoot(base.Add(time.Millisecond), period, 0))
}

func TestWindowSlidesAcrossPeriods(t *testing.T) {
	c := &Counter{}
	period := time.Second

	c.Add(base, period, 1000)
	// Immediately after rotation the previous period still counts in
	// full, decaying linearly across the new period.
	assert.Equal(t, uint64(0), c.Remain(base.Add(period), period, 1000))
	assert.Equal(t, uint64(500), c.Remain(base.Add(period+period/2), period, 1000))
	// Two full periods later the old usage is gone entirely.
	assert.Equal(t, uint64(1000), c.Remain(base.Add(3*period), period, 1000))
}

func TestNextEventDelay(t *testing.T) {
	c := &Counter{}
	period := time.Second

	assert.Equal(t, time.Duration(0), c.NextEventDelay(base, period, 1000))
	c.Add(base, period, 1000)
	delay := c.NextEventDelay(base.Add(time.Millisecond), period, 1000)
	assert.Greater(t, delay, time.Duration(0))
	assert.LessOrEqual(t, delay, 2*period)
}

func TestNextEventDelayZeroLimit(t *testing.T) {
	c := &Counter{}
	period := time.Second
	assert.Equal(t, 2*period, c.NextEventDelay(base, period, 0))
}

func TestConcurrentUpdates(t *testing.T) {
	c := &Counter{}
	period := time.Second
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 1000; j++ {
				c.Add(base.Add(time.Duration(j)*time.Microsecond), period, 1)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.Equal(t, uint64(0), c.Remain(base.Add(time.Millisecond), period, 4000))
}
