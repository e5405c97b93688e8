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

package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type (
	// TimeSource provides the current time and timer channels, and can
	// be swapped for a fake in tests.
	TimeSource interface {
		Now() time.Time
		After(d time.Duration) <-chan time.Time
		Sleep(d time.Duration)
	}

	// MockedTimeSource is a TimeSource whose clock only moves when
	// told to.
	MockedTimeSource interface {
		TimeSource
		Advance(d time.Duration)
		BlockUntil(waiters int)
	}

	realTimeSource struct{}

	mockedTimeSource struct {
		c clockwork.FakeClock
	}
)

// NewRealTimeSource returns a TimeSource backed by the wall clock.
func NewRealTimeSource() TimeSource {
	return realTimeSource{}
}

func (realTimeSource) Now() time.Time {
	return time.Now()
}

func (realTimeSource) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (realTimeSource) Sleep(d time.Duration) {
	time.Sleep(d)
}

// NewMockedTimeSource returns a TimeSource for tests, starting at an
// arbitrary fixed time.
func NewMockedTimeSource() MockedTimeSource {
	return &mockedTimeSource{c: clockwork.NewFakeClock()}
}

// NewMockedTimeSourceAt returns a mocked TimeSource starting at t.
func NewMockedTimeSourceAt(t time.Time) MockedTimeSource {
	return &mockedTimeSource{c: clockwork.NewFakeClockAt(t)}
}

func (m *mockedTimeSource) Now() time.Time {
	return m.c.Now()
}

func (m *mockedTimeSource) After(d time.Duration) <-chan time.Time {
	return m.c.After(d)
}

func (m *mockedTimeSource) Sleep(d time.Duration) {
	m.c.Sleep(d)
}

func (m *mockedTimeSource) Advance(d time.Duration) {
	m.c.Advance(d)
}

func (m *mockedTimeSource) BlockUntil(waiters int) {
	m.c.BlockUntil(waiters)
}
