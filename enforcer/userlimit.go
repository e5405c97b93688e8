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
	"go.uber.org/atomic"

	"github.com/uber/weir/enforcer/freqctr"
	"github.com/uber/weir/types"
)

type (
	// directionLimit is one user's enforcement state for one transfer
	// direction. All fields except the counter and the throttle-log
	// tick are guarded by the enforcer's table lock.
	directionLimit struct {
		limitReceived  bool
		limitTimestamp int64
		bytesPerSecond uint32

		counter freqctr.Counter

		activeRequests int

		// nextThrottleLogNanos is the next wall-clock instant at
		// which a throttle log may be emitted for this direction;
		// claimed by CAS so exactly one goroutine logs per second.
		nextThrottleLogNanos atomic.Int64
	}

	// userLimit is the per-user entry of the edge limit table.
	// A filter holds a pointer into this entry for its whole
	// lifetime; entries are reclaimed only after the last request
	// ended and a quiescence window passed, so the pointer stays
	// valid.
	userLimit struct {
		upload   directionLimit
		download directionLimit

		lastRequestEnd int64 // unix nanos, guarded by the table lock
	}
)

func (u *userLimit) direction(dir types.Direction) *directionLimit {
	if dir == types.DirectionUp {
		return &u.upload
	}
	return &u.download
}
