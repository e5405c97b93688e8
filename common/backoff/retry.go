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

package backoff

import (
	"math"
	"math/rand"
	"time"
)

type (
	// Policy computes the delay before the next retry attempt.
	Policy interface {
		// NextDelay returns the delay for the given zero-based attempt.
		NextDelay(attempt int) time.Duration
	}

	exponentialPolicy struct {
		initial     time.Duration
		maximum     time.Duration
		coefficient float64
		jitter      float64
	}
)

// NewExponentialPolicy returns a Policy that doubles the delay per
// attempt up to maximum, with a proportional random jitter so that a
// fleet of reconnecting clients does not dogpile the server.
func NewExponentialPolicy(initial time.Duration, maximum time.Duration) Policy {
	return &exponentialPolicy{
		initial:     initial,
		maximum:     maximum,
		coefficient: 2.0,
		jitter:      0.2,
	}
}

func (p *exponentialPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.initial) * math.Pow(p.coefficient, float64(attempt))
	if delay > float64(p.maximum) {
		delay = float64(p.maximum)
	}
	delay += delay * p.jitter * (rand.Float64()*2 - 1)
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
