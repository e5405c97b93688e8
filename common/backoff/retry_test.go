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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialPolicyGrowsAndCaps(t *testing.T) {
	p := NewExponentialPolicy(100*time.Millisecond, time.Second)

	// Jitter is +/-20%, so check bands rather than exact values.
	first := p.NextDelay(0)
	assert.GreaterOrEqual(t, first, 80*time.Millisecond)
	assert.LessOrEqual(t, first, 120*time.Millisecond)

	tenth := p.NextDelay(10)
	assert.GreaterOrEqual(t, tenth, 800*time.Millisecond)
	assert.LessOrEqual(t, tenth, 1200*time.Millisecond)
}

func TestExponentialPolicyJitterSpreads(t *testing.T) {
	p := NewExponentialPolicy(100*time.Millisecond, time.Second)
	seen := make(map[time.Duration]struct{})
	for i := 0; i < 50; i++ {
		seen[p.NextDelay(3)] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}
