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

package polygen

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolationsDedupWithinEpoch(t *testing.T) {
	s := newViolationState()
	s.Add(100, "GET", "user1", 1.2)
	s.Add(100, "GET", "user1", 1.2)

	lines := s.CollectMessages(100000000)
	require.Len(t, lines, 1)
	assert.Equal(t, "100000000,user_GET,user1", lines[0])

	// Already sent within the epoch: nothing new.
	s.Add(100, "GET", "user1", 1.2)
	assert.Empty(t, s.CollectMessages(100000001))
}

func TestViolationsNewEpochResendsPersistentViolators(t *testing.T) {
	s := newViolationState()
	s.Add(100, "GET", "user1", 1.2)
	require.Len(t, s.CollectMessages(100000000), 1)

	s.Add(101, "GET", "user1", 1.2)
	assert.Len(t, s.CollectMessages(101000000), 1)
}

func TestViolationsBandwidthResendOnGrowingRatio(t *testing.T) {
	s := newViolationState()
	s.Add(100, "bnd_up", "user1", 1.2)
	require.Len(t, s.CollectMessages(100000000), 1)

	// Growth below the resend factor stays quiet.
	s.Add(100, "bnd_up", "user1", 1.3)
	assert.Empty(t, s.CollectMessages(100000001))

	// Growth beyond the factor re-sends with the new ratio.
	s.Add(100, "bnd_up", "user1", 1.5)
	lines := s.CollectMessages(100000002)
	require.Len(t, lines, 1)
	assert.Equal(t, "100000002,user_bnd_up,user1:1.5", lines[0])
}

func TestViolationsBlockUnblockMessages(t *testing.T) {
	s := newViolationState()
	s.Add(100, categoryReqsBlock, "user1", 1.1)
	s.Add(100, categoryReqsUnblock, "user2", 0.5)

	lines := s.CollectMessages(100000000)
	sort.Strings(lines)
	require.Len(t, lines, 2)
	assert.Contains(t, lines, "user_reqs_block,user1")
	assert.Contains(t, lines, "user_reqs_unblock,user2")
}

func TestViolationsMultipleUsersOneLine(t *testing.T) {
	s := newViolationState()
	s.Add(100, "PUT", "user1", 2.0)
	s.Add(100, "PUT", "user2", 3.0)

	lines := s.CollectMessages(100000000)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "100000000,user_PUT,"))
	assert.Contains(t, lines[0], "user1")
	assert.Contains(t, lines[0], "user2")
}
