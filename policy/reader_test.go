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

package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/weir/common/log"
)

type recordingHandler struct {
	violations []Message
	shares     []LimitShare
}

func (h *recordingHandler) HandleViolation(m Message) {
	h.violations = append(h.violations, m)
}

func (h *recordingHandler) HandleLimitShare(s LimitShare) {
	h.shares = append(h.shares, s)
}

func TestReadBlocksPolicies(t *testing.T) {
	input := strings.Join([]string{
		"policies",
		"100,user_GET,user1",
		"user_reqs_block,user2",
		"END_OF_POLICIES",
		"",
	}, "\n")
	h := &recordingHandler{}
	err := ReadBlocks(strings.NewReader(input), h, log.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, h.violations, 2)
	assert.IsType(t, RateViolation{}, h.violations[0])
	assert.IsType(t, ReqsBlock{}, h.violations[1])
}

func TestReadBlocksMalformedRecordAbortsBlockOnly(t *testing.T) {
	input := strings.Join([]string{
		"policies",
		"100,user_GET,user1",
		"garbage line",
		"100,user_PUT,user1",
		"END_OF_POLICIES",
		"policies",
		"200,user_PUT,user3",
		"END_OF_POLICIES",
		"",
	}, "\n")
	h := &recordingHandler{}
	err := ReadBlocks(strings.NewReader(input), h, log.NewNopLogger())
	require.NoError(t, err)
	// The malformed record kills the rest of its block; the next
	// block is unaffected.
	require.Len(t, h.violations, 2)
	assert.Equal(t, "GET", h.violations[0].(RateViolation).Category)
	assert.Equal(t, "PUT", h.violations[1].(RateViolation).Category)
}

func TestReadBlocksLimitShare(t *testing.T) {
	input := strings.Join([]string{
		"limit_share",
		"100,user1,edge01-80_up_1024",
		"end_limit_share",
		"",
	}, "\n")
	h := &recordingHandler{}
	require.NoError(t, ReadBlocks(strings.NewReader(input), h, log.NewNopLogger()))
	require.Len(t, h.shares, 1)
	assert.Equal(t, "user1", h.shares[0].User)
}

func TestReadBlocksLimitShareFramingReset(t *testing.T) {
	// A header inside an open block means the previous tail was lost;
	// the new block parses normally.
	input := strings.Join([]string{
		"limit_share",
		"100,user1,edge01-80_up_1024",
		"limit_share",
		"200,user2,edge01-80_dwn_2048",
		"end_limit_share",
		"",
	}, "\n")
	h := &recordingHandler{}
	require.NoError(t, ReadBlocks(strings.NewReader(input), h, log.NewNopLogger()))
	require.Len(t, h.shares, 2)
	assert.Equal(t, "user2", h.shares[1].User)
}

func TestReadBlocksUnknownTopLevelIgnored(t *testing.T) {
	input := strings.Join([]string{
		"hello there",
		"policies",
		"100,user_GET,user1",
		"END_OF_POLICIES",
		"",
	}, "\n")
	h := &recordingHandler{}
	require.NoError(t, ReadBlocks(strings.NewReader(input), h, log.NewNopLogger()))
	assert.Len(t, h.violations, 1)
}
