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
	"fmt"
	"strconv"
	"strings"
)

// FormatRateViolation renders <ts_usec>,user_<VERB>,<user>[,<user>...].
func FormatRateViolation(v RateViolation) string {
	return fmt.Sprintf("%d,%s%s,%s", v.TimestampUsec, userScopePrefix, v.Category, strings.Join(v.Users, ","))
}

// FormatBandwidthViolation renders
// <ts_usec>,user_bnd_<dir>,<user>[:<ratio>][,...].
func FormatBandwidthViolation(v BandwidthViolation) string {
	pairs := make([]string, 0, len(v.Users))
	for _, ur := range v.Users {
		pairs = append(pairs, fmt.Sprintf("%s:%s", ur.User, strconv.FormatFloat(ur.DiffRatio, 'f', 1, 64)))
	}
	return fmt.Sprintf("%d,%s%s,%s", v.TimestampUsec, bandwidthPrefix, v.Direction, strings.Join(pairs, ","))
}

// FormatReqsBlock renders user_reqs_block,<user>[,<user>...].
func FormatReqsBlock(v ReqsBlock) string {
	return fmt.Sprintf("%s,%s", reqsBlockTag, strings.Join(v.Users, ","))
}

// FormatReqsUnblock renders user_reqs_unblock,<user>[,<user>...].
func FormatReqsUnblock(v ReqsUnblock) string {
	return fmt.Sprintf("%s,%s", reqsUnblockTag, strings.Join(v.Users, ","))
}

// FormatMessage renders any violation-family message.
func FormatMessage(m Message) string {
	switch v := m.(type) {
	case RateViolation:
		return FormatRateViolation(v)
	case BandwidthViolation:
		return FormatBandwidthViolation(v)
	case ReqsBlock:
		return FormatReqsBlock(v)
	case ReqsUnblock:
		return FormatReqsUnblock(v)
	case LimitShare:
		return FormatLimitShare(v)
	default:
		return ""
	}
}

// FormatLimitShare renders <ts_sec>,<user>,<inst>_<dir>_<bytes>[,...].
func FormatLimitShare(v LimitShare) string {
	entries := make([]string, 0, len(v.Shares))
	for _, e := range v.Shares {
		entries = append(entries, fmt.Sprintf("%s_%s_%d", e.InstanceID, e.Direction, e.Bytes))
	}
	return fmt.Sprintf("%d,%s,%s", v.TimestampSec, v.User, strings.Join(entries, ","))
}

// FramePolicies wraps violation lines in the policies block framing.
func FramePolicies(lines []string) string {
	var b strings.Builder
	b.WriteString(PoliciesHeader)
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(PoliciesTrailer)
	b.WriteString("\n")
	return b.String()
}

// FrameLimitShares wraps limit-share lines in the limit_share block
// framing.
func FrameLimitShares(lines []string) string {
	var b strings.Builder
	b.WriteString(LimitShareHeader)
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(LimitShareTrailer)
	b.WriteString("\n")
	return b.String()
}
