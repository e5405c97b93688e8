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

// Package policy defines the messages carried on the policy channel
// between the policy generator and every edge enforcer, their
// line-oriented wire format, and the block framing around them.
package policy

import "github.com/uber/weir/types"

// Block framing markers. Violation messages travel inside a
// policies block; limit shares inside a limit_share block.
const (
	PoliciesHeader    = "policies"
	PoliciesTrailer   = "END_OF_POLICIES"
	LimitShareHeader  = "limit_share"
	LimitShareTrailer = "end_limit_share"
)

type (
	// Message is one policy record. The concrete types form a tagged
	// variant over the string-typed records of the wire protocol.
	Message interface {
		isPolicyMessage()
	}

	// RateViolation rejects requests of one verb or operation class
	// from the listed users within the second of its timestamp.
	RateViolation struct {
		TimestampUsec int64
		// Category is the verb or operation class, without the
		// "user_" scope prefix.
		Category string
		Users    []string
	}

	// UserRatio pairs a user with how far over its bandwidth limit it
	// was observed (observed / limit).
	UserRatio struct {
		User      string
		DiffRatio float64
	}

	// BandwidthViolation starts a policy-driven slowdown for the
	// listed users in one direction.
	BandwidthViolation struct {
		TimestampUsec int64
		Direction     types.Direction
		Users         []UserRatio
	}

	// ReqsBlock rejects all requests from the listed users until the
	// block expires or is lifted.
	ReqsBlock struct {
		Users []string
	}

	// ReqsUnblock lifts an active block for the listed users.
	ReqsUnblock struct {
		Users []string
	}

	// LimitShareEntry is one instance's byte/s share of a user's
	// bandwidth limit in one direction.
	LimitShareEntry struct {
		InstanceID string
		Direction  types.Direction
		Bytes      uint64
	}

	// LimitShare carries the per-instance shares of one user's
	// bandwidth limit, stamped so stale updates can be discarded.
	LimitShare struct {
		TimestampSec int64
		User         string
		Shares       []LimitShareEntry
	}
)

func (RateViolation) isPolicyMessage()      {}
func (BandwidthViolation) isPolicyMessage() {}
func (ReqsBlock) isPolicyMessage()          {}
func (ReqsUnblock) isPolicyMessage()        {}
func (LimitShare) isPolicyMessage()         {}
