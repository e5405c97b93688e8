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
	"sync"

	"github.com/uber/weir/policy"
	"github.com/uber/weir/types"
)

// diffRatioResendFactor: if, within the same epoch, a user's overshoot
// ratio grows by more than this over the last sent reading, the
// violation is re-sent with the new ratio.
const diffRatioResendFactor = 0.15

// Categories carried through the violation state beside verbs and
// operation classes.
const (
	categoryReqsBlock   = "reqs_block"
	categoryReqsUnblock = "reqs_unblock"
)

type (
	// categoryViolations tracks which users have a pending or
	// already-sent violation for one category within the current
	// epoch.
	categoryViolations struct {
		newKeys  map[string]struct{}
		sentKeys map[string]struct{}
		ratios   map[string]float64
	}

	// violationState deduplicates violations within an epoch; a new
	// epoch starts fresh, so persistent violators are re-announced
	// every second.
	violationState struct {
		mu         sync.Mutex
		epoch      int64
		categories map[string]*categoryViolations
	}
)

func newViolationState() *violationState {
	return &violationState{categories: make(map[string]*categoryViolations)}
}

func (s *violationState) category(name string) *categoryViolations {
	c := s.categories[name]
	if c == nil {
		c = &categoryViolations{
			newKeys:  make(map[string]struct{}),
			sentKeys: make(map[string]struct{}),
			ratios:   make(map[string]float64),
		}
		s.categories[name] = c
	}
	return c
}

// Add records a violation of category for user at epochSec.
func (s *violationState) Add(epochSec int64, category string, user string, diffRatio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epochSec > s.epoch {
		s.epoch = epochSec
		s.categories = make(map[string]*categoryViolations)
	}
	c := s.category(category)
	if _, sent := c.sentKeys[user]; !sent {
		c.newKeys[user] = struct{}{}
		c.ratios[user] = diffRatio
		return
	}
	// Only throughput categories care about a growing ratio.
	if category == types.BandwidthUpField || category == types.BandwidthDownField {
		if diffRatio-c.ratios[user] > diffRatioResendFactor {
			delete(c.sentKeys, user)
			c.newKeys[user] = struct{}{}
			c.ratios[user] = diffRatio
		}
	}
}

// CollectMessages renders all pending violations as policy lines and
// marks them sent.
func (s *violationState) CollectMessages(nowUsec int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines []string
	for category, c := range s.categories {
		if len(c.newKeys) == 0 {
			continue
		}
		users := make([]string, 0, len(c.newKeys))
		for user := range c.newKeys {
			users = append(users, user)
			c.sentKeys[user] = struct{}{}
		}
		c.newKeys = make(map[string]struct{})
		lines = append(lines, formatCategoryLine(category, users, c.ratios, nowUsec))
	}
	return lines
}

func formatCategoryLine(category string, users []string, ratios map[string]float64, nowUsec int64) string {
	switch category {
	case categoryReqsBlock:
		return policy.FormatReqsBlock(policy.ReqsBlock{Users: users})
	case categoryReqsUnblock:
		return policy.FormatReqsUnblock(policy.ReqsUnblock{Users: users})
	case types.BandwidthUpField, types.BandwidthDownField:
		dir := types.DirectionUp
		if category == types.BandwidthDownField {
			dir = types.DirectionDown
		}
		pairs := make([]policy.UserRatio, 0, len(users))
		for _, u := range users {
			pairs = append(pairs, policy.UserRatio{User: u, DiffRatio: ratios[u]})
		}
		return policy.FormatBandwidthViolation(policy.BandwidthViolation{
			TimestampUsec: nowUsec,
			Direction:     dir,
			Users:         pairs,
		})
	default:
		return policy.FormatRateViolation(policy.RateViolation{
			TimestampUsec: nowUsec,
			Category:      category,
			Users:         users,
		})
	}
}
