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
	"sync"
	"time"
)

// rateViolationRetentionSec bounds how long a per-second violation
// bucket stays around; buckets are purged on touch.
const rateViolationRetentionSec = 3

// reqsBlockGrace is how long an unrefreshed block stays active.
const reqsBlockGrace = 2 * time.Second

type (
	// rateViolationTable maps `user_<VERB>` -> second -> user set.
	// An entry rejects that verb from that user within that second.
	rateViolationTable struct {
		mu sync.Mutex
		m  map[string]map[int64]map[string]struct{}
	}

	// reqsBlockTable maps user -> epoch second the block was last
	// refreshed. Blocks auto-expire after the grace window.
	reqsBlockTable struct {
		mu sync.Mutex
		m  map[string]int64
	}
)

func newRateViolationTable() *rateViolationTable {
	return &rateViolationTable{m: make(map[string]map[int64]map[string]struct{})}
}

func (t *rateViolationTable) Add(category string, epochSec int64, users []string, nowSec int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	buckets := t.m[category]
	if buckets == nil {
		buckets = make(map[int64]map[string]struct{})
		t.m[category] = buckets
	}
	t.purgeLocked(buckets, nowSec)
	bucket := buckets[epochSec]
	if bucket == nil {
		bucket = make(map[string]struct{}, len(users))
		buckets[epochSec] = bucket
	}
	for _, u := range users {
		bucket[u] = struct{}{}
	}
}

func (t *rateViolationTable) IsViolating(category string, user string, nowSec int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	buckets := t.m[category]
	if buckets == nil {
		return false
	}
	t.purgeLocked(buckets, nowSec)
	bucket := buckets[nowSec]
	if bucket == nil {
		return false
	}
	_, ok := bucket[user]
	return ok
}

func (t *rateViolationTable) purgeLocked(buckets map[int64]map[string]struct{}, nowSec int64) {
	for sec := range buckets {
		if sec+rateViolationRetentionSec < nowSec {
			delete(buckets, sec)
		}
	}
}

func newReqsBlockTable() *reqsBlockTable {
	return &reqsBlockTable{m: make(map[string]int64)}
}

func (t *reqsBlockTable) Block(users []string, nowSec int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range users {
		t.m[u] = nowSec
	}
}

func (t *reqsBlockTable) Unblock(users []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range users {
		delete(t.m, u)
	}
}

// IsBlocked reports whether the user has an unexpired block; expired
// entries are removed on touch.
func (t *reqsBlockTable) IsBlocked(user string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	stamped, ok := t.m[user]
	if !ok {
		return false
	}
	if time.Unix(stamped, 0).Add(reqsBlockGrace).After(now) {
		return true
	}
	delete(t.m, user)
	return false
}
