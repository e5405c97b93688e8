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
	"time"

	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
)

// unknownUsers remembers users seen without a configured tier and
// reports them in one batch on a fixed cadence, keeping the hot path
// quiet.
type unknownUsers struct {
	mu         sync.Mutex
	users      map[string]struct{}
	interval   time.Duration
	lastReport time.Time
}

func newUnknownUsers(interval time.Duration) *unknownUsers {
	return &unknownUsers{
		users:    make(map[string]struct{}),
		interval: interval,
	}
}

func (u *unknownUsers) Add(user string) {
	u.mu.Lock()
	u.users[user] = struct{}{}
	u.mu.Unlock()
}

func (u *unknownUsers) Report(now time.Time, logger log.Logger) {
	if u.interval <= 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if now.Sub(u.lastReport) <= u.interval || len(u.users) == 0 {
		return
	}
	u.lastReport = now
	users := make([]string, 0, len(u.users))
	for user := range u.users {
		users = append(users, user)
	}
	u.users = make(map[string]struct{})
	logger.Warn("users with no QoS limits", tag.Value(users))
}
