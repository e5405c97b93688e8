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

import "sync"

// endpointTable maps a request's remote address to its user key, and
// tracks how many live requests each key has across all addresses.
// Keep-alive reuse of an address simply overwrites the mapping.
type endpointTable struct {
	mu     sync.RWMutex
	byAddr map[string]string
	counts map[string]int
}

func newEndpointTable() *endpointTable {
	return &endpointTable{
		byAddr: make(map[string]string),
		counts: make(map[string]int),
	}
}

func (t *endpointTable) Set(addr string, userKey string) {
	if userKey == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byAddr[addr]; ok {
		t.decrLocked(old)
	}
	t.byAddr[addr] = userKey
	t.counts[userKey]++
}

func (t *endpointTable) Remove(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if key, ok := t.byAddr[addr]; ok {
		delete(t.byAddr, addr)
		t.decrLocked(key)
	}
}

func (t *endpointTable) decrLocked(key string) {
	if n, ok := t.counts[key]; ok {
		if n <= 1 {
			delete(t.counts, key)
		} else {
			t.counts[key] = n - 1
		}
	}
}

func (t *endpointTable) Lookup(addr string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	key, ok := t.byAddr[addr]
	return key, ok
}

func (t *endpointTable) Count(key string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[key]
}
