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

package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindEventStart(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		found   bool
		rest    string
	}{
		{
			name:    "bare event",
			payload: "req~|~1.2.3.4:1~|~u~|~GET~|~dwn~|~i~|~1~|~",
			found:   true,
			rest:    "req~|~1.2.3.4:1~|~u~|~GET~|~dwn~|~i~|~1~|~",
		},
		{
			name:    "event behind a syslog header",
			payload: "<134>Oct 1 00:00:00 host proc: data_xfer~|~1.2.3.4:1~|~u~|~dwn~|~42",
			found:   true,
			rest:    "data_xfer~|~1.2.3.4:1~|~u~|~dwn~|~42",
		},
		{
			name:    "access log json",
			payload: `{"method":"GET"}`,
			found:   false,
		},
		{
			name:    "ordinary log line",
			payload: "something happened",
			found:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := findEventStart(tt.payload)
			if !tt.found {
				assert.Equal(t, -1, pos)
				return
			}
			assert.Equal(t, tt.rest, tt.payload[pos:])
		})
	}
}
