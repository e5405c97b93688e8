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

// Package membership identifies one edge process within the fleet.
package membership

import (
	"fmt"
	"os"
	"strings"
)

// InstanceID builds the fleet-wide identity of one edge process from
// its host name and listening port. Underscores are substituted because
// '_' is the separator inside compound KV keys; two hosts differing
// only by '-' vs '_' would then collide, which is accepted as the
// lesser evil (an explicit host name can work around it).
func InstanceID(hostname string, port int) string {
	id := fmt.Sprintf("%s-%d", hostname, port)
	return strings.ReplaceAll(id, "_", "-")
}

// LocalInstanceID builds the instance id from os.Hostname.
func LocalInstanceID(port int) (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return InstanceID(host, port), nil
}
