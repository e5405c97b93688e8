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

package tag

import (
	"time"

	"go.uber.org/zap"
)

// Tag is a typed key/value pair attached to a log message.
type Tag struct {
	field zap.Field
}

// Field returns the underlying zap field.
func (t Tag) Field() zap.Field {
	return t.field
}

func newStringTag(key string, value string) Tag {
	return Tag{field: zap.String(key, value)}
}

func newInt64Tag(key string, value int64) Tag {
	return Tag{field: zap.Int64(key, value)}
}

func newIntTag(key string, value int) Tag {
	return Tag{field: zap.Int(key, value)}
}

// Error returns a tag for an error value.
func Error(err error) Tag {
	return Tag{field: zap.Error(err)}
}

// UserKey returns a tag for the rate-limiting principal of a request.
func UserKey(key string) Tag {
	return newStringTag("user-key", key)
}

// Direction returns a tag for a transfer direction ("up" / "dwn").
func Direction(dir string) Tag {
	return newStringTag("direction", dir)
}

// InstanceID returns a tag for an edge instance identity.
func InstanceID(id string) Tag {
	return newStringTag("instance-id", id)
}

// Endpoint returns a tag for the service deployment identifier.
func Endpoint(endpoint string) Tag {
	return newStringTag("endpoint", endpoint)
}

// Verb returns a tag for an HTTP method or operation class.
func Verb(verb string) Tag {
	return newStringTag("verb", verb)
}

// Address returns a tag for a network address.
func Address(addr string) Tag {
	return newStringTag("address", addr)
}

// Port returns a tag for a listening port.
func Port(p int) Tag {
	return newIntTag("port", p)
}

// WorkerID returns a tag for a collector worker index.
func WorkerID(id int) Tag {
	return newIntTag("worker-id", id)
}

// Counter returns a tag for a generic count value.
func Counter(n int) Tag {
	return newIntTag("counter", n)
}

// Timestamp returns a tag for an epoch timestamp value.
func Timestamp(ts int64) Tag {
	return newInt64Tag("timestamp", ts)
}

// Duration returns a tag for an elapsed time.
func Duration(d time.Duration) Tag {
	return Tag{field: zap.Duration("duration", d)}
}

// Value returns a tag for an arbitrary value; prefer a typed tag when
// one exists.
func Value(v interface{}) Tag {
	return Tag{field: zap.Any("value", v)}
}

// Payload returns a tag carrying a raw wire message.
func Payload(line string) Tag {
	return newStringTag("payload", line)
}

// Key returns a tag for a KV-store key.
func Key(k string) Tag {
	return newStringTag("key", k)
}
