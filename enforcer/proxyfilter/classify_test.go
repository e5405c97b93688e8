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

package proxyfilter

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uber/weir/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		want   types.OperationClass
	}{
		{name: "list buckets", method: "GET", target: "/", want: types.OpClassListBuckets},
		{name: "list objects", method: "GET", target: "/bucket", want: types.OpClassListObjects},
		{name: "list objects trailing slash", method: "GET", target: "/bucket/", want: types.OpClassListObjects},
		{name: "list objects v2", method: "GET", target: "/bucket?list-type=2", want: types.OpClassListObjectsV2},
		{name: "list versions", method: "GET", target: "/bucket?versions", want: types.OpClassListObjectVersions},
		{name: "list multipart uploads", method: "GET", target: "/bucket?uploads", want: types.OpClassListMultipartUploads},
		{name: "get object", method: "GET", target: "/bucket/key", want: types.OpClassGetObject},
		{name: "get nested object", method: "GET", target: "/bucket/dir/key", want: types.OpClassGetObject},
		{name: "create bucket", method: "PUT", target: "/bucket", want: types.OpClassCreateBucket},
		{name: "put object unclassified", method: "PUT", target: "/bucket/key", want: types.OpClassNone},
		{name: "delete objects batch", method: "POST", target: "/bucket?delete", want: types.OpClassDeleteObjects},
		{name: "post object unclassified", method: "POST", target: "/bucket/key", want: types.OpClassNone},
		{name: "delete object", method: "DELETE", target: "/bucket/key", want: types.OpClassDeleteObject},
		{name: "delete bucket unclassified", method: "DELETE", target: "/bucket", want: types.OpClassNone},
		{name: "head unclassified", method: "HEAD", target: "/bucket/key", want: types.OpClassNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			got := Classify(r)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}
