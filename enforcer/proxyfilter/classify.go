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
	"net/http"
	"strings"

	"github.com/uber/weir/types"
)

// Classify applies the operation decision table over the method, the
// presence of certain query keys, and whether the URL trims to a
// bucket-only path. Operations outside the allowlist classify as
// unclassified and are limited by their verb alone.
func Classify(r *http.Request) types.OperationClass {
	path := strings.TrimSuffix(r.URL.Path, "/")
	query := r.URL.Query()
	bucketOnly := isBucketOnlyPath(path)

	switch r.Method {
	case http.MethodGet:
		if path == "" {
			return types.OpClassListBuckets
		}
		if !bucketOnly {
			return types.OpClassGetObject
		}
		switch {
		case query.Has("uploads"):
			return types.OpClassListMultipartUploads
		case query.Has("versions"):
			return types.OpClassListObjectVersions
		case query.Get("list-type") == "2":
			return types.OpClassListObjectsV2
		default:
			return types.OpClassListObjects
		}
	case http.MethodPut:
		if bucketOnly && path != "" {
			return types.OpClassCreateBucket
		}
	case http.MethodPost:
		if bucketOnly && query.Has("delete") {
			return types.OpClassDeleteObjects
		}
	case http.MethodDelete:
		if !bucketOnly {
			return types.OpClassDeleteObject
		}
	}
	return types.OpClassNone
}

// isBucketOnlyPath reports whether the trimmed path names at most a
// bucket (no object key component).
func isBucketOnlyPath(trimmed string) bool {
	if trimmed == "" {
		return true
	}
	return strings.Count(trimmed, "/") <= 1
}
