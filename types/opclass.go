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

package types

// OperationClass names an expensive protocol operation that can carry
// its own rate limit, narrower than the HTTP method. The empty string
// means "unclassified".
type OperationClass string

// The closed allowlist of operation classes.
const (
	OpClassNone                 OperationClass = ""
	OpClassGetObject            OperationClass = "GETOBJECT"
	OpClassListBuckets          OperationClass = "LISTBUCKETS"
	OpClassListObjects          OperationClass = "LISTOBJECTS"
	OpClassListObjectsV2        OperationClass = "LISTOBJECTSV2"
	OpClassListObjectVersions   OperationClass = "LISTOBJECTVERSIONS"
	OpClassListMultipartUploads OperationClass = "LISTMULTIPARTUPLOADS"
	OpClassDeleteObject         OperationClass = "DELETEOBJECT"
	OpClassDeleteObjects        OperationClass = "DELETEOBJECTS"
	OpClassCreateBucket         OperationClass = "CREATEBUCKET"
)

var operationClasses = map[OperationClass]struct{}{
	OpClassGetObject:            {},
	OpClassListBuckets:          {},
	OpClassListObjects:          {},
	OpClassListObjectsV2:        {},
	OpClassListObjectVersions:   {},
	OpClassListMultipartUploads: {},
	OpClassDeleteObject:         {},
	OpClassDeleteObjects:        {},
	OpClassCreateBucket:         {},
}

// Valid reports whether c is in the allowlist or unclassified.
func (c OperationClass) Valid() bool {
	if c == OpClassNone {
		return true
	}
	_, ok := operationClasses[c]
	return ok
}
