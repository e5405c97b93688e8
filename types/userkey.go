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

// Package types holds the shared data model of the weir QoS layer:
// user keys, transfer directions, operation classes, the per-tier
// limits table and the compound KV-store key formats.
package types

// Reserved user keys and tier names.
const (
	// AnonymousUserKey attributes requests that carry no credential.
	AnonymousUserKey = "common"
	// InvalidUserKey attributes requests whose credential failed
	// validation. Kept at the canonical key length so it is subject
	// to the same table handling as a real key.
	InvalidUserKey = "INVALIDACCESSKEY0000"
	// DefaultTier is the tier used for users without an explicit
	// tier assignment.
	DefaultTier = "DEFAULT"

	// UserKeyLength is the canonical credential length.
	UserKeyLength = 20
	// LegacyUserKeyLength is the grandfathered shorter credential
	// length, still accepted.
	LegacyUserKeyLength = 19
)

// IsPrintableASCII reports whether every byte of s is printable ASCII.
func IsPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// ValidUserKey reports whether raw is an acceptable credential: 20 (or
// the legacy 19) printable alphanumeric characters.
func ValidUserKey(raw string) bool {
	if len(raw) != UserKeyLength && len(raw) != LegacyUserKeyLength {
		return false
	}
	return isAlphanumeric(raw)
}

// NormalizeUserKey maps an extracted credential to the key used for
// attribution: the credential itself if valid, the invalid-key
// sentinel otherwise. Callers that found no credential at all should
// use AnonymousUserKey instead.
func NormalizeUserKey(raw string) string {
	if ValidUserKey(raw) {
		return raw
	}
	return InvalidUserKey
}
