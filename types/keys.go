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

import (
	"fmt"
	"strconv"
	"strings"
)

// Compound KV-store key construction. '_' separates key sections and
// '$' separates the user key from the endpoint; neither may occur
// inside the joined components (instance ids substitute '_', user
// keys are alphanumeric).
const (
	verbKeyPrefix = "verb_"
	connKeyPrefix = "conn_v2_user_"

	// EndpointSeparator splits the user key from the deployment
	// endpoint inside a compound key.
	EndpointSeparator = "$"
)

// Hash field names carrying byte counters on verb keys.
const (
	BandwidthUpField   = "bnd_up"
	BandwidthDownField = "bnd_dwn"
)

// BandwidthField returns the verb-key hash field for a direction.
func BandwidthField(dir Direction) string {
	if dir == DirectionUp {
		return BandwidthUpField
	}
	return BandwidthDownField
}

// VerbKey builds `verb_<sec>_user_<key>$<endpoint>`. The timestamp is
// truncated to seconds so every sub-second variation of the same
// second yields the identical key.
func VerbKey(epochSec int64, userKey string, endpoint string) string {
	return fmt.Sprintf("%s%d_user_%s%s%s", verbKeyPrefix, epochSec, userKey, EndpointSeparator, endpoint)
}

// VerbKeyScanPattern matches all verb keys for one second.
func VerbKeyScanPattern(epochSec int64) string {
	return fmt.Sprintf("%s%d_*", verbKeyPrefix, epochSec)
}

// ConnKey builds `conn_v2_user_<dir>_<instance>_<key>$<endpoint>`.
func ConnKey(dir Direction, instanceID string, userKey string, endpoint string) string {
	return fmt.Sprintf("%s%s_%s_%s%s%s", connKeyPrefix, dir, instanceID, userKey, EndpointSeparator, endpoint)
}

// ConnKeyScanPattern matches all concurrent-request keys.
const ConnKeyScanPattern = "conn_*"

// ConnV2KeyScanPattern matches per-instance concurrent-request keys.
const ConnV2KeyScanPattern = "conn_v2_*"

// ParsedVerbKey is the decomposition of a verb key.
type ParsedVerbKey struct {
	EpochSec int64
	UserKey  string
	Endpoint string
}

// ParseVerbKey decomposes `verb_<sec>_user_<key>$<endpoint>`.
func ParseVerbKey(key string) (ParsedVerbKey, error) {
	parts := strings.SplitN(key, "_", 4)
	if len(parts) != 4 || parts[0] != "verb" || parts[2] != "user" {
		return ParsedVerbKey{}, fmt.Errorf("invalid verb key %q", key)
	}
	sec, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ParsedVerbKey{}, fmt.Errorf("invalid verb key %q: bad timestamp", key)
	}
	userEndpoint := strings.SplitN(parts[3], EndpointSeparator, 2)
	if len(userEndpoint) != 2 {
		return ParsedVerbKey{}, fmt.Errorf("invalid verb key %q: missing endpoint", key)
	}
	return ParsedVerbKey{EpochSec: sec, UserKey: userEndpoint[0], Endpoint: userEndpoint[1]}, nil
}

// ParsedConnKey is the decomposition of a concurrent-request key.
type ParsedConnKey struct {
	Direction  Direction
	InstanceID string
	UserKey    string
	Endpoint   string
}

// ParseConnKey decomposes `conn_v2_user_<dir>_<instance>_<key>$<endpoint>`.
func ParseConnKey(key string) (ParsedConnKey, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 6 || parts[0] != "conn" || parts[1] != "v2" || parts[2] != "user" {
		return ParsedConnKey{}, fmt.Errorf("invalid conn key %q", key)
	}
	dir, err := ParseDirection(parts[3])
	if err != nil {
		return ParsedConnKey{}, fmt.Errorf("invalid conn key %q: %v", key, err)
	}
	userEndpoint := strings.SplitN(parts[5], EndpointSeparator, 2)
	if len(userEndpoint) != 2 {
		return ParsedConnKey{}, fmt.Errorf("invalid conn key %q: missing endpoint", key)
	}
	return ParsedConnKey{
		Direction:  dir,
		InstanceID: parts[4],
		UserKey:    userEndpoint[0],
		Endpoint:   userEndpoint[1],
	}, nil
}

// UserCategory builds the `user_<VERB>` limit-category tag used in
// violation messages and the limits table.
func UserCategory(verbOrClass string) string {
	return "user_" + verbOrClass
}
