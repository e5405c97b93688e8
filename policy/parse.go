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

package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/uber/weir/types"
)

const (
	userScopePrefix = "user_"
	bandwidthPrefix = "user_bnd_"
	reqsBlockTag    = "user_reqs_block"
	reqsUnblockTag  = "user_reqs_unblock"
)

// ParseViolationLine parses one record inside a policies block.
func ParseViolationLine(line string) (Message, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return nil, fmt.Errorf("violation record %q: too few fields", line)
	}

	// Block records carry no timestamp; everything else leads with
	// the epoch in microseconds.
	if fields[0] == reqsBlockTag || fields[0] == reqsUnblockTag {
		users := compactUsers(fields[1:])
		if len(users) == 0 {
			return nil, fmt.Errorf("violation record %q: no users", line)
		}
		if fields[0] == reqsBlockTag {
			return ReqsBlock{Users: users}, nil
		}
		return ReqsUnblock{Users: users}, nil
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("violation record %q: bad timestamp", line)
	}
	tag := fields[1]
	if strings.HasPrefix(tag, bandwidthPrefix) {
		dir, err := types.ParseDirection(strings.TrimPrefix(tag, bandwidthPrefix))
		if err != nil {
			return nil, fmt.Errorf("violation record %q: %v", line, err)
		}
		users, err := parseUserRatios(fields[2:])
		if err != nil {
			return nil, fmt.Errorf("violation record %q: %v", line, err)
		}
		return BandwidthViolation{TimestampUsec: ts, Direction: dir, Users: users}, nil
	}
	if strings.HasPrefix(tag, userScopePrefix) {
		users := compactUsers(fields[2:])
		if len(users) == 0 {
			return nil, fmt.Errorf("violation record %q: no users", line)
		}
		return RateViolation{
			TimestampUsec: ts,
			Category:      strings.TrimPrefix(tag, userScopePrefix),
			Users:         users,
		}, nil
	}
	return nil, fmt.Errorf("violation record %q: unrecognized category %q", line, tag)
}

func compactUsers(fields []string) []string {
	users := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			users = append(users, f)
		}
	}
	return users
}

func parseUserRatios(fields []string) ([]UserRatio, error) {
	users := make([]UserRatio, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		user, ratioStr, found := strings.Cut(f, ":")
		ur := UserRatio{User: user, DiffRatio: 1.0}
		if found {
			ratio, err := strconv.ParseFloat(ratioStr, 64)
			if err != nil {
				return nil, fmt.Errorf("bad diff ratio %q", f)
			}
			ur.DiffRatio = ratio
		}
		users = append(users, ur)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("no users")
	}
	return users, nil
}

// ParseLimitShareLine parses one record inside a limit_share block:
// <ts_sec>,<user_key>,<inst>_<dir>_<bytes>[,...].
func ParseLimitShareLine(line string) (LimitShare, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return LimitShare{}, fmt.Errorf("limit-share record %q: too few fields", line)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return LimitShare{}, fmt.Errorf("limit-share record %q: bad timestamp", line)
	}
	share := LimitShare{TimestampSec: ts, User: fields[1]}
	for _, f := range fields[2:] {
		if f == "" {
			continue
		}
		entry, err := parseShareEntry(f)
		if err != nil {
			return LimitShare{}, fmt.Errorf("limit-share record %q: %v", line, err)
		}
		share.Shares = append(share.Shares, entry)
	}
	if len(share.Shares) == 0 {
		return LimitShare{}, fmt.Errorf("limit-share record %q: no shares", line)
	}
	return share, nil
}

// parseShareEntry splits <inst>_<dir>_<bytes>. Instance ids contain no
// underscores, so the first and last separators are unambiguous.
func parseShareEntry(s string) (LimitShareEntry, error) {
	first := strings.Index(s, "_")
	last := strings.LastIndex(s, "_")
	if first < 0 || last <= first {
		return LimitShareEntry{}, fmt.Errorf("bad share entry %q", s)
	}
	dir, err := types.ParseDirection(s[first+1 : last])
	if err != nil {
		return LimitShareEntry{}, fmt.Errorf("bad share entry %q: %v", s, err)
	}
	bytes, err := strconv.ParseUint(s[last+1:], 10, 64)
	if err != nil {
		return LimitShareEntry{}, fmt.Errorf("bad share entry %q: %v", s, err)
	}
	return LimitShareEntry{InstanceID: s[:first], Direction: dir, Bytes: bytes}, nil
}
