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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Limit categories stored per tier in the limits file.
const (
	CategoryBandwidthUp   = "user_bnd_up"
	CategoryBandwidthDown = "user_bnd_dwn"
	CategoryConns         = "user_conns"
)

// Hard-coded fallbacks used when even the DEFAULT tier does not cover
// a category. Bandwidth limits in the file are MB/s.
const (
	DefaultVerbRateLimit  = 1000.0
	DefaultBandwidthLimit = 250.0
	DefaultConnsLimit     = 5000.0

	// MB scales configured bandwidth limits to bytes.
	MB = 1024 * 1024
)

// CacheLimitsFileName is the base name of the per-zone limits file,
// located in the home directory as weir_<zone>_cache_limits.json.
const CacheLimitsFileName = "cache_limits.json"

type (
	// LimitsConfig is the user-to-tier mapping plus the tier table,
	// loaded from the JSON limits file.
	LimitsConfig struct {
		UserToQoSID map[string]string             `json:"user_to_qos_id"`
		QoS         map[string]map[string]float64 `json:"qos"`
	}
)

// CacheLimitsPath returns the per-zone limits file path under the
// current user's home directory.
func CacheLimitsPath(zone string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fmt.Sprintf("weir_%s_%s", zone, CacheLimitsFileName)), nil
}

// LoadLimitsFile reads and parses a limits JSON file. A missing file
// yields an empty config (all lookups fall through to defaults).
func LoadLimitsFile(path string) (*LimitsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LimitsConfig{}, nil
		}
		return nil, err
	}
	cfg := &LimitsConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid limits file %s: %w", path, err)
	}
	return cfg, nil
}

// LimitFor resolves the limit for one category and user: the user's
// tier if mapped and the tier defines the category, else the DEFAULT
// tier, else a hard-coded default. known is false when the user had
// no usable tier assignment, so callers can report unknown users.
func (c *LimitsConfig) LimitFor(category string, userKey string) (limit float64, known bool) {
	if tierName, ok := c.UserToQoSID[userKey]; ok {
		if tier, ok := c.QoS[tierName]; ok {
			if v, ok := tier[category]; ok {
				return v, true
			}
		}
	}
	if tier, ok := c.QoS[DefaultTier]; ok {
		if v, ok := tier[category]; ok {
			return v, false
		}
	}
	return hardCodedLimit(category), false
}

func hardCodedLimit(category string) float64 {
	switch category {
	case CategoryBandwidthUp, CategoryBandwidthDown:
		return DefaultBandwidthLimit
	case CategoryConns:
		return DefaultConnsLimit
	default:
		return DefaultVerbRateLimit
	}
}
