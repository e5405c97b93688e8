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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCollectorDefaults(t *testing.T) {
	path := writeConfig(t, `
port: 5140
redis_server: "redis.dev:6379"
endpoint: "dev.dc"
`)
	cfg, err := LoadCollector(path)
	require.NoError(t, err)
	assert.Equal(t, 5140, cfg.Port)
	assert.Equal(t, 1, cfg.NumWorkers)
	assert.Equal(t, 250000, cfg.MetricsBatchCount)
	assert.Equal(t, 31, cfg.MetricsBatchPeriodMsec)
	assert.Equal(t, 60, cfg.RedisQosConnTTLSec)
	assert.Equal(t, 5, cfg.RedisCheckConnIntervalSec)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadCollectorMissingFile(t *testing.T) {
	_, err := LoadCollector(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
	assert.Equal(t, ExitCodeMissingConfig, ExitCode(err))
}

func TestLoadCollectorBadYAML(t *testing.T) {
	path := writeConfig(t, "port: [not a port\n")
	_, err := LoadCollector(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Equal(t, ExitCodeInvalidConfig, ExitCode(err))
}

func TestLoadCollectorMissingRequiredKeys(t *testing.T) {
	path := writeConfig(t, "port: 5140\n")
	_, err := LoadCollector(path)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestLoadPolygenDefaults(t *testing.T) {
	path := writeConfig(t, `
zone: dev
listen_port: 4840
redis_server: "redis.dev:6379"
`)
	cfg, err := LoadPolygen(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.SleepTimeMsec)
	assert.Equal(t, 200, cfg.ReqsUnblockBackoffMsec)
	assert.Equal(t, 0.95, cfg.ReqsUnblockRatio)
	assert.Equal(t, uint64(16*1024), cfg.MinimumLimitBytes)
}

func TestLoadEdgeDefaults(t *testing.T) {
	path := writeConfig(t, `
port: 8080
upstream: "http://backend:9000"
collector_server: "127.0.0.1:5140"
polygen_server: "polygen.dev:4840"
endpoint: "dev.dc"
`)
	cfg, err := LoadEdge(path)
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.ActiveReqsRefreshIntervalMsec)
	assert.Equal(t, uint64(10*1024*1024), cfg.UnknownUserLimitBytes)
	assert.Equal(t, uint64(16*1024), cfg.MinimumLimitBytes)
}

func TestLoadEdgeFilterOptions(t *testing.T) {
	path := writeConfig(t, `
port: 8080
upstream: "http://backend:9000"
collector_server: "127.0.0.1:5140"
polygen_server: "polygen.dev:4840"
endpoint: "dev.dc"
active-requests-refresh-interval: 5000
unknown-user-limit: 1048576
minimum-limit: 4096
`)
	cfg, err := LoadEdge(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.ActiveReqsRefreshIntervalMsec)
	assert.Equal(t, uint64(1048576), cfg.UnknownUserLimitBytes)
	assert.Equal(t, uint64(4096), cfg.MinimumLimitBytes)
}
