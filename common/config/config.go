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

// Package config loads the YAML process configuration for the weir
// services. Each service takes the path to its config file as the
// first argument.
package config

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"gopkg.in/yaml.v2"
)

// Exit codes for fatal configuration problems.
const (
	ExitCodeMissingConfig = int(syscall.ENOENT)
	ExitCodeInvalidConfig = int(syscall.EINVAL)
)

var (
	// ErrConfigNotFound indicates the config file path does not exist.
	ErrConfigNotFound = errors.New("config file not found")
	// ErrConfigInvalid indicates the config file could not be parsed
	// or failed validation.
	ErrConfigInvalid = errors.New("config file invalid")
)

type (
	// Collector holds the event-collector process configuration.
	Collector struct {
		Port                      int    `yaml:"port"`
		NumWorkers                int    `yaml:"num_of_syslog_servers"`
		MsgQueueSize              int    `yaml:"msg_queue_size"`
		MetricsBatchCount         int    `yaml:"metrics_batch_count"`
		MetricsBatchPeriodMsec    int    `yaml:"metrics_batch_period_msec"`
		RedisServer               string `yaml:"redis_server"`
		RedisQosTTLSec            int    `yaml:"redis_qos_ttl"`
		RedisQosConnTTLSec        int    `yaml:"redis_qos_conn_ttl"`
		RedisCheckConnIntervalSec int    `yaml:"redis_check_conn_interval_sec"`
		Endpoint                  string `yaml:"endpoint"`
		LogFileName               string `yaml:"log_file_name"`
		AccessLogFileName         string `yaml:"access_log_file_name"`
		LogLevel                  string `yaml:"log_level"`
	}

	// Polygen holds the policy-generator process configuration.
	Polygen struct {
		Zone                   string  `yaml:"zone"`
		ListenPort             int     `yaml:"listen_port"`
		SleepTimeMsec          int     `yaml:"sleep_time"`
		RedisServer            string  `yaml:"redis_server"`
		RedisKeysBatch         int     `yaml:"redis_keys_batch"`
		PolicyMsgQueueSize     int     `yaml:"policy_msg_queue_size"`
		ReqsUnblockBackoffMsec int     `yaml:"requests_unblock_backoff_time_ms"`
		ReqsUnblockRatio       float64 `yaml:"requests_unblock_ratio"`
		UnknownUsersReportSec  int     `yaml:"unknown_users_report_time_seconds"`
		MinimumLimitBytes      uint64  `yaml:"minimum_limit"`
		LogFileName            string  `yaml:"log_file_name"`
		LogLevel               string  `yaml:"log_level"`
	}

	// Edge holds the edge-proxy process configuration. The filter
	// option names mirror the proxy config keywords.
	Edge struct {
		Port                          int    `yaml:"port"`
		Upstream                      string `yaml:"upstream"`
		CollectorServer               string `yaml:"collector_server"`
		PolygenServer                 string `yaml:"polygen_server"`
		Endpoint                      string `yaml:"endpoint"`
		ActiveReqsRefreshIntervalMsec int    `yaml:"active-requests-refresh-interval"`
		UnknownUserLimitBytes         uint64 `yaml:"unknown-user-limit"`
		MinimumLimitBytes             uint64 `yaml:"minimum-limit"`
		LogFileName                   string `yaml:"log_file_name"`
		LogLevel                      string `yaml:"log_level"`
	}
)

// Load reads the YAML file at path into out.
func Load(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return nil
}

// LoadCollector loads, validates and defaults a collector config.
func LoadCollector(path string) (*Collector, error) {
	cfg := &Collector{}
	if err := Load(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: missing port", ErrConfigInvalid)
	}
	if cfg.RedisServer == "" {
		return nil, fmt.Errorf("%w: missing redis_server", ErrConfigInvalid)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: missing endpoint", ErrConfigInvalid)
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.MsgQueueSize <= 0 {
		cfg.MsgQueueSize = 100000
	}
	if cfg.MetricsBatchCount <= 0 {
		cfg.MetricsBatchCount = 250000
	}
	if cfg.MetricsBatchPeriodMsec <= 0 {
		cfg.MetricsBatchPeriodMsec = 31
	}
	if cfg.RedisQosTTLSec <= 0 {
		cfg.RedisQosTTLSec = 5
	}
	if cfg.RedisQosConnTTLSec <= 0 {
		cfg.RedisQosConnTTLSec = 60
	}
	if cfg.RedisCheckConnIntervalSec <= 0 {
		cfg.RedisCheckConnIntervalSec = 5
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// LoadPolygen loads, validates and defaults a policy-generator config.
func LoadPolygen(path string) (*Polygen, error) {
	cfg := &Polygen{}
	if err := Load(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Zone == "" {
		return nil, fmt.Errorf("%w: missing zone", ErrConfigInvalid)
	}
	if cfg.ListenPort <= 0 {
		return nil, fmt.Errorf("%w: missing listen_port", ErrConfigInvalid)
	}
	if cfg.RedisServer == "" {
		return nil, fmt.Errorf("%w: missing redis_server", ErrConfigInvalid)
	}
	if cfg.SleepTimeMsec <= 0 {
		cfg.SleepTimeMsec = 100
	}
	if cfg.RedisKeysBatch <= 0 {
		cfg.RedisKeysBatch = 1000
	}
	if cfg.PolicyMsgQueueSize <= 0 {
		cfg.PolicyMsgQueueSize = 1000
	}
	if cfg.ReqsUnblockBackoffMsec <= 0 {
		cfg.ReqsUnblockBackoffMsec = 200
	}
	if cfg.ReqsUnblockRatio <= 0 {
		cfg.ReqsUnblockRatio = 0.95
	}
	if cfg.UnknownUsersReportSec == 0 {
		cfg.UnknownUsersReportSec = 60
	}
	if cfg.MinimumLimitBytes == 0 {
		cfg.MinimumLimitBytes = 16 * 1024
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// LoadEdge loads, validates and defaults an edge config.
func LoadEdge(path string) (*Edge, error) {
	cfg := &Edge{}
	if err := Load(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: missing port", ErrConfigInvalid)
	}
	if cfg.Upstream == "" {
		return nil, fmt.Errorf("%w: missing upstream", ErrConfigInvalid)
	}
	if cfg.CollectorServer == "" {
		return nil, fmt.Errorf("%w: missing collector_server", ErrConfigInvalid)
	}
	if cfg.PolygenServer == "" {
		return nil, fmt.Errorf("%w: missing polygen_server", ErrConfigInvalid)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: missing endpoint", ErrConfigInvalid)
	}
	if cfg.ActiveReqsRefreshIntervalMsec <= 0 {
		cfg.ActiveReqsRefreshIntervalMsec = 10000
	}
	if cfg.UnknownUserLimitBytes == 0 {
		cfg.UnknownUserLimitBytes = 10 * 1024 * 1024
	}
	if cfg.MinimumLimitBytes == 0 {
		cfg.MinimumLimitBytes = 16 * 1024
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ExitCode maps a load error to the process exit code contract.
func ExitCode(err error) int {
	switch {
	case errors.Is(err, ErrConfigNotFound):
		return ExitCodeMissingConfig
	case errors.Is(err, ErrConfigInvalid):
		return ExitCodeInvalidConfig
	default:
		return 1
	}
}
