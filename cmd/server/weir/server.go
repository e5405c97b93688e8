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

// Package weir wires configuration, logging and metrics into runnable
// service daemons for the server binary.
package weir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uber/weir/collector"
	"github.com/uber/weir/common/clock"
	"github.com/uber/weir/common/config"
	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/membership"
	"github.com/uber/weir/common/metrics"
	"github.com/uber/weir/enforcer"
	"github.com/uber/weir/enforcer/proxyfilter"
	"github.com/uber/weir/polygen"
)

// Service names accepted by --services.
const (
	ServiceCollector = "collector"
	ServicePolygen   = "polygen"
	ServiceEdge      = "edge"
)

// Daemon is one runnable weir service.
type Daemon interface {
	Start() error
	Stop() error
}

// NewDaemon builds the named service from its config file.
func NewDaemon(service string, configPath string) (Daemon, error) {
	switch service {
	case ServiceCollector:
		return newCollectorDaemon(configPath)
	case ServicePolygen:
		return newPolygenDaemon(configPath)
	case ServiceEdge:
		return newEdgeDaemon(configPath)
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
}

func newCollectorDaemon(configPath string) (Daemon, error) {
	cfg, err := config.LoadCollector(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := log.NewFileLogger(cfg.LogFileName, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	accessLogger, err := log.NewFileLogger(cfg.AccessLogFileName, "info")
	if err != nil {
		return nil, err
	}
	scope, _ := metrics.NewServiceScope(ServiceCollector)
	return collector.NewService(cfg, logger, accessLogger, scope), nil
}

func newPolygenDaemon(configPath string) (Daemon, error) {
	cfg, err := config.LoadPolygen(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := log.NewFileLogger(cfg.LogFileName, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	scope, _ := metrics.NewServiceScope(ServicePolygen)
	return polygen.New(cfg, logger, scope)
}

type edgeDaemon struct {
	enforcer *enforcer.Enforcer
	server   *http.Server
	cfg      *config.Edge
	logger   log.Logger
	cancel   context.CancelFunc
	group    *errgroup.Group
}

func newEdgeDaemon(configPath string) (Daemon, error) {
	cfg, err := config.LoadEdge(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := log.NewFileLogger(cfg.LogFileName, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	scope, _ := metrics.NewServiceScope(ServiceEdge)

	instanceID, err := membership.LocalInstanceID(cfg.Port)
	if err != nil {
		return nil, err
	}
	emitter, err := enforcer.NewUDPEmitter(cfg.CollectorServer, logger)
	if err != nil {
		return nil, err
	}
	enf := enforcer.New(enforcer.Config{
		InstanceID:       instanceID,
		RefreshInterval:  time.Duration(cfg.ActiveReqsRefreshIntervalMsec) * time.Millisecond,
		UnknownUserLimit: uint32(cfg.UnknownUserLimitBytes),
		MinimumLimit:     uint32(cfg.MinimumLimitBytes),
	}, emitter, clock.NewRealTimeSource(), logger, scope)
	if err := enforcer.Init(enf); err != nil {
		return nil, err
	}

	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %q: %w", cfg.Upstream, err)
	}
	proxy := httputil.NewSingleHostReverseProxy(upstream)

	mux := http.NewServeMux()
	mux.Handle("/", proxyfilter.NewMiddleware(enf, proxy, logger))
	mux.HandleFunc("/weir/limits", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(enf.DumpLimits())
	})

	return &edgeDaemon{
		enforcer: enf,
		cfg:      cfg,
		logger:   logger,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: mux,
		},
	}, nil
}

func (d *edgeDaemon) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.group, ctx = errgroup.WithContext(ctx)
	d.group.Go(func() error { return d.enforcer.RunPolicyChannel(ctx, d.cfg.PolygenServer) })
	d.group.Go(func() error { return d.enforcer.RunActiveReqsRefresh(ctx) })
	d.group.Go(func() error { return d.enforcer.RunThrottleSweeper(ctx) })
	d.group.Go(func() error {
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return nil
}

func (d *edgeDaemon) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = d.server.Shutdown(shutdownCtx)
	if d.cancel != nil {
		d.cancel()
	}
	enforcer.Shutdown()
	if d.group != nil {
		return d.group.Wait()
	}
	return nil
}
