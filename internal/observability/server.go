// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package observability serves Prometheus metrics and health probes, and
// holds the server-wide connection and login counters.
package observability

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// Probe paths.
const (
	LivenessPath  = "/healthz/liveness"
	ReadinessPath = "/healthz/readiness"
	MetricsPath   = "/metrics"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// commandOutputFailures counts failed writes of command output. It is
// package-level so behaviors can record it without a Server.
var commandOutputFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "azimuth_command_output_failures_total",
		Help: "Total number of command output write failures by verb",
	},
	[]string{"verb"},
)

// RecordCommandOutputFailure increments the output failure counter for verb.
func RecordCommandOutputFailure(verb string) {
	commandOutputFailures.WithLabelValues(verb).Inc()
}

// Metrics holds the connection and login counters.
type Metrics struct {
	// ConnectionsTotal counts accepted connections by transport.
	ConnectionsTotal *prometheus.CounterVec
	// AuthAttempts counts login and registration attempts by kind and status.
	AuthAttempts *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "azimuth_connections_total",
				Help: "Total number of accepted connections by transport",
			},
			[]string{"transport"},
		),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "azimuth_auth_attempts_total",
				Help: "Total number of login and registration attempts by kind and status",
			},
			[]string{"kind", "status"},
		),
	}
	reg.MustRegister(m.ConnectionsTotal, m.AuthAttempts, commandOutputFailures)
	return m
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates an observability server with its own registry holding
// the Go runtime, process, and Azimuth metrics.
// addr is "host:port"; ":9100" listens on all interfaces.
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		isReady:  readinessChecker,
	}
}

// Metrics returns the connection and login counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registerer returns the server's registry so other components (command
// dispatch, sessions, the object store) can add their collectors.
func (s *Server) Registerer() prometheus.Registerer {
	return s.registry
}

// Start begins serving in the background. The returned channel receives a
// serve error, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc(LivenessPath, s.handleLiveness)
	mux.HandleFunc(ReadinessPath, s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		// httpSrv, not s.httpServer: a later Start must not race this goroutine.
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}

// Probe asks a running server at addr whether it is ready. It returns nil
// only for a 200 from the readiness endpoint.
func Probe(ctx context.Context, addr string) error {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+ReadinessPath, nil)
	if err != nil {
		return oops.Code("PROBE_FAILED").With("addr", addr).Wrap(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return oops.Code("PROBE_FAILED").With("addr", addr).Wrapf(err, "server is not reachable")
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return oops.Code("NOT_READY").
			With("addr", addr).
			With("status", resp.StatusCode).
			Errorf("server is not ready: %s", strings.TrimSpace(string(body)))
	}
	return nil
}
