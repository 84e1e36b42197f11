// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/azimuth-mud/azimuth/internal/api"
	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/config"
	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/engine"
	"github.com/azimuth-mud/azimuth/internal/logging"
	"github.com/azimuth-mud/azimuth/internal/observability"
	"github.com/azimuth-mud/azimuth/internal/telnet"
	"github.com/azimuth-mud/azimuth/internal/websocket"
)

const (
	shutdownTimeout = 10 * time.Second
	listenTimeout   = 5 * time.Second
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// Hasher hashes seeded and registered passwords.
	// Default: auth.NewArgon2idHasher
	Hasher auth.PasswordHasher

	// OnReady is called once every listener is bound.
	OnReady func(addrs ListenAddrs)

	// SkipLogging leaves the default logger alone.
	SkipLogging bool
}

// ListenAddrs reports the bound listener addresses.
type ListenAddrs struct {
	Telnet  string
	HTTP    string
	Metrics string
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the world server",
		Long: `Load the world (seeding it on first start) and serve players over
telnet and websocket, with the read-only query API on the HTTP listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe runs the server until ctx is cancelled or a listener fails.
func runServe(ctx context.Context, cfg *config.Config, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.Hasher == nil {
		deps.Hasher = auth.NewArgon2idHasher()
	}

	if !deps.SkipLogging {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logging.SetDefault("azimuth", version, cfg.Log.Format, level)
	}

	slog.Info("starting server",
		"world_id", cfg.World.ID,
		"storage", cfg.Storage.Driver,
		"telnet_addr", cfg.Telnet.Addr,
		"http_addr", cfg.HTTP.Addr,
	)

	var ready atomic.Bool
	obs := observability.NewServer(cfg.Metrics.Addr, ready.Load)
	reg := obs.Registerer()

	backend, err := openBackend(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	lw, err := loadWorld(ctx, cfg, backend, deps.Hasher, reg)
	if err != nil {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Warn("error closing storage", "error", closeErr)
		}
		return err
	}
	lw.store.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := lw.store.Close(closeCtx); err != nil {
			slog.Error("failed to save world on shutdown", "error", err)
		}
	}()

	command.RegisterMetrics(reg)
	limiter := command.NewRateLimiter(command.RateLimiterConfig{
		BurstCapacity: cfg.RateLimit.Burst,
		SustainedRate: cfg.RateLimit.Rate,
		Registerer:    reg,
	})
	defer limiter.Close()

	eng, err := engine.New(lw.graph, lw.registry,
		engine.WithHasher(deps.Hasher),
		engine.WithMetrics(obs.Metrics()),
		engine.WithRegistration(cfg.World.Registration),
		engine.WithSessionOptions(core.WithSessionMetrics(reg)),
		engine.WithDispatcherOptions(
			command.WithRateLimiter(limiter),
			command.WithEnvironmentFirst(cfg.Dispatch.EnvironmentFirst),
			command.WithFlusher(lw.store),
		),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	telnetCtx, stopTelnet := context.WithCancel(context.WithoutCancel(ctx))
	defer stopTelnet()
	telnetSrv := telnet.NewServer(cfg.Telnet.Addr, eng)
	telnetErr := make(chan error, 1)
	go func() {
		telnetErr <- telnetSrv.Run(telnetCtx)
	}()
	if err := waitForListener(ctx, telnetSrv.Addr, telnetErr); err != nil {
		return err
	}

	mux := http.NewServeMux()
	api.NewHandler(lw.graph).Register(mux)
	mux.Handle("GET /ws", websocket.NewServer(eng, websocket.WithAllowedOrigins(cfg.HTTP.AllowedOrigins...)))
	httpSrv := api.NewServer(cfg.HTTP.Addr, mux)
	httpErr, err := httpSrv.Start()
	if err != nil {
		stopTelnet()
		<-telnetErr
		return oops.Code("HTTP_LISTEN_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErr, "http")

	if cfg.Metrics.Addr != "" {
		obsErr, err := obs.Start()
		if err != nil {
			stopServers(eng, stopTelnet, telnetErr, httpSrv, nil)
			return oops.Code("METRICS_LISTEN_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErr, "observability")
	}

	ready.Store(true)
	addrs := ListenAddrs{Telnet: telnetSrv.Addr(), HTTP: httpSrv.Addr(), Metrics: obs.Addr()}
	slog.Info("server ready",
		"world_id", cfg.World.ID,
		"seeded", lw.seeded,
		"objects", lw.graph.Len(),
		"telnet_addr", addrs.Telnet,
		"http_addr", addrs.HTTP,
	)
	if deps.OnReady != nil {
		deps.OnReady(addrs)
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-telnetErr:
		// Run only returns early when the listener fails.
		telnetErr <- err
		runErr = oops.Code("TELNET_FAILED").Wrap(err)
	}

	ready.Store(false)
	stopServers(eng, stopTelnet, telnetErr, httpSrv, obs)
	slog.Info("shutdown complete")
	return runErr
}

// stopServers tells sessions the server is going away, then stops the
// listeners. The telnet server returns once its connections are closed.
func stopServers(eng *engine.Engine, stopTelnet context.CancelFunc, telnetErr <-chan error, httpSrv *api.Server, obs *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	eng.Shutdown(ctx)
	stopTelnet()
	if err := <-telnetErr; err != nil {
		slog.Warn("telnet server error", "error", err)
	}
	if err := httpSrv.Stop(ctx); err != nil {
		slog.Warn("error stopping http server", "error", err)
	}
	if obs != nil {
		if err := obs.Stop(ctx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
}

// waitForListener polls addr until the server has bound its listener.
func waitForListener(ctx context.Context, addr func() string, errCh <-chan error) error {
	backoff := retry.WithMaxDuration(listenTimeout, retry.NewConstant(10*time.Millisecond))
	return retry.Do(ctx, backoff, func(_ context.Context) error {
		select {
		case err := <-errCh:
			return err
		default:
		}
		if addr() == "" {
			return retry.RetryableError(oops.Errorf("listener not bound yet"))
		}
		return nil
	})
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
