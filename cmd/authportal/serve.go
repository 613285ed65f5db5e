// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authportal/internal/config"
	"github.com/holomush/authportal/internal/logging"
	"github.com/holomush/authportal/internal/observability"
	"github.com/holomush/authportal/internal/visitor"
	"github.com/holomush/authportal/internal/web"
	"github.com/holomush/authportal/pkg/errutil"
)

const (
	serviceName     = "authportal"
	shutdownTimeout = 10 * time.Second
)

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the portal",
		Long: `Start the portal HTTP server and, unless disabled, the metrics and
health probe server. Flags override the config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe starts the portal and blocks until a signal or a server error.
func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	var registry *visitor.Registry
	obsServer := observability.NewServer(cfg.MetricsAddr, store.ready, func() int { return registry.Len() })
	metrics := obsServer.Metrics()

	registry = visitor.NewRegistry(cfg.Visitors(), store.jars,
		visitor.WithLogger(logger),
		visitor.WithObservers(visitor.Observers{API: metrics, Cache: metrics, Coordinator: metrics}))

	pages, err := cfg.PageTable()
	if err != nil {
		return err
	}
	handler, err := web.New(web.Options{
		Registry: registry,
		Pages:    pages,
		Cookies:  cfg.CookieOptions(),
		Observer: metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return oops.Code("PORTAL_LISTEN_FAILED").With("addr", cfg.ListenAddr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		if _, err := obsServer.Start(); err != nil {
			_ = listener.Close()
			return err
		}
	}

	go registry.Run(ctx, visitor.DefaultSweepInterval)

	serveErr := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	cmd.Println("Portal started")
	logger.InfoContext(ctx, "portal ready",
		"addr", listener.Addr().String(),
		"api_base_url", cfg.API.BaseURL,
		"store", cfg.Store.Driver,
		"metrics_addr", cfg.MetricsAddr)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			runErr = oops.Code("PORTAL_SERVE_FAILED").Wrap(err)
			errutil.LogError(logger, "portal server failed", runErr)
		}
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping portal server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// visitorStore is the configured jar store with its readiness probe.
type visitorStore struct {
	jars  visitor.JarStore
	ready observability.ReadinessChecker
	close func()
}

// openStore opens the configured visitor store.
func openStore(ctx context.Context, cfg *config.Config) (*visitorStore, error) {
	if cfg.Store.Driver != config.StoreRedis {
		return &visitorStore{
			jars:  visitor.NewMemoryStore(),
			ready: func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}

	opts := []visitor.RedisOption{visitor.WithPrefix(cfg.Store.Prefix)}
	if cfg.Session.JarSecret != "" {
		sealer, err := visitor.NewSealer(cfg.Session.JarSecret)
		if err != nil {
			return nil, err
		}
		opts = append(opts, visitor.WithSealer(sealer))
	} else {
		slog.Warn("session.jar_secret is empty; remote session cookies are stored unencrypted")
	}

	client, err := visitor.NewRedisClient(ctx, cfg.Store.RedisURL)
	if err != nil {
		return nil, err
	}
	store := visitor.NewRedisStore(client, opts...)
	return &visitorStore{
		jars:  store,
		ready: store.Ping,
		close: func() {
			if err := client.Close(); err != nil {
				slog.Warn("error closing redis client", "error", err)
			}
		},
	}, nil
}
