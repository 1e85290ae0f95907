// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/inbox/lib/applist"
	"github.com/bureau-foundation/inbox/lib/clock"
	"github.com/bureau-foundation/inbox/lib/config"
	"github.com/bureau-foundation/inbox/lib/desktop"
	"github.com/bureau-foundation/inbox/lib/metrics"
	"github.com/bureau-foundation/inbox/lib/process"
	"github.com/bureau-foundation/inbox/lib/remote"
	"github.com/bureau-foundation/inbox/lib/service"
	"github.com/bureau-foundation/inbox/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		socketPath  string
		showVersion bool
	)

	flags := pflag.NewFlagSet("bureau-inbox-service", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to inbox.yaml (default: $"+config.EnvironmentVariable+", or built-in defaults)")
	flags.StringVar(&socketPath, "socket", "", "hub socket path (overrides paths.socket)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("bureau-inbox-service")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Paths.Socket = socketPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := applist.New(applist.Config{
		Descriptors: descriptorProvider(cfg),
		Transport: &remote.SocketTransport{
			Clock:            clock.Real(),
			Logger:           logger.With("component", "remote"),
			HeartbeatTimeout: cfg.HeartbeatTimeout(),
			CallTimeout:      cfg.CallTimeout(),
		},
		Launcher: &desktop.ExecLauncher{Logger: logger.With("component", "launcher")},
		Logger:   logger.With("component", "registry"),
	})
	if err != nil {
		return fmt.Errorf("creating registry: %w", err)
	}
	defer registry.Close()

	// Preloaded applications are visible (and launchable) before they
	// register themselves.
	for _, identity := range cfg.Applications {
		if _, err := registry.Add(identity); err != nil {
			logger.Warn("skipping configured application", "desktop_id", identity, "error", err)
		}
	}

	metricsRegistry := metrics.NewRegistry()
	hub := newHub(registry, metrics.NewHubMetrics(metricsRegistry, registry), clock.Real(), logger)
	defer hub.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.Socket), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}

	socketServer := service.NewSocketServer(cfg.Paths.Socket, logger)
	hub.registerActions(socketServer)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	if address := cfg.Metrics.ListenAddress; address != "" {
		metricsServer, err := serveMetrics(address, metricsRegistry, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("inbox hub running",
		"socket", cfg.Paths.Socket,
		"environment", cfg.Environment,
		"applications", len(registry.ListApplications()),
		"version", version.Info(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	return nil
}

// loadConfig resolves the configuration source: an explicit --config
// path, then BUREAU_INBOX_CONFIG, then the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	cfg := config.Default()
	cfg.ExpandVariables()
	return cfg, nil
}

// descriptorProvider searches desktop entries first, then manifests.
func descriptorProvider(cfg *config.Config) applist.DescriptorProvider {
	chain := desktop.Chain{desktop.KeyfileProvider{Dirs: cfg.Paths.ApplicationDirs}}
	if cfg.Paths.Manifests != "" {
		chain = append(chain, desktop.ManifestProvider{Dir: cfg.Paths.Manifests})
	}
	return chain
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// serveMetrics starts the /metrics endpoint. The listener is bound
// before returning so address errors fail startup.
func serveMetrics(address string, registry *prometheus.Registry, logger *slog.Logger) (*http.Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())
	return server, nil
}
