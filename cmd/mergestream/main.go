// Package main implements the entry point for the mergestream application.
// Mergestream runs a layered tree of merger nodes that fold partial updates
// from distributed producers into one continuously published snapshot.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/mergestream/checker"
	"github.com/c360/mergestream/component"
	"github.com/c360/mergestream/config"
	"github.com/c360/mergestream/engine"
	"github.com/c360/mergestream/mergeable"
	"github.com/c360/mergestream/metric"
	"github.com/c360/mergestream/natsclient"
	ws "github.com/c360/mergestream/output/websocket"
	"github.com/c360/mergestream/topology"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "mergestream"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	// Core infrastructure: broker client and metrics surface
	natsClient, metricsRegistry, err := setupInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = natsClient.Close(ctx) }()

	// Build the merge tree from the configured producer set
	top, err := buildTopology(cfg)
	if err != nil {
		return fmt.Errorf("build topology: %w", err)
	}

	deps := component.Dependencies{
		Bus:             natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
		Platform: component.PlatformMeta{
			Org:      cfg.Platform.Org,
			Platform: cfg.Platform.ID,
		},
	}

	eng, err := engine.New(deps, top, mergeable.NewDefaultRegistry(), engineOptions(cfg, cliCfg))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	liveView, err := setupLiveView(cfg, top, deps)
	if err != nil {
		return fmt.Errorf("create live view: %w", err)
	}

	metricsServer := setupMetricsServer(cfg, metricsRegistry, eng)
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	// Run until a signal or the first fatal node error
	return runWithSignalHandling(ctx, eng, liveView, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting mergestream (distributed merge pipeline)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupInfrastructure creates the NATS client, connects it, and prepares the
// metrics registry.
func setupInfrastructure(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*natsclient.Client, *metric.MetricsRegistry, error) {
	metricsRegistry := metric.NewMetricsRegistry()

	// Environment variable override takes precedence
	natsURL := cfg.NATS.URL
	if envURL := os.Getenv("MERGESTREAM_NATS_URL"); envURL != "" {
		natsURL = envURL
	}

	natsClient, err := natsclient.NewClient(natsURL,
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithLogger(logger.With("component", "natsclient")),
		natsclient.WithMetrics(metricsRegistry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", natsURL)
	if err := natsClient.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return nil, nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	return natsClient, metricsRegistry, nil
}

// buildTopology derives the merge tree from the configured producer set.
func buildTopology(cfg *config.Config) (*topology.Topology, error) {
	return topology.Build(cfg.Merge.Producers, topology.Options{
		FanIn:               cfg.Merge.FanIn,
		Kind:                cfg.Merge.Kind,
		Policy:              cfg.Policy(),
		Window:              cfg.Merge.Window,
		PublishInterval:     cfg.Merge.PublishInterval,
		LayerIntervals:      cfg.Merge.LayerIntervals,
		SubjectPrefix:       cfg.Merge.SubjectPrefix,
		PublishOnUpdateOnly: cfg.Merge.PublishOnUpdateOnly,
		QueueCapacity:       cfg.Merge.QueueCapacity,
		SourceTimeout:       cfg.Merge.SourceTimeout,
	})
}

// engineOptions maps the optional checker section onto engine options.
func engineOptions(cfg *config.Config, cliCfg *CLIConfig) engine.Options {
	opts := engine.Options{StopTimeout: cliCfg.ShutdownTimeout}
	if cfg.Checker.Enabled {
		opts.Checker = &checker.Config{
			Name:          "checker",
			Kind:          cfg.Merge.Kind,
			ExpectedTotal: cfg.Checker.ExpectedTotal,
			Tolerance:     cfg.Checker.Tolerance,
		}
	}
	return opts
}

// setupLiveView creates the WebSocket monitoring surface when enabled. The
// subject list defaults to the root node's output.
func setupLiveView(cfg *config.Config, top *topology.Topology, deps component.Dependencies) (*ws.LiveView, error) {
	if !cfg.LiveView.Enabled {
		return nil, nil
	}

	subjects := cfg.LiveView.Subjects
	if len(subjects) == 0 {
		subjects = []string{top.Root().OutputSubject}
	}

	return ws.New(ws.Deps{
		Config: ws.Config{
			Addr:     cfg.LiveView.Addr,
			Subjects: subjects,
		},
		Bus:             deps.Bus,
		Registry:        mergeable.NewDefaultRegistry(),
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("liveview"),
	})
}

// setupMetricsServer starts the Prometheus endpoint with the engine's health
// aggregate wired onto it. Port 0 disables the surface.
func setupMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry, eng *engine.Engine) *metric.Server {
	if cfg.Metrics.Port == 0 {
		return nil
	}

	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	server.SetHealthHandler(func(w http.ResponseWriter, _ *http.Request) {
		status := eng.Health()
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	if err := server.Start(); err != nil {
		slog.Warn("Metrics server failed to start", "port", cfg.Metrics.Port, "error", err)
		return nil
	}

	slog.Info("Metrics server started", "address", server.Address())
	return server
}

// runWithSignalHandling starts the pipeline and blocks until a shutdown
// signal or the first fatal node error, then stops everything in reverse.
func runWithSignalHandling(
	ctx context.Context,
	eng *engine.Engine,
	liveView *ws.LiveView,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Components start on the parent context so a signal never tears nodes
	// down mid-merge; Stop below drains them upstream-first instead.
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	if liveView != nil {
		if err := liveView.Start(ctx); err != nil {
			_ = eng.Stop(shutdownTimeout)
			return fmt.Errorf("start live view: %w", err)
		}
	}

	slog.Info("Mergestream started successfully")

	waitErr := eng.Wait(signalCtx)
	if waitErr != nil && signalCtx.Err() == nil {
		slog.Error("Pipeline failed", "error", waitErr)
	} else {
		slog.Info("Received shutdown signal")
		waitErr = nil
	}

	// Observers go first, then the merge tree drains root-downward.
	if liveView != nil {
		if err := liveView.Stop(shutdownTimeout); err != nil {
			slog.Warn("Live view stop failed", "error", err)
		}
	}
	if err := eng.Stop(shutdownTimeout); err != nil {
		slog.Error("Error stopping engine", "error", err)
		if waitErr == nil {
			waitErr = err
		}
	}

	slog.Info("Mergestream shutdown complete")
	return waitErr
}
