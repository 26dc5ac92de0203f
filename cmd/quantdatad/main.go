// Package main implements the quantdata daemon: it builds the data access
// engine from configuration, registers the configured provider fleet, starts
// the health watcher and the metrics endpoint, and serves queries over NATS
// until shut down.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/quantdata/config"
	"github.com/c360/quantdata/engine"
	"github.com/c360/quantdata/health"
	"github.com/c360/quantdata/metric"
	"github.com/c360/quantdata/natsclient"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/provider/httpfeed"
	"github.com/c360/quantdata/provider/wsfeed"
	"github.com/c360/quantdata/service"
	"github.com/c360/quantdata/types"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "quantdatad"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	logger := cfg.Log.Logger(nil)
	slog.SetDefault(logger)
	logger.Info("starting", "app", appName, "version", Version, "config", cliCfg.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()

	eng, err := engine.New(ctx, cfg.Engine, logger, registry)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := registerProviders(ctx, eng, cfg, logger); err != nil {
		return err
	}

	watcher := health.NewWatcher(cfg.Health, eng.Registry(), eng.Tracker(), eng.Breakers(), logger)
	watcher.Start(ctx)
	defer watcher.Stop()

	if cfg.Metrics.Port > 0 {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() { _ = metricsServer.Stop() }()
	}

	if cfg.NATS.URL == "" {
		logger.Warn("no NATS URL configured, engine running without a service surface")
		<-ctx.Done()
		return nil
	}

	client := natsclient.New(cfg.NATS.URL,
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithLogger(logger),
	)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	svc := service.New(service.Config{SubjectPrefix: cfg.NATS.SubjectPrefix}, eng, watcher, client, logger)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	logger.Info("ready", "providers", len(eng.Registry().All()), "subjects", svc.Subjects())
	<-ctx.Done()
	logger.Info("shutting down", "timeout", cliCfg.ShutdownTimeout)
	return nil
}

// registerProviders builds and registers the configured provider fleet. A
// provider that fails to connect is logged and skipped so one dead vendor
// does not block startup; the remaining fleet still serves.
func registerProviders(ctx context.Context, eng *engine.Engine, cfg *config.Config, logger *slog.Logger) error {
	type entry struct {
		adapter provider.Adapter
		weight  int
	}

	entries := make([]entry, 0, len(cfg.Providers.HTTP)+len(cfg.Providers.WS))
	for _, pc := range cfg.Providers.HTTP {
		adapter, err := httpfeed.New(pc.Config)
		if err != nil {
			return err
		}
		entries = append(entries, entry{adapter, pc.Weight})
	}
	for _, pc := range cfg.Providers.WS {
		adapter, err := wsfeed.New(pc.Config)
		if err != nil {
			return err
		}
		entries = append(entries, entry{adapter, pc.Weight})
	}

	registered := 0
	for _, e := range entries {
		if err := eng.RegisterProvider(ctx, e.adapter, e.weight); err != nil {
			logger.Error("provider registration failed, skipping",
				"provider", e.adapter.ID(), "error", err)
			continue
		}
		registered++
	}
	if len(entries) > 0 && registered == 0 {
		return fmt.Errorf("no provider could be registered")
	}

	for asset, order := range cfg.Providers.Priority {
		if err := eng.Registry().SetPriority(types.AssetType(asset), order); err != nil {
			logger.Warn("priority order rejected", "asset", asset, "error", err)
		}
	}
	return nil
}
