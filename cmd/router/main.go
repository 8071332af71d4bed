// Command router runs the hydra-router server process: it loads
// configuration, wires the transport/registry/dispatcher/metrics stack,
// and serves until an interrupt or terminate signal arrives. Grounded on
// code/cellorg/cmd/orchestrator/main.go's config-priority-chain-then-
// signal-handling shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/NadimGhaznavi/hydra-router/internal/config"
	"github.com/NadimGhaznavi/hydra-router/internal/metrics"
	"github.com/NadimGhaznavi/hydra-router/internal/router"
	"github.com/NadimGhaznavi/hydra-router/internal/transport"
	"github.com/NadimGhaznavi/hydra-router/internal/transport/inproc"
	"github.com/NadimGhaznavi/hydra-router/internal/transport/tcp"
	"github.com/NadimGhaznavi/hydra-router/internal/transport/ws"
)

func main() {
	var cfg *config.Config
	var configSource string

	if len(os.Args) >= 2 {
		configFile := os.Args[1]
		loaded, err := config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config from %s: %v\n", configFile, err)
			os.Exit(1)
		}
		cfg = loaded
		configSource = fmt.Sprintf("config file: %s", configFile)
	} else if _, err := os.Stat("router.yaml"); err == nil {
		loaded, err := config.Load("router.yaml")
		if err != nil {
			fmt.Fprintf(os.Stderr, "router.yaml exists but failed to parse: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
		configSource = "router.yaml (default)"
	} else {
		cfg = defaultConfig()
		configSource = "hardcoded defaults (no config file found)"
	}

	log := newLogger(cfg.Log)
	defer log.Sync()
	sugar := log.Sugar()
	sugar.Infow("hydra-router starting", "config_source", configSource)

	tr, err := buildTransport(cfg.Transport)
	if err != nil {
		sugar.Fatalw("failed to build transport", "error", err)
	}

	met := metrics.New(prometheus.DefaultRegisterer)

	svc := router.New(tr, sugar, cfg.Registry.DeadAfter(), cfg.Registry.PruneInterval(),
		router.WithMetrics(met),
		router.WithHTTPStatus(cfg.HTTP.Addr),
	)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		sugar.Infow("received signal, shutting down", "signal", sig.String())
	case err := <-done:
		if err != nil {
			sugar.Errorw("router exited with error", "error", err)
		}
	}

	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		sugar.Warn("shutdown timeout exceeded")
	}

	sugar.Info("hydra-router stopped")
}

func buildTransport(cfg config.TransportConfig) (transport.Transport, error) {
	switch cfg.Kind {
	case "tcp":
		return tcp.New(cfg.Addr), nil
	case "ws":
		return ws.New(cfg.Addr, cfg.Path), nil
	case "inproc":
		return inproc.New(), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

func newLogger(cfg config.LogConfig) *zap.Logger {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err == nil {
		zcfg.Level = level
	}

	log, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func defaultConfig() *config.Config {
	return &config.Config{
		Transport: config.TransportConfig{Kind: "tcp", Addr: ":9090", Path: "/ws"},
		Registry:  config.RegistryConfig{DeadAfterSeconds: 30, PruneIntervalSeconds: 5},
		HTTP:      config.HTTPConfig{Addr: ":9099"},
		Log:       config.LogConfig{Level: "info"},
	}
}
