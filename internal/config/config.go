// Package config loads the router's YAML configuration file, following
// code/cellorg/internal/config/config.go's read-unmarshal-then-default
// shape.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the router's top-level configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Registry  RegistryConfig  `yaml:"registry"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

// TransportConfig selects and addresses the wire transport.
type TransportConfig struct {
	// Kind is one of "tcp", "ws", or "inproc". "inproc" is only meaningful
	// to code that constructs the router programmatically (tests); it has
	// no listen address.
	Kind string `yaml:"kind"`
	Addr string `yaml:"addr"`
	// Path is the HTTP upgrade path, used only when Kind is "ws".
	Path string `yaml:"path"`
}

// RegistryConfig tunes peer liveness tracking.
type RegistryConfig struct {
	// DeadAfterSeconds is T_dead: a peer silent this long is pruned.
	DeadAfterSeconds int `yaml:"dead_after_seconds"`
	// PruneIntervalSeconds is how often the prune sweep runs.
	PruneIntervalSeconds int `yaml:"prune_interval_seconds"`
}

// HTTPConfig addresses the non-wire HTTP status surface (spec §6.1).
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	// Development enables zap's human-readable console encoder instead of
	// JSON, for local runs.
	Development bool `yaml:"development"`
}

// DeadAfter returns the T_dead duration.
func (r RegistryConfig) DeadAfter() time.Duration {
	return time.Duration(r.DeadAfterSeconds) * time.Second
}

// PruneInterval returns the prune sweep interval.
func (r RegistryConfig) PruneInterval() time.Duration {
	return time.Duration(r.PruneIntervalSeconds) * time.Second
}

// Load reads and parses filename, applying defaults to any field left
// unset.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Registry.DeadAfterSeconds < 0 {
		return nil, fmt.Errorf("registry.dead_after_seconds cannot be negative: %d", cfg.Registry.DeadAfterSeconds)
	}
	if cfg.Registry.PruneIntervalSeconds < 0 {
		return nil, fmt.Errorf("registry.prune_interval_seconds cannot be negative: %d", cfg.Registry.PruneIntervalSeconds)
	}
	switch cfg.Transport.Kind {
	case "tcp", "ws", "inproc":
	default:
		return nil, fmt.Errorf("transport.kind must be one of tcp, ws, inproc, got %q", cfg.Transport.Kind)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = "tcp"
	}
	if cfg.Transport.Addr == "" {
		cfg.Transport.Addr = ":9090"
	}
	if cfg.Transport.Path == "" {
		cfg.Transport.Path = "/ws"
	}
	if cfg.Registry.DeadAfterSeconds == 0 {
		cfg.Registry.DeadAfterSeconds = 30
	}
	if cfg.Registry.PruneIntervalSeconds == 0 {
		cfg.Registry.PruneIntervalSeconds = 5
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":9099"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
