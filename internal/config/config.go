// Package config loads the node configuration from TOML.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"DocBatch/internal/logger"
	"DocBatch/internal/schema"
)

// Config holds the node configuration.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string `toml:"data_path"`

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string `toml:"http_address"`

	// GRPCAddress is the contract store gRPC listen address. Empty disables it.
	GRPCAddress string `toml:"grpc_address"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `toml:"log_level"`

	// RemoteContracts is the gRPC address of a contract store consulted on local misses.
	RemoteContracts string `toml:"remote_contracts"`

	// SchemaCacheSize bounds the number of compiled schemas kept in memory.
	SchemaCacheSize int `toml:"schema_cache_size"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataPath:        "./data",
		HTTPAddress:     ":8080",
		GRPCAddress:     ":9090",
		LogLevel:        "info",
		SchemaCacheSize: schema.DefaultCacheSize,
	}
}

// Load reads a TOML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s):\n%w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s:\n%w", path, err)
	}

	return cfg, nil
}

// Validate checks required values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataPath) == "" {
		return fmt.Errorf("data_path is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http_address is required")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level:\n%w", err)
	}
	if c.SchemaCacheSize <= 0 {
		return fmt.Errorf("schema_cache_size must be positive, got %d", c.SchemaCacheSize)
	}
	if c.RemoteContracts != "" && c.RemoteContracts == c.GRPCAddress {
		return fmt.Errorf("remote_contracts must not point at this node's grpc_address")
	}
	return nil
}
