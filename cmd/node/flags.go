package main

import (
	"flag"
	"fmt"
	"strings"

	"DocBatch/internal/config"
)

// options holds the parsed command line.
type options struct {
	cfg            config.Config // cfg is the effective configuration
	contracts      []string      // contracts are YAML definitions registered at startup
	importSnapshot string        // importSnapshot is a snapshot file loaded at startup
	exportSnapshot string        // exportSnapshot writes a snapshot and exits
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// parseFlags parses command-line flags. Flags override the config file, which
// overrides the defaults.
func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("node", flag.ContinueOnError)

	defaults := config.Default()
	flagCfg := defaults
	opts := &options{}

	var configPath string
	var contracts stringList

	fs.StringVar(&configPath, "config", "", "TOML configuration file")
	fs.StringVar(&flagCfg.DataPath, "data", defaults.DataPath, "Data directory path")
	fs.StringVar(&flagCfg.HTTPAddress, "http", defaults.HTTPAddress, "HTTP API address")
	fs.StringVar(&flagCfg.GRPCAddress, "grpc", defaults.GRPCAddress, "Contract store gRPC address (empty disables)")
	fs.StringVar(&flagCfg.LogLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&flagCfg.RemoteContracts, "remote", defaults.RemoteContracts, "Remote contract store gRPC address")
	fs.IntVar(&flagCfg.SchemaCacheSize, "schema-cache", defaults.SchemaCacheSize, "Compiled schema cache size")
	fs.Var(&contracts, "contract", "Contract definition (YAML) to register at startup; repeatable")
	fs.StringVar(&opts.importSnapshot, "import-snapshot", "", "Contract snapshot to import at startup")
	fs.StringVar(&opts.exportSnapshot, "export-snapshot", "", "Write a contract snapshot to this file and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := defaults
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Explicit flags win over the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DataPath = flagCfg.DataPath
		case "http":
			cfg.HTTPAddress = flagCfg.HTTPAddress
		case "grpc":
			cfg.GRPCAddress = flagCfg.GRPCAddress
		case "log-level":
			cfg.LogLevel = flagCfg.LogLevel
		case "remote":
			cfg.RemoteContracts = flagCfg.RemoteContracts
		case "schema-cache":
			cfg.SchemaCacheSize = flagCfg.SchemaCacheSize
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	opts.cfg = cfg
	opts.contracts = contracts

	return opts, nil
}
