package main

import (
	"fmt"
	"os"

	"DocBatch/internal/logger"
)

func main() {
	logger.Init()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(opts.cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	node, err := NewNode(opts.cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	// One-shot maintenance commands
	if opts.exportSnapshot != "" {
		defer node.Close()
		return node.exportSnapshot(opts.exportSnapshot)
	}

	if err := node.prepare(opts); err != nil {
		node.Close()
		return err
	}

	printStartupInfo(opts)

	return node.Run()
}

// printStartupInfo displays node configuration at startup.
func printStartupInfo(opts *options) {
	logger.Info("starting DocBatch node",
		"http", opts.cfg.HTTPAddress,
		"grpc", opts.cfg.GRPCAddress,
		"data", opts.cfg.DataPath,
		"remote", opts.cfg.RemoteContracts,
		"log", opts.cfg.LogLevel,
	)
}
