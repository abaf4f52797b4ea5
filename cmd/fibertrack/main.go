package main

import (
	"log"
	"log/slog"
	"os"

	"fibertrack/pkg/config"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// newLogger writes structured logs to stderr so stdout stays free for the
// run summary.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the configuration named by --config and applies the
// command line overrides.
func loadConfig() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if numWorkers > 0 {
		cfg.Processing.NumWorkers = numWorkers
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	logger := newLogger(cfg.Output.Verbose)
	slog.SetDefault(logger)
	return cfg, logger
}
