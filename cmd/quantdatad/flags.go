package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds the parsed command line flags.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Validate        bool
	ShowVersion     bool
	ShowHelp        bool
	ShutdownTimeout time.Duration
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config", "", "path to the YAML configuration file")
	flag.StringVar(&cfg.LogLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", "", "override the configured log format (text, json)")
	flag.BoolVar(&cfg.Validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "print the version and exit")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "print usage and exit")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown deadline")

	flag.Parse()
	return cfg
}

func printHelp() {
	fmt.Fprintf(os.Stderr, "%s - unified market data access engine\n\n", appName)
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nFlags:\n", appName)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nConfiguration values can also be set through QUANTDATA_* environment\nvariables, e.g. QUANTDATA_NATS_URL.\n")
}
