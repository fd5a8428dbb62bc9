// Package main is the entry point for the function host.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/funcauthz/internal/config"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags(os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(flags, logger)

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize function host", observability.Error(err))
	}

	if err := app.run(ctx); err != nil {
		logger.Fatal("function host failed", observability.Error(err))
	}
}

// parseFlags parses command line flags. Environment variables provide the
// defaults.
func parseFlags(args []string) cliFlags {
	fs := flag.NewFlagSet("funchost", flag.ExitOnError)
	configPath := fs.String("config", getEnvOrDefault("FUNCAUTHZ_CONFIG_PATH", "configs/funchost.yaml"),
		"Path to configuration file")
	logLevel := fs.String("log-level", getEnvOrDefault("FUNCAUTHZ_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the configuration")
	logFormat := fs.String("log-format", getEnvOrDefault("FUNCAUTHZ_LOG_FORMAT", ""),
		"Log format (json, console); overrides the configuration")
	showVersion := fs.Bool("version", false, "Show version information")
	_ = fs.Parse(args)

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("funchost version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger creates the bootstrap logger used until configuration is loaded.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(logConfig(observability.DefaultLogConfig(), flags))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// logConfig applies the flag overrides to base.
func logConfig(base observability.LogConfig, flags cliFlags) observability.LogConfig {
	if flags.logLevel != "" {
		base.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		base.Format = flags.logFormat
	}
	return base
}

// loadConfig loads and validates the configuration. Flag overrides for
// logging are applied on top of the file.
func loadConfig(flags cliFlags, logger observability.Logger) *config.Config {
	logger.Info("starting funchost",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}
	cfg.Logging = logConfig(cfg.Logging, flags)

	logger.Info("configuration loaded",
		observability.String("address", cfg.Server.Address),
		observability.Int("policies", len(cfg.Policies.Definitions)),
		observability.Bool("revocation", cfg.Auth.Revocation != nil),
		observability.Bool("tracing", cfg.Tracing.Enabled),
	)

	return cfg
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
