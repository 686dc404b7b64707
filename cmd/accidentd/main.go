// Package main is the entry point for the advisor daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/config"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/daemon"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
)

var (
	// Version is set at build time.
	Version = "dev"
	// BuildTime is set at build time.
	BuildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "accidentd",
		Short: "Traffic accident advisor daemon",
		Long: `accidentd serves the traffic-accident consultation RAG pipeline:
query classification, hybrid retrieval over per-category collections,
session-scoped memory, and single-call answer synthesis.`,
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		RunE:    runDaemon,
	}

	rootCmd.Flags().String("data-dir", "", "Data directory (default: ~/.accident-advisor)")
	rootCmd.Flags().String("listen", "", "HTTP listen address (default: :8080)")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-format", "json", "Log format: json, console")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}
	if logLevel, _ := cmd.Flags().GetString("log-level"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat, _ := cmd.Flags().GetString("log-format"); logFormat != "" {
		cfg.LogFormat = logFormat
	}

	observability.SetupLogging(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	daemon.Version = Version
	daemon.BuildTime = BuildTime

	d, err := daemon.New(cfg)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	return d.Run()
}
