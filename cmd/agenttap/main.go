package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agenttap/agenttap/internal/config"
	"github.com/agenttap/agenttap/internal/logging"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agenttap",
		Short: "agenttap - capture and analyze AI agent API traffic",
		Long: `agenttap interposes reverse proxies between a command-line AI agent
and its backend APIs, records every request/response pair to a durable
JSONL log, and renders the log as a Markdown analysis report covering
traffic shape, payload structure, and full conversational content.

Examples:
  # Capture a codex run (the trailing command runs under the capture env)
  agenttap capture --target codex -- codex exec "write a haiku"

  # Capture without a command: prints env overrides, blocks until Ctrl+C
  agenttap capture --target codex --output-dir tmp/my-capture

  # Analyze a finished capture
  agenttap analyze --target codex --input tmp/codex-traffic/traffic.jsonl

  # Write the report somewhere else
  agenttap analyze --target codex --input traffic.jsonl --output report.md`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			return logging.Initialize(cfg.LogLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, fatal")

	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newAnalyzeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
