package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agenttap/agenttap/internal/logging"
	"github.com/agenttap/agenttap/pkg/profile"
	"github.com/agenttap/agenttap/pkg/report"
	"github.com/agenttap/agenttap/pkg/stats"
	"github.com/agenttap/agenttap/pkg/traffic"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		target string
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a captured traffic log and write a Markdown report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Resolve the profile before touching the filesystem so an
			// unknown target never leaves a report behind.
			prof, err := profile.ResolveAnalysis(target)
			if err != nil {
				return err
			}

			if output == "" {
				output = filepath.Join(filepath.Dir(input), "analysis_report.md")
			}

			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input file not found: %s", input)
			}

			entries, skipped, err := traffic.Load(input)
			if err != nil {
				return err
			}
			if skipped > 0 {
				logging.L.Warn("Skipped malformed traffic lines", zap.Int("count", skipped))
			}
			if len(entries) == 0 {
				return fmt.Errorf("no valid entries in %s", input)
			}
			logging.L.Info("Loaded traffic log",
				zap.Int("entries", len(entries)),
				zap.String("path", input),
			)

			doc := report.Assemble(stats.Analyze(entries), entries, input, prof)

			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}
			if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			logging.L.Info("Report written", zap.String("path", output))
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target name (loads the matching analysis profile)")
	cmd.Flags().StringVar(&input, "input", "", "Path to the traffic.jsonl log")
	cmd.Flags().StringVar(&output, "output", "", "Report path (default: analysis_report.md next to the input)")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("input")

	return cmd
}
