package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agenttap/agenttap/internal/logging"
	"github.com/agenttap/agenttap/pkg/capture"
	"github.com/agenttap/agenttap/pkg/profile"
)

func newCaptureCmd() *cobra.Command {
	var (
		target        string
		outputDir     string
		upstreamProxy string
		metricsBind   string
	)

	cmd := &cobra.Command{
		Use:   "capture [flags] [-- command [args...]]",
		Short: "Run reverse proxies that record agent traffic to a JSONL log",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := profile.ResolveCapture(target)
			if err != nil {
				return err
			}

			// CLI flags and config file override the profile defaults.
			if outputDir == "" {
				outputDir = cfg.OutputDir
			}
			if outputDir != "" {
				prof.OutputDir = outputDir
			}
			if upstreamProxy == "" {
				upstreamProxy = cfg.UpstreamProxy
			}
			if upstreamProxy != "" {
				prof.UpstreamProxy = upstreamProxy
			}
			if metricsBind == "" {
				metricsBind = cfg.MetricsBind
			}

			runner := capture.NewRunner(prof, time.Duration(cfg.SettleSeconds)*time.Second, metricsBind)
			if err := runner.Start(); err != nil {
				return err
			}

			for _, step := range runner.ManualSteps() {
				logging.L.Info("Manual setup required", zap.String("step", step))
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			if len(args) > 0 {
				return runWithCommand(runner, args, sigChan)
			}
			return runManual(runner, sigChan)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target name (loads the matching capture profile)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory for traffic.jsonl (overrides profile default)")
	cmd.Flags().StringVar(&upstreamProxy, "upstream-proxy", "", "Upstream proxy URL for internet access (overrides profile default)")
	cmd.Flags().StringVar(&metricsBind, "metrics-bind", "", "Bind address for the Prometheus endpoint (empty = disabled)")
	cmd.MarkFlagRequired("target")

	return cmd
}

// runWithCommand executes the target command under the capture environment
// and exits with the command's exit code after teardown.
func runWithCommand(runner *capture.Runner, args []string, sigChan chan os.Signal) error {
	done := make(chan struct{})
	var exitCode int
	var runErr error

	go func() {
		exitCode, runErr = runner.RunCommand(args)
		close(done)
	}()

	select {
	case <-done:
	case sig := <-sigChan:
		logging.L.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		runner.Interrupt()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			logging.L.Warn("Forced teardown after timeout")
		}
	}

	runner.Stop()
	if runErr != nil {
		return runErr
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

// runManual prints the environment overrides for manual use and blocks
// until interrupted.
func runManual(runner *capture.Runner, sigChan chan os.Signal) error {
	if overrides := runner.EnvOverrides(); len(overrides) > 0 {
		fmt.Println("Environment overrides for the target:")
		for _, kv := range overrides {
			fmt.Printf("  export %s\n", kv)
		}
	}
	fmt.Printf("\nTraffic log: %s\n", runner.LogPath())
	fmt.Println("Press Ctrl+C to stop.")

	<-sigChan
	runner.Stop()
	return nil
}
