package capture

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agenttap/agenttap/internal/logging"
	"github.com/agenttap/agenttap/pkg/profile"
	"github.com/agenttap/agenttap/pkg/traffic"
)

// OutputDirEnv is the environment variable carrying the resolved capture
// output directory.
const OutputDirEnv = "TRAFFIC_OUTPUT_DIR"

// Runner manages a capture session: it brings up one listener per proxy
// entry of the profile, optionally runs the target command under the
// capture environment, and tears everything down afterwards.
type Runner struct {
	profile     profile.CaptureProfile
	settle      time.Duration
	metricsBind string

	outputDir string
	writer    *traffic.Writer
	listeners []*Listener
	cmd       *exec.Cmd
}

// NewRunner builds a runner for the given capture profile. settle is how
// long Start waits before verifying that every listener survived startup.
func NewRunner(p profile.CaptureProfile, settle time.Duration, metricsBind string) *Runner {
	return &Runner{
		profile:     p,
		settle:      settle,
		metricsBind: metricsBind,
	}
}

// LogPath returns the traffic log location. Valid after Start.
func (r *Runner) LogPath() string {
	if r.writer == nil {
		return ""
	}
	return r.writer.Path()
}

// EnvOverrides returns the profile's target environment overrides in
// sorted key order.
func (r *Runner) EnvOverrides() []string {
	keys := make([]string, 0, len(r.profile.EnvOverrides))
	for k := range r.profile.EnvOverrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	overrides := make([]string, 0, len(keys))
	for _, k := range keys {
		overrides = append(overrides, k+"="+r.profile.EnvOverrides[k])
	}
	return overrides
}

// ManualSteps returns the profile's manual setup instructions.
func (r *Runner) ManualSteps() []string {
	return r.profile.ManualSteps
}

// Start brings up every listener and verifies them after the settle
// interval. On any failure it tears down already-started listeners before
// returning.
func (r *Runner) Start() error {
	outputDir, err := filepath.Abs(r.profile.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}
	r.outputDir = outputDir

	w, err := traffic.NewWriter(outputDir)
	if err != nil {
		return err
	}
	r.writer = w

	logging.L.Info("Starting traffic capture",
		zap.String("target", r.profile.Name),
		zap.String("log", w.Path()),
	)
	for _, pc := range r.profile.Proxies {
		logging.L.Info("Proxy route",
			zap.Int("port", pc.ListenPort),
			zap.String("upstream", pc.UpstreamURL),
			zap.String("purpose", pc.Purpose),
		)
	}
	if r.profile.UpstreamProxy != "" {
		logging.L.Info("Using upstream proxy", zap.String("url", r.profile.UpstreamProxy))
	}

	for _, pc := range r.profile.Proxies {
		l, err := NewListener(pc, r.profile.UpstreamProxy, w)
		if err != nil {
			r.Stop()
			return err
		}
		if err := l.Start(); err != nil {
			r.Stop()
			return err
		}
		r.listeners = append(r.listeners, l)
	}

	if r.metricsBind != "" {
		go ServeMetrics(r.metricsBind)
	}

	time.Sleep(r.settle)
	for _, l := range r.listeners {
		if !l.Alive() {
			port := l.Port()
			r.Stop()
			return fmt.Errorf("proxy listener on port %d died during startup", port)
		}
	}
	return nil
}

// RunCommand executes the target command under the capture environment and
// returns its exit code. A non-zero exit of the command itself is not an
// error.
func (r *Runner) RunCommand(args []string) (int, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = r.environ()
	r.cmd = cmd

	logging.L.Info("Running target command", zap.Strings("argv", args))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("run %s: %w", args[0], err)
	}
	return 0, nil
}

// environ merges the capture environment over the ambient one: the output
// directory variable first, then the profile's overrides.
func (r *Runner) environ() []string {
	env := os.Environ()
	env = append(env, OutputDirEnv+"="+r.outputDir)
	return append(env, r.EnvOverrides()...)
}

// Interrupt forwards SIGTERM to a running target command.
func (r *Runner) Interrupt() {
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Stop tears down all listeners and reports the log location.
func (r *Runner) Stop() {
	for _, l := range r.listeners {
		if err := l.Stop(); err != nil {
			logging.L.Error("Failed to stop proxy listener",
				zap.Int("port", l.Port()),
				zap.Error(err),
			)
		}
	}
	r.listeners = nil
	if r.writer != nil {
		logging.L.Info("Traffic saved", zap.String("path", r.writer.Path()))
	}
}
