package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/zkfuzz/internal/harness"
	"github.com/roach88/zkfuzz/internal/programs"
	"github.com/roach88/zkfuzz/internal/runner"
	"github.com/roach88/zkfuzz/internal/store"
)

// harnessFlags are the flags shared by commands that compare backends.
// Zero values fall back to the loaded settings.
type harnessFlags struct {
	Artifacts  string
	BackendA   string
	BackendB   string
	Timeout    time.Duration
	Sequential bool

	// Registry overrides the built-in programs (for testing).
	Registry *programs.Registry
	// IDs overrides the run ID generator (for testing).
	IDs harness.IDGenerator
}

func addHarnessFlags(cmd *cobra.Command, f *harnessFlags) {
	cmd.Flags().StringVar(&f.Artifacts, "artifacts", "", "artifact directory (default from settings)")
	cmd.Flags().StringVar(&f.BackendA, "backend-a", "", "first backend: native, yaegi or exec:<command>")
	cmd.Flags().StringVar(&f.BackendB, "backend-b", "", "second backend: native, yaegi or exec:<command>")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "per-backend execution timeout")
	cmd.Flags().BoolVar(&f.Sequential, "sequential", false, "run backend b only after backend a finishes")
}

// session is an open store plus a harness over the selected backends.
type session struct {
	logger  *slog.Logger
	store   *store.Store
	a, b    runner.Runner
	harness *harness.Harness
	timeout time.Duration
	workers int
}

func openSession(root *RootOptions, f *harnessFlags, cmd *cobra.Command) (*session, error) {
	cfg, err := root.settings()
	if err != nil {
		return nil, err
	}
	logger := root.newLogger(cmd.ErrOrStderr())

	reg := f.Registry
	if reg == nil {
		reg = programs.Default()
	}
	a, b, err := newBackendPair(firstNonEmpty(f.BackendA, cfg.BackendA), firstNonEmpty(f.BackendB, cfg.BackendB), reg, logger)
	if err != nil {
		return nil, err
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if cfg.Mirror.Enabled() {
		mirror, err := store.NewS3Mirror(cfg.Mirror.S3())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to configure divergence mirror", err)
		}
		storeOpts = append(storeOpts, store.WithMirror(mirror))
	}
	dir := firstNonEmpty(f.Artifacts, cfg.ArtifactsDir)
	logger.Debug("opening artifact store", "dir", dir)
	st, err := store.Open(dir, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open artifact store", err)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = cfg.Timeout
	}
	sequential := cfg.Sequential
	if cmd.Flags().Changed("sequential") {
		sequential = f.Sequential
	}

	hopts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithTimeout(timeout),
		harness.WithSequential(sequential),
		harness.WithReproCommand(cfg.ReproCommand),
	}
	if f.IDs != nil {
		hopts = append(hopts, harness.WithIDs(f.IDs))
	}

	return &session{
		logger:  logger,
		store:   st,
		a:       a,
		b:       b,
		harness: harness.New(reg, a, b, st, hopts...),
		timeout: timeout,
		workers: cfg.Workers,
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// withSignals cancels the returned context on SIGINT or SIGTERM.
func withSignals(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, finishing in-flight comparisons", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// harnessExit maps a harness error to an exit error. Every harness failure
// is a command error: no verdict was reached.
func harnessExit(message string, err error) *ExitError {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return WrapExitError(ExitCommandError, message, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
