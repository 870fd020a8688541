package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/zkfuzz/internal/programs"
	"github.com/roach88/zkfuzz/internal/runner"
)

// Backend specs accepted by --backend-a, --backend-b and ZKFUZZ_BACKEND_*.
const (
	BackendNative = "native"
	BackendYaegi  = "yaegi"
	backendExec   = "exec:"
)

// newBackend builds a runner from a backend spec: "native", "yaegi" or
// "exec:<command> [args...]".
func newBackend(spec string, reg *programs.Registry, logger *slog.Logger) (runner.Runner, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == BackendNative:
		return runner.NewNative(reg, runner.WithLogger(logger)), nil
	case spec == BackendYaegi:
		return runner.NewInterp(reg, runner.WithLogger(logger))
	case strings.HasPrefix(spec, backendExec):
		fields := strings.Fields(strings.TrimPrefix(spec, backendExec))
		if len(fields) == 0 {
			return nil, fmt.Errorf("backend %q: missing adapter command", spec)
		}
		return runner.NewExec(fields[0], fields[1:], runner.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: want %s, %s or %s<command>", spec, BackendNative, BackendYaegi, backendExec)
	}
}

// newBackendPair builds both backends, wrapping failures as command errors.
func newBackendPair(specA, specB string, reg *programs.Registry, logger *slog.Logger) (runner.Runner, runner.Runner, error) {
	a, err := newBackend(specA, reg, logger)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "backend a", err)
	}
	b, err := newBackend(specB, reg, logger)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "backend b", err)
	}
	return a, b, nil
}
