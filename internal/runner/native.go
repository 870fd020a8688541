package runner

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/roach88/zkfuzz/internal/ir"
	"github.com/roach88/zkfuzz/internal/programs"
)

// Native runs the compiled program entry in-process. It is the reference
// backend.
type Native struct {
	registry *programs.Registry
	logger   *slog.Logger
}

// NewNative creates a native backend over reg.
func NewNative(reg *programs.Registry, opts ...Option) *Native {
	o := applyOptions(opts)
	return &Native{registry: reg, logger: o.logger}
}

func (n *Native) Name() string { return "native" }

func (n *Native) Version() string { return runtime.Version() }

// Execute implements Runner.
func (n *Native) Execute(ctx context.Context, program string, input []byte, timeout time.Duration) (ir.Result, error) {
	p, ok := n.registry.Lookup(program)
	if !ok {
		return ir.Result{}, newPrecondition(CodeUnknownProgram, n.Name(), program, "program not registered", nil)
	}
	n.logger.DebugContext(ctx, "executing", "backend", n.Name(), "program", program, "timeout", timeout)

	return race(timeout, n.logger, func() (ir.Result, error) {
		commits, err := p.Entry(input)
		if err != nil {
			return ir.Result{}, newPrecondition(CodeUndecodableInput, n.Name(), program, "decode input", err)
		}
		return okResult(commits, nil), nil
	})
}
