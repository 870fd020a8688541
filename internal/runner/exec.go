package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/roach88/zkfuzz/internal/ir"
)

// Exec delegates execution to an external adapter process:
//
//	<command> [args...] --program <id> --input <file> [--timeout <duration>]
//
// --timeout is passed whenever the caller gives a bound, formatted as a Go
// duration ("30s", "1m30s"); the adapter applies it to its own execution.
// The adapter prints one execution result document on stdout and exits 0.
// Any other exit, or output that fails the result schema, is an
// ADAPTER_FAILED precondition error. The process is killed at the deadline.
type Exec struct {
	command string
	args    []string
	logger  *slog.Logger

	versionOnce sync.Once
	version     string
}

// NewExec creates an adapter backend that runs command with args.
func NewExec(command string, args []string, opts ...Option) *Exec {
	o := applyOptions(opts)
	return &Exec{command: command, args: args, logger: o.logger}
}

// Name returns "exec:" followed by the command line, the form the CLI
// accepts as a backend spec.
func (e *Exec) Name() string {
	return "exec:" + strings.Join(append([]string{e.command}, e.args...), " ")
}

// Version asks the adapter for --version once and caches the answer.
func (e *Exec) Version() string {
	e.versionOnce.Do(func() {
		e.version = "unknown"
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cmd := exec.CommandContext(ctx, e.command, append(append([]string{}, e.args...), "--version")...)
		out, err := cmd.Output()
		if err == nil {
			if v := strings.TrimSpace(string(out)); v != "" {
				e.version = v
			}
		}
	})
	return e.version
}

// Execute implements Runner.
func (e *Exec) Execute(ctx context.Context, program string, input []byte, timeout time.Duration) (ir.Result, error) {
	f, err := os.CreateTemp("", "zkfuzz-input-*.json")
	if err != nil {
		return ir.Result{}, newPrecondition(CodeAdapterFailed, e.Name(), program, "stage input", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(input); err != nil {
		f.Close()
		return ir.Result{}, newPrecondition(CodeAdapterFailed, e.Name(), program, "stage input", err)
	}
	if err := f.Close(); err != nil {
		return ir.Result{}, newPrecondition(CodeAdapterFailed, e.Name(), program, "stage input", err)
	}

	runCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.args...), "--program", program, "--input", f.Name())
	if timeout > 0 {
		args = append(args, "--timeout", timeout.String())
	}
	cmd := exec.CommandContext(runCtx, e.command, args...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.DebugContext(ctx, "executing", "backend", e.Name(), "program", program, "timeout", timeout)
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return timedOut(timeout), nil
	}
	if err != nil {
		return ir.Result{}, newPrecondition(CodeAdapterFailed, e.Name(), program,
			fmt.Sprintf("adapter exited: %s", tail(stderr.String())), err)
	}

	res, err := DecodeResult(stdout.Bytes())
	if err != nil {
		return ir.Result{}, newPrecondition(CodeAdapterFailed, e.Name(), program, "invalid result document", err)
	}
	if res.Elapsed == 0 {
		res.Elapsed = elapsed
	}
	return res, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const limit = 512
	if len(s) > limit {
		return "..." + s[len(s)-limit:]
	}
	return s
}
