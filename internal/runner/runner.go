// Package runner executes a named program on an input document in one
// backend and reports what happened.
//
// Every backend maps three outcomes onto ir.Status: completion (OK, with
// commits), a panic inside the program (PANIC) and a missed deadline
// (TIMEOUT). Failures to start at all, such as an unknown program or an
// undecodable input, are returned as *PreconditionError instead.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/roach88/zkfuzz/internal/ir"
)

// Runner is one execution backend.
type Runner interface {
	// Name identifies the backend in records, e.g. "native".
	Name() string
	// Version identifies the backend build.
	Version() string
	// Execute runs program on input. The call returns within timeout
	// (plus scheduling slack) whatever the program does. Cancelling ctx
	// does not interrupt a running program.
	Execute(ctx context.Context, program string, input []byte, timeout time.Duration) (ir.Result, error)
}

// Option configures a backend.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	cacheSize int
	imports   []string
}

// WithLogger sets the backend logger. Backends are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCacheSize bounds how many interpreted programs Interp keeps ready.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithImports replaces the packages interpreted programs may import.
func WithImports(pkgs ...string) Option {
	return func(o *options) {
		o.imports = pkgs
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		cacheSize: 16,
		imports:   DefaultImports,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type execution struct {
	result   ir.Result
	err      error
	panicked bool
	panicMsg string
	elapsed  time.Duration
}

// race runs work on its own goroutine and waits for it or for timeout,
// whichever comes first. A timeout <= 0 waits indefinitely.
//
// Once the deadline fires the execution is abandoned: its result, whenever
// it arrives, is dropped and never reaches a caller. The goroutine itself
// cannot be stopped and finishes on its own.
func race(timeout time.Duration, logger *slog.Logger, work func() (ir.Result, error)) (ir.Result, error) {
	done := make(chan execution, 1)
	var abandoned atomic.Bool

	go func() {
		var ex execution
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				ex.panicked = true
				ex.panicMsg = panicText(r)
			}
			ex.elapsed = time.Since(start)
			if abandoned.Load() {
				logger.Debug("discarding late result", "elapsed", ex.elapsed)
				return
			}
			done <- ex
		}()
		ex.result, ex.err = work()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case ex := <-done:
		if timeout > 0 && ex.elapsed > timeout {
			return timedOut(timeout), nil
		}
		return settle(ex)
	case <-deadline:
		abandoned.Store(true)
		return timedOut(timeout), nil
	}
}

func settle(ex execution) (ir.Result, error) {
	if ex.panicked {
		return ir.Result{
			Status:  ir.StatusPanic,
			Elapsed: ex.elapsed,
			Meta:    map[string]string{"panic": ex.panicMsg},
		}, nil
	}
	if ex.err != nil {
		return ir.Result{}, ex.err
	}
	res := ex.result
	if res.Elapsed == 0 {
		res.Elapsed = ex.elapsed
	}
	return res, nil
}

func timedOut(timeout time.Duration) ir.Result {
	return ir.Result{
		Status:  ir.StatusTimeout,
		Elapsed: timeout,
		Meta:    map[string]string{"timeout_ms": strconv.FormatInt(timeout.Milliseconds(), 10)},
	}
}

// panicText renders a recovered value. Interpreter panics wrap the
// original value in a struct with a Value field.
func panicText(r any) string {
	switch v := r.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	rv := reflect.ValueOf(r)
	if rv.Kind() == reflect.Struct {
		if f := rv.FieldByName("Value"); f.IsValid() && f.CanInterface() {
			return panicText(f.Interface())
		}
	}
	return fmt.Sprint(r)
}

func okResult(commits []int64, meta map[string]string) ir.Result {
	vals := make([]ir.IRValue, len(commits))
	for i, c := range commits {
		vals[i] = ir.IRInt(c)
	}
	return ir.Result{Status: ir.StatusOK, Commits: vals, Meta: meta}
}
