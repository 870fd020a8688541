package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/zkfuzz/internal/inputs"
	"github.com/roach88/zkfuzz/internal/ir"
	"github.com/roach88/zkfuzz/internal/oracle"
	"github.com/roach88/zkfuzz/internal/programs"
	"github.com/roach88/zkfuzz/internal/runner"
	"github.com/roach88/zkfuzz/internal/store"
)

// DefaultTimeout bounds each backend execution when no timeout is given.
const DefaultTimeout = 10 * time.Second

// Sink is the slice of the artifact store the harness writes through.
// *store.Store implements it.
type Sink interface {
	Append(ctx context.Context, rec ir.Record) (ir.Record, error)
	DivergencePath(runID string) string
	PersistDivergence(ctx context.Context, runID string, d store.Divergence) (string, error)
	ProcessedIndices(ctx context.Context, campaignID, program string) ([]int, error)
}

// Harness runs comparisons between backend A and backend B.
type Harness struct {
	reg        *programs.Registry
	a, b       runner.Runner
	sink       Sink
	ids        IDGenerator
	now        func() time.Time
	logger     *slog.Logger
	timeout    time.Duration
	sequential bool
	command    string
	workDir    string
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the harness logger. The harness is silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithIDs replaces the UUIDv7 run and campaign id generator.
func WithIDs(g IDGenerator) Option {
	return func(h *Harness) { h.ids = g }
}

// WithClock replaces time.Now for run log timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// WithTimeout sets the per-backend execution bound.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithSequential runs backend B only after backend A finishes instead of
// running both at once.
func WithSequential(on bool) Option {
	return func(h *Harness) { h.sequential = on }
}

// WithReproCommand sets the executable named in reproduction scripts.
func WithReproCommand(cmd string) Option {
	return func(h *Harness) { h.command = cmd }
}

// WithWorkDir sets the directory relative adapter paths in repro scripts
// are resolved against. It defaults to the process working directory.
func WithWorkDir(dir string) Option {
	return func(h *Harness) { h.workDir = dir }
}

// New creates a harness comparing a against b and recording into sink.
func New(reg *programs.Registry, a, b runner.Runner, sink Sink, opts ...Option) *Harness {
	h := &Harness{
		reg:     reg,
		a:       a,
		b:       b,
		sink:    sink,
		ids:     UUIDv7Generator{},
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultTimeout,
		command: DefaultReproCommand,
	}
	if wd, err := os.Getwd(); err == nil {
		h.workDir = wd
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Job is one (program, input) pair to compare.
type Job struct {
	Program string
	// InputPath is read during LOAD_INPUT unless Input is already set.
	InputPath string
	Input     []byte
	// InputRef is what the record names as the input; defaults to InputPath.
	InputRef string

	Provenance   ir.Provenance
	BaseSeed     string
	MutationOp   string
	RngSeed      string
	CampaignID   string
	VariantIndex int
	// Timeout overrides the harness timeout when positive.
	Timeout time.Duration
}

// SeedJob returns a job for a hand-written input file.
func SeedJob(program, path string) Job {
	return Job{Program: program, InputPath: path, Provenance: ir.ProvenanceSeed, VariantIndex: -1}
}

// GeneratedJob returns a job for an input produced outside the harness,
// derived from baseSeed by an external generator. baseSeed may be empty.
func GeneratedJob(program, path, baseSeed string) Job {
	return Job{Program: program, InputPath: path, Provenance: ir.ProvenanceGenerated, BaseSeed: baseSeed, VariantIndex: -1}
}

// Outcome is the result of one completed comparison.
type Outcome struct {
	Record   ir.Record
	ResultA  ir.Result
	ResultB  ir.Result
	Diff     ir.Diff
	ReproDir string
	States   []State
}

// Diverged reports whether the backends disagreed.
func (o *Outcome) Diverged() bool {
	return !o.Diff.Equal
}

// Compare runs job through the comparison state machine.
//
// A precondition failure (unknown program, unreadable or undecodable
// input, a backend that cannot build the program) aborts this comparison
// and nothing is recorded. A failed append returns CodeStoreWriteFailed.
// Cancelling ctx does not interrupt a backend already running; each is
// bounded by its own timeout instead.
func (h *Harness) Compare(ctx context.Context, job Job) (*Outcome, error) {
	m := newMachine()
	started := h.now()

	// LOAD_INPUT
	raw, digest, err := h.load(job)
	if err != nil {
		return nil, err
	}
	ref := job.InputRef
	if ref == "" {
		ref = job.InputPath
	}
	timeout := h.timeout
	if job.Timeout > 0 {
		timeout = job.Timeout
	}

	if err := m.advance(StateRunBackendA); err != nil {
		return nil, err
	}
	if err := m.advance(StateRunBackendB); err != nil {
		return nil, err
	}
	resA, resB, err := h.execute(ctx, job.Program, raw, timeout)
	if err != nil {
		return nil, err
	}

	if err := m.advance(StateCompare); err != nil {
		return nil, err
	}
	diff := oracle.Compare(resA, resB)

	if err := m.advance(StateRecord); err != nil {
		return nil, err
	}
	runID := h.ids.Generate()
	rec := ir.Record{
		RunID:          runID,
		Program:        job.Program,
		Input:          ref,
		StatusA:        resA.Status,
		StatusB:        resB.Status,
		Equal:          diff.Equal,
		Reason:         diff.Reason,
		ElapsedAMS:     resA.Elapsed.Milliseconds(),
		ElapsedBMS:     resB.Elapsed.Milliseconds(),
		TimingDeltaMS:  diff.TimingDelta.Milliseconds(),
		Provenance:     job.Provenance,
		BaseSeed:       job.BaseSeed,
		MutationOp:     job.MutationOp,
		RngSeed:        job.RngSeed,
		BackendTarget:  h.a.Name() + "|" + h.b.Name(),
		BackendVersion: h.a.Version() + "|" + h.b.Version(),
		Toolchain:      runtime.Version(),
		CampaignID:     job.CampaignID,
		VariantIndex:   job.VariantIndex,
		InputDigest:    digest,
	}
	if rec.Provenance == "" {
		rec.Provenance = ir.ProvenanceSeed
	}
	if !diff.Equal {
		rec.ReproPath = h.sink.DivergencePath(runID)
	}

	// The record must land even if the caller is cancelling.
	writeCtx := context.WithoutCancel(ctx)
	rec, err = h.sink.Append(writeCtx, rec)
	if err != nil {
		return nil, newError(CodeStoreWriteFailed, job.Program, "append record "+runID, err)
	}

	out := &Outcome{Record: rec, ResultA: resA, ResultB: resB, Diff: diff}
	if !diff.Equal {
		if err := m.advance(StateGenerateRepro); err != nil {
			return nil, err
		}
		// DONE follows GENERATE_REPRO; the run log lists the full trail.
		trail := append(m.Trail(), StateDone)
		dir, err := h.persist(writeCtx, rec, raw, resA, resB, diff, timeout, started, trail)
		if err != nil {
			return nil, err
		}
		out.ReproDir = dir
	}

	if err := m.advance(StateDone); err != nil {
		return nil, err
	}
	out.States = m.Trail()

	h.logger.Info("comparison done",
		"run_id", runID,
		"program", job.Program,
		"input", ref,
		"equal", diff.Equal,
		"status_a", resA.Status,
		"status_b", resB.Status,
	)
	return out, nil
}

// load resolves the job's input bytes and digest.
func (h *Harness) load(job Job) ([]byte, string, error) {
	if _, ok := h.reg.Lookup(job.Program); !ok {
		return nil, "", newError(CodeUnknownProgram, job.Program, "program is not registered", nil)
	}

	raw := job.Input
	if raw == nil {
		var err error
		raw, err = inputs.Load(job.InputPath)
		switch {
		case errors.Is(err, inputs.ErrUndecodable):
			return nil, "", newError(CodeUndecodableInput, job.Program, "decode "+job.InputPath, err)
		case err != nil:
			return nil, "", newError(CodeUnreadableInput, job.Program, "read "+job.InputPath, err)
		}
	}

	digest, err := ir.InputDigest(raw)
	if err != nil {
		return nil, "", newError(CodeUndecodableInput, job.Program, "digest input", err)
	}
	// Out-of-schema inputs still run: both backends must reject them alike.
	if err := h.reg.Validate(job.Program, raw); err != nil {
		h.logger.Warn("input outside program schema", "program", job.Program, "input", job.InputPath, "error", err)
	}
	return raw, digest, nil
}

// execute runs both backends. Each result is owned by this comparison;
// neither backend sees the other's.
func (h *Harness) execute(ctx context.Context, program string, raw []byte, timeout time.Duration) (ir.Result, ir.Result, error) {
	var resA, resB ir.Result
	runA := func() error {
		var err error
		resA, err = h.a.Execute(ctx, program, raw, timeout)
		if err != nil {
			return fmt.Errorf("backend a (%s): %w", h.a.Name(), err)
		}
		return nil
	}
	runB := func() error {
		var err error
		resB, err = h.b.Execute(ctx, program, raw, timeout)
		if err != nil {
			return fmt.Errorf("backend b (%s): %w", h.b.Name(), err)
		}
		return nil
	}

	if h.sequential {
		if err := runA(); err != nil {
			return ir.Result{}, ir.Result{}, err
		}
		if err := runB(); err != nil {
			return ir.Result{}, ir.Result{}, err
		}
		return resA, resB, nil
	}

	var g errgroup.Group
	g.Go(runA)
	g.Go(runB)
	if err := g.Wait(); err != nil {
		return ir.Result{}, ir.Result{}, err
	}
	return resA, resB, nil
}

// persist writes the divergence directory for rec.
func (h *Harness) persist(ctx context.Context, rec ir.Record, raw []byte, resA, resB ir.Result, diff ir.Diff, timeout time.Duration, started time.Time, trail []State) (string, error) {
	script, err := Repro{
		Command:  h.command,
		RunID:    rec.RunID,
		Program:  rec.Program,
		BackendA: h.a.Name(),
		BackendB: h.b.Name(),
		Timeout:  timeout,
		Reason:   diff.Reason,
		WorkDir:  h.workDir,
	}.Script()
	if err != nil {
		return "", err
	}

	logA, err := newBackendLog(h.a, resA)
	if err != nil {
		return "", err
	}
	logB, err := newBackendLog(h.b, resB)
	if err != nil {
		return "", err
	}
	runLog, err := RunLog{
		RunID:      rec.RunID,
		Program:    rec.Program,
		Input:      rec.Input,
		CampaignID: rec.CampaignID,
		MutationOp: rec.MutationOp,
		StartedAt:  started.UTC(),
		FinishedAt: h.now().UTC(),
		BackendA:   logA,
		BackendB:   logB,
		Diff:       diff,
		States:     trail,
	}.marshal()
	if err != nil {
		return "", err
	}

	dir, err := h.sink.PersistDivergence(ctx, rec.RunID, store.Divergence{Input: raw, RunLog: runLog, Script: script})
	if err != nil {
		// The record already names this directory; a missing repro is
		// as bad as a missing record.
		return "", newError(CodeStoreWriteFailed, rec.Program, "persist divergence "+rec.RunID, err)
	}
	h.logger.Warn("divergence", "run_id", rec.RunID, "program", rec.Program, "reason", diff.Reason, "dir", dir)
	return dir, nil
}

func formatRngSeed(seed *uint64) string {
	if seed == nil {
		return ""
	}
	return strconv.FormatUint(*seed, 10)
}
