package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/zkfuzz/internal/ir"
	"github.com/roach88/zkfuzz/internal/mutate"
)

// AllPrograms selects every registered program in a campaign.
const AllPrograms = "all"

// CampaignSpec describes a campaign run.
type CampaignSpec struct {
	// ID names the campaign. Reusing the ID of an earlier campaign
	// resumes it: variants it already recorded are skipped.
	ID   string
	Name string
	// Programs lists program ids, or the single entry "all".
	Programs []string
	// Seeds maps a program to a seed file. Programs without an entry use
	// their built-in seed.
	Seeds map[string]string
	// Strategies maps a program to a strategy name. Programs without an
	// entry use their default strategy.
	Strategies map[string]string
	Mutate     mutate.Options
	// Dir receives one manifest per program at <Dir>/<program>/plan.json.
	Dir     string
	Workers int
	Timeout time.Duration
}

// TimingStats summarizes elapsed times.
type TimingStats struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
	total time.Duration
}

func (s *TimingStats) add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.total += d
	s.Avg = s.total / time.Duration(s.Count)
}

func (s *TimingStats) merge(o TimingStats) {
	if o.Count == 0 {
		return
	}
	if s.Count == 0 || o.Min < s.Min {
		s.Min = o.Min
	}
	if o.Max > s.Max {
		s.Max = o.Max
	}
	s.Count += o.Count
	s.total += o.total
	s.Avg = s.total / time.Duration(s.Count)
}

// VariantError is a comparison that failed a precondition. It does not
// stop the campaign.
type VariantError struct {
	Index    int    `json:"index"`
	Operator string `json:"operator"`
	Error    string `json:"error"`
}

// ProgramStats aggregates one program's plan.
type ProgramStats struct {
	Program      string         `json:"program"`
	Strategy     string         `json:"strategy"`
	PlanDigest   string         `json:"plan_digest"`
	Manifest     string         `json:"manifest"`
	Resumed      bool           `json:"resumed"`
	Planned      int            `json:"planned"`
	Skipped      int            `json:"skipped"`
	Executed     int            `json:"executed"`
	Passed       int            `json:"passed"`
	Diverged     int            `json:"diverged"`
	Errors       int            `json:"errors"`
	BackendA     TimingStats    `json:"backend_a"`
	BackendB     TimingStats    `json:"backend_b"`
	Divergences  []string       `json:"divergences,omitempty"`
	VariantFails []VariantError `json:"variant_errors,omitempty"`
}

// CampaignSummary aggregates a campaign.
type CampaignSummary struct {
	CampaignID string         `json:"campaign_id"`
	Name       string         `json:"name,omitempty"`
	Programs   []ProgramStats `json:"programs"`
	Executed   int            `json:"executed"`
	Passed     int            `json:"passed"`
	Diverged   int            `json:"diverged"`
	Errors     int            `json:"errors"`
	Skipped    int            `json:"skipped"`
	BackendA   TimingStats    `json:"backend_a"`
	BackendB   TimingStats    `json:"backend_b"`
	Cancelled  bool           `json:"cancelled"`
}

type programPlan struct {
	plan     *ir.Plan
	manifest string
	resumed  bool
}

// Campaign runs every variant of every selected program's plan.
//
// All programs, seeds and strategies are resolved and every manifest is
// written before the first variant executes, so an unknown program fails
// the campaign without running anything. Variants run on a pool of
// spec.Workers goroutines and are folded into the summary in plan order.
// Cancelling ctx stops scheduling new variants; running ones finish and
// are recorded, and the partial summary is returned with ctx's error.
// A store write failure aborts the campaign.
func (h *Harness) Campaign(ctx context.Context, spec CampaignSpec) (*CampaignSummary, error) {
	ids, err := h.resolvePrograms(spec.Programs)
	if err != nil {
		return nil, err
	}
	if spec.ID == "" {
		spec.ID = h.ids.Generate()
	}
	if spec.Dir == "" {
		return nil, errors.New("campaign: manifest directory is required")
	}

	plans := make([]programPlan, 0, len(ids))
	for _, id := range ids {
		pp, err := h.preparePlan(spec, id)
		if err != nil {
			return nil, err
		}
		plans = append(plans, pp)
	}

	sum := &CampaignSummary{CampaignID: spec.ID, Name: spec.Name, Programs: []ProgramStats{}}
	h.logger.Info("campaign started", "campaign_id", spec.ID, "programs", ids)

	for _, pp := range plans {
		stats, err := h.runPlan(ctx, spec, pp)
		sum.add(stats)
		if err != nil {
			if ctx.Err() != nil && !IsError(err, CodeStoreWriteFailed) {
				sum.Cancelled = true
			}
			return sum, err
		}
	}

	h.logger.Info("campaign finished",
		"campaign_id", spec.ID,
		"executed", sum.Executed,
		"diverged", sum.Diverged,
		"errors", sum.Errors,
		"skipped", sum.Skipped,
	)
	return sum, nil
}

func (s *CampaignSummary) add(p ProgramStats) {
	s.Programs = append(s.Programs, p)
	s.Executed += p.Executed
	s.Passed += p.Passed
	s.Diverged += p.Diverged
	s.Errors += p.Errors
	s.Skipped += p.Skipped
	s.BackendA.merge(p.BackendA)
	s.BackendB.merge(p.BackendB)
}

// resolvePrograms expands "all" and rejects unknown ids.
func (h *Harness) resolvePrograms(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, newError(CodeUnknownProgram, "", "no programs selected", nil)
	}
	var ids []string
	for _, id := range requested {
		if id == AllPrograms {
			continue
		}
		if _, ok := h.reg.Lookup(id); !ok {
			return nil, newError(CodeUnknownProgram, id, "program is not registered", nil)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if slices.Contains(requested, AllPrograms) {
		return h.reg.IDs(), nil
	}
	return ids, nil
}

// preparePlan generates the program's plan and writes or verifies its
// manifest.
func (h *Harness) preparePlan(spec CampaignSpec, program string) (programPlan, error) {
	plan, err := BuildPlan(h.reg, program, spec.Seeds[program], spec.Strategies[program], spec.Mutate)
	if err != nil {
		return programPlan{}, err
	}

	dir := filepath.Join(spec.Dir, program)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return programPlan{}, fmt.Errorf("plan %s: %w", program, err)
	}
	manifest, resumed, err := mutate.Resume(dir, plan)
	if err != nil {
		return programPlan{}, fmt.Errorf("plan %s: %w", program, err)
	}
	h.logger.Debug("plan ready",
		"program", program,
		"strategy", plan.Strategy,
		"variants", len(plan.Variants),
		"digest", plan.Digest,
		"resumed", resumed,
	)
	return programPlan{plan: plan, manifest: manifest, resumed: resumed}, nil
}

type variantResult struct {
	outcome *Outcome
	err     error
}

// runPlan executes the unprocessed variants of one plan.
func (h *Harness) runPlan(ctx context.Context, spec CampaignSpec, pp programPlan) (ProgramStats, error) {
	plan := pp.plan
	stats := ProgramStats{
		Program:    plan.Program,
		Strategy:   plan.Strategy,
		PlanDigest: plan.Digest,
		Manifest:   pp.manifest,
		Resumed:    pp.resumed,
		Planned:    len(plan.Variants),
	}

	done, err := h.sink.ProcessedIndices(ctx, spec.ID, plan.Program)
	if err != nil {
		return stats, newError(CodeStoreWriteFailed, plan.Program, "read processed indices", err)
	}

	workers := spec.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]*variantResult, len(plan.Variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range plan.Variants {
		if slices.Contains(done, v.Index) {
			stats.Skipped++
			continue
		}
		if gctx.Err() != nil {
			break
		}
		job := Job{
			Program:      plan.Program,
			Input:        v.Input,
			InputRef:     fmt.Sprintf("%s#%d", pp.manifest, v.Index),
			Provenance:   ir.ProvenanceMutated,
			BaseSeed:     plan.BaseSeed,
			MutationOp:   v.Operator,
			RngSeed:      formatRngSeed(plan.RngSeed),
			CampaignID:   spec.ID,
			VariantIndex: v.Index,
			Timeout:      spec.Timeout,
		}
		g.Go(func() error {
			// The slot may open only after cancellation.
			if gctx.Err() != nil {
				return nil
			}
			// Backends are bounded by their own timeout, not by gctx.
			out, err := h.Compare(context.WithoutCancel(gctx), job)
			results[i] = &variantResult{outcome: out, err: err}
			if IsError(err, CodeStoreWriteFailed) {
				return err
			}
			return nil
		})
	}
	waitErr := g.Wait()

	for i, r := range results {
		if r == nil {
			continue
		}
		v := plan.Variants[i]
		if r.err != nil {
			stats.Errors++
			stats.VariantFails = append(stats.VariantFails, VariantError{Index: v.Index, Operator: v.Operator, Error: r.err.Error()})
			continue
		}
		stats.Executed++
		if r.outcome.Diverged() {
			stats.Diverged++
			stats.Divergences = append(stats.Divergences, r.outcome.Record.RunID)
		} else {
			stats.Passed++
		}
		stats.BackendA.add(r.outcome.ResultA.Elapsed)
		stats.BackendB.add(r.outcome.ResultB.Elapsed)
	}

	if waitErr != nil {
		return stats, waitErr
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("campaign %s cancelled: %w", spec.ID, err)
	}
	return stats, nil
}
