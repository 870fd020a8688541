package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/zkfuzz/internal/harness"
	"github.com/roach88/zkfuzz/internal/ir"
	"github.com/roach88/zkfuzz/internal/mutate"
	"github.com/roach88/zkfuzz/internal/programs"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Program  string
	Strategy string
	Seed     string
	RngSeed  uint64
	Sizes    []int
	Count    int
	Out      string

	// Registry overrides the built-in programs (for testing).
	Registry *programs.Registry
}

// PlanReport is the plan command's output.
type PlanReport struct {
	Manifest ir.Manifest `json:"manifest"`
	Path     string      `json:"path,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return newPlanCommand(&PlanOptions{RootOptions: rootOpts})
}

func newPlanCommand(opts *PlanOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the variants a campaign would run",
		Long: `Generate a program's mutation plan without running anything.

The same seed, strategy and --rng-seed always give the same plan and
digest. With --out the manifest is written to <out>/plan.json.

Example:
  zkfuzz plan --program io_echo
  zkfuzz plan --program io_echo --strategy random_length --rng-seed 7 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "program id (required)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "mutation strategy (default: program's first)")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed input file (default: built-in seed)")
	cmd.Flags().Uint64Var(&opts.RngSeed, "rng-seed", 0, "seed for randomized strategies")
	cmd.Flags().IntSliceVar(&opts.Sizes, "sizes", nil, "length_bias sizes in bytes")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "variants drawn by random_length")
	cmd.Flags().StringVar(&opts.Out, "out", "", "directory to write plan.json into")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runPlan(opts *PlanOptions, cmd *cobra.Command) error {
	reg := opts.Registry
	if reg == nil {
		reg = programs.Default()
	}
	mopts := mutate.Options{Sizes: opts.Sizes, Count: opts.Count}
	if cmd.Flags().Changed("rng-seed") {
		seed := opts.RngSeed
		mopts.RngSeed = &seed
	}

	plan, err := harness.BuildPlan(reg, opts.Program, opts.Seed, opts.Strategy, mopts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build plan", err)
	}
	manifest, err := mutate.NewManifest(plan)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build manifest", err)
	}

	report := PlanReport{Manifest: manifest}
	if opts.Out != "" {
		path, err := mutate.WriteManifest(opts.Out, plan)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to write manifest", err)
		}
		report.Path = path
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(report)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Program:  %s\n", manifest.Program)
	fmt.Fprintf(w, "Strategy: %s v%d\n", manifest.Strategy, manifest.StrategyVersion)
	fmt.Fprintf(w, "Seed:     %s\n", manifest.BaseSeed)
	if manifest.RngSeed != nil {
		fmt.Fprintf(w, "RNG seed: %d\n", *manifest.RngSeed)
	}
	fmt.Fprintf(w, "Digest:   %s\n", manifest.Digest)
	for _, e := range manifest.Entries {
		fmt.Fprintf(w, "  %3d  %-28s  %s\n", e.Index, e.Operator, e.InputDigest[:min(12, len(e.InputDigest))])
	}
	if report.Path != "" {
		fmt.Fprintf(w, "Wrote %s\n", report.Path)
	}
	return nil
}
