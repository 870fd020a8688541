package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/zkfuzz/internal/harness"
	"github.com/roach88/zkfuzz/internal/mutate"
)

// CampaignDir is where campaign manifests live inside the artifact directory.
const CampaignDir = "campaigns"

// CampaignOptions holds flags for the campaign command.
type CampaignOptions struct {
	*RootOptions
	harnessFlags
	File     string
	ID       string
	Name     string
	Programs []string
	Strategy string
	Seed     string
	Workers  int
	RngSeed  uint64
	Sizes    []int
	Count    int
}

// NewCampaignCommand creates the campaign command.
func NewCampaignCommand(rootOpts *RootOptions) *cobra.Command {
	return newCampaignCommand(&CampaignOptions{RootOptions: rootOpts})
}

func newCampaignCommand(opts *CampaignOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Compare backends over generated input variants",
		Long: `Generate a deterministic plan of input variants per program and compare
both backends on every variant.

Programs come from --file (a YAML campaign file) or --programs. Passing
--id of an earlier campaign resumes it: variants already recorded are
skipped, and a plan that no longer matches the saved manifest is refused.
Exits 1 when any variant diverged.

Example:
  zkfuzz campaign --programs all
  zkfuzz campaign --programs io_echo --strategy random_length --rng-seed 42
  zkfuzz campaign --file campaigns/nightly.yaml --id 0192f1c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCampaign(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "campaign file (YAML)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "campaign id; reuse one to resume")
	cmd.Flags().StringVar(&opts.Name, "name", "", "campaign name")
	cmd.Flags().StringSliceVar(&opts.Programs, "programs", nil, `program ids, or "all"`)
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "mutation strategy (single program only)")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed input file (single program only)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "variants compared concurrently")
	cmd.Flags().Uint64Var(&opts.RngSeed, "rng-seed", 0, "seed for randomized strategies")
	cmd.Flags().IntSliceVar(&opts.Sizes, "sizes", nil, "length_bias sizes in bytes")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "variants drawn by random_length")
	addHarnessFlags(cmd, &opts.harnessFlags)
	cmd.MarkFlagsMutuallyExclusive("file", "programs")

	return cmd
}

func runCampaign(opts *CampaignOptions, cmd *cobra.Command) error {
	spec, err := campaignSpec(opts, cmd)
	if err != nil {
		return err
	}

	sess, err := openSession(opts.RootOptions, &opts.harnessFlags, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if spec.ID == "" {
		spec.ID = harness.UUIDv7Generator{}.Generate()
	}
	spec.Dir = filepath.Join(sess.store.Dir(), CampaignDir, spec.ID)
	if spec.Workers <= 0 {
		spec.Workers = sess.workers
	}
	if spec.Timeout <= 0 {
		spec.Timeout = sess.timeout
	}

	ctx, cancel := withSignals(cmd.Context(), sess.logger)
	defer cancel()

	sum, runErr := sess.harness.Campaign(ctx, spec)
	if closeErr := sess.Close(); closeErr != nil && runErr == nil {
		return WrapExitError(ExitCommandError, "failed to close artifact store", closeErr)
	}
	if sum == nil {
		return campaignExit(runErr)
	}

	f := opts.formatter(cmd)
	if opts.Format != "json" {
		printCampaignSummary(cmd.OutOrStdout(), sum)
	}
	switch {
	case runErr != nil:
		if err := f.Failure(sum, CodeCommand, runErr.Error()); err != nil {
			return err
		}
		return campaignExit(runErr)
	case sum.Diverged > 0:
		msg := fmt.Sprintf("%d variant(s) diverged", sum.Diverged)
		if err := f.Failure(sum, CodeDiverged, msg); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	case opts.Format == "json":
		return f.Success(sum)
	}
	return nil
}

// campaignSpec resolves flags and the optional campaign file into a spec.
// Dir, Workers and Timeout defaults are filled in once settings are known.
func campaignSpec(opts *CampaignOptions, cmd *cobra.Command) (harness.CampaignSpec, error) {
	var spec harness.CampaignSpec
	if opts.File != "" {
		cf, err := harness.LoadCampaignFile(opts.File)
		if err != nil {
			return spec, WrapExitError(ExitCommandError, "invalid campaign file", err)
		}
		spec = cf.Spec(opts.ID, "")
	} else {
		if len(opts.Programs) == 0 {
			return spec, NewExitError(ExitCommandError, `either --file or --programs is required`)
		}
		spec = harness.CampaignSpec{ID: opts.ID, Programs: opts.Programs}
	}

	single := len(spec.Programs) == 1 && spec.Programs[0] != harness.AllPrograms
	if opts.Strategy != "" || opts.Seed != "" {
		if !single {
			return spec, NewExitError(ExitCommandError, "--strategy and --seed need exactly one program")
		}
		program := spec.Programs[0]
		if opts.Strategy != "" {
			spec.Strategies = merge(spec.Strategies, program, opts.Strategy)
		}
		if opts.Seed != "" {
			spec.Seeds = merge(spec.Seeds, program, opts.Seed)
		}
	}

	if opts.Name != "" {
		spec.Name = opts.Name
	}
	if spec.Name == "" {
		spec.Name = strings.Join(spec.Programs, ",")
	}
	if opts.Workers > 0 {
		spec.Workers = opts.Workers
	}
	if opts.Timeout > 0 {
		spec.Timeout = opts.Timeout
	}
	if cmd.Flags().Changed("rng-seed") {
		seed := opts.RngSeed
		spec.Mutate.RngSeed = &seed
	}
	if len(opts.Sizes) > 0 {
		spec.Mutate.Sizes = opts.Sizes
	}
	if opts.Count > 0 {
		spec.Mutate.Count = opts.Count
	}
	return spec, nil
}

func merge(m map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

// campaignExit maps a campaign error to an exit code. A plan that no
// longer matches its manifest and harness precondition errors are command
// errors, as is cancellation.
func campaignExit(err error) error {
	if errors.Is(err, mutate.ErrPlanMismatch) {
		return WrapExitError(ExitCommandError, "cannot resume campaign", err)
	}
	return harnessExit("campaign failed", err)
}

func printCampaignSummary(w io.Writer, sum *harness.CampaignSummary) {
	fmt.Fprintf(w, "Campaign %s (%s)\n", sum.CampaignID, sum.Name)
	for _, p := range sum.Programs {
		resumed := ""
		if p.Resumed {
			resumed = ", resumed"
		}
		fmt.Fprintf(w, "  %s [%s%s]\n", p.Program, p.Strategy, resumed)
		fmt.Fprintf(w, "    planned %d, skipped %d, executed %d, passed %d, diverged %d, errors %d\n",
			p.Planned, p.Skipped, p.Executed, p.Passed, p.Diverged, p.Errors)
		if p.BackendA.Count > 0 {
			fmt.Fprintf(w, "    backend a: avg %s, min %s, max %s\n", p.BackendA.Avg, p.BackendA.Min, p.BackendA.Max)
			fmt.Fprintf(w, "    backend b: avg %s, min %s, max %s\n", p.BackendB.Avg, p.BackendB.Min, p.BackendB.Max)
		}
		for _, runID := range p.Divergences {
			fmt.Fprintf(w, "    diverged: %s\n", runID)
		}
		for _, ve := range p.VariantFails {
			fmt.Fprintf(w, "    error: #%d %s: %s\n", ve.Index, ve.Operator, ve.Error)
		}
	}
	fmt.Fprintf(w, "Total: executed %d, passed %d, diverged %d, errors %d, skipped %d\n",
		sum.Executed, sum.Passed, sum.Diverged, sum.Errors, sum.Skipped)
	if sum.BackendA.Count > 0 {
		fmt.Fprintf(w, "  backend a: avg %s, min %s, max %s\n", sum.BackendA.Avg, sum.BackendA.Min, sum.BackendA.Max)
		fmt.Fprintf(w, "  backend b: avg %s, min %s, max %s\n", sum.BackendB.Avg, sum.BackendB.Min, sum.BackendB.Max)
	}
	if sum.Cancelled {
		fmt.Fprintln(w, "Campaign cancelled before all variants ran.")
	}
}
