package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/zkfuzz/internal/harness"
	"github.com/roach88/zkfuzz/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	harnessFlags
	Program    string
	Input      string
	Provenance string
	BaseSeed   string
}

// BackendReport is one backend's side of a comparison.
type BackendReport struct {
	Name   string    `json:"name"`
	Result ir.Result `json:"result"`
}

// RunReport is the outcome of the run command.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Program    string        `json:"program"`
	Input      string        `json:"input"`
	Provenance string        `json:"provenance"`
	Equal      bool          `json:"equal"`
	Reason     string        `json:"reason,omitempty"`
	BackendA   BackendReport `json:"backend_a"`
	BackendB   BackendReport `json:"backend_b"`
	Repro      string        `json:"repro,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compare two backends on one input",
		Long: `Run one guest program on both backends with the same input and record
the verdict in the artifact store.

The input may be JSON, YAML or CUE. A divergence writes input.json,
run_log.json and repro.sh under <artifacts>/<run_id>/ and exits 1.

Inputs written by an external generator are recorded with
--provenance generated, optionally naming the seed they came from.

Example:
  zkfuzz run --program fib --input seeds/fib.json
  zkfuzz run --program io_echo --input big.yaml --backend-b exec:./adapters/risc0
  zkfuzz run --program fib --input gen/0007.json --provenance generated --base-seed seeds/fib.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "program id (required)")
	cmd.Flags().StringVar(&opts.Input, "input", "", "input document (required)")
	cmd.Flags().StringVar(&opts.Provenance, "provenance", string(ir.ProvenanceSeed), "input origin: seed or generated")
	cmd.Flags().StringVar(&opts.BaseSeed, "base-seed", "", "seed a generated input was derived from")
	_ = cmd.MarkFlagRequired("program")
	_ = cmd.MarkFlagRequired("input")
	addHarnessFlags(cmd, &opts.harnessFlags)

	return cmd
}

func runCompare(opts *RunOptions, cmd *cobra.Command) error {
	job, err := runJob(opts)
	if err != nil {
		return err
	}

	sess, err := openSession(opts.RootOptions, &opts.harnessFlags, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := withSignals(cmd.Context(), sess.logger)
	defer cancel()

	out, err := sess.harness.Compare(ctx, job)
	if err != nil {
		return harnessExit("comparison failed", err)
	}
	if err := sess.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to close artifact store", err)
	}

	report := RunReport{
		RunID:      out.Record.RunID,
		Program:    out.Record.Program,
		Input:      out.Record.Input,
		Provenance: string(out.Record.Provenance),
		Equal:      out.Diff.Equal,
		Reason:     out.Diff.Reason,
		BackendA:   BackendReport{Name: sess.a.Name(), Result: out.ResultA},
		BackendB:   BackendReport{Name: sess.b.Name(), Result: out.ResultB},
		Repro:      out.ReproDir,
	}

	f := opts.formatter(cmd)
	if out.Diverged() {
		if opts.Format != "json" {
			printRunReport(cmd.OutOrStdout(), report)
		}
		if err := f.Failure(report, CodeDiverged, out.Diff.Reason); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("backends diverged: %s", out.Diff.Reason))
	}
	if opts.Format == "json" {
		return f.Success(report)
	}
	printRunReport(cmd.OutOrStdout(), report)
	return nil
}

// runJob builds the comparison job for the requested provenance.
func runJob(opts *RunOptions) (harness.Job, error) {
	switch ir.Provenance(opts.Provenance) {
	case ir.ProvenanceSeed:
		if opts.BaseSeed != "" {
			return harness.Job{}, NewExitError(ExitCommandError, "--base-seed needs --provenance generated")
		}
		return harness.SeedJob(opts.Program, opts.Input), nil
	case ir.ProvenanceGenerated:
		return harness.GeneratedJob(opts.Program, opts.Input, opts.BaseSeed), nil
	default:
		return harness.Job{}, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid provenance %q (valid: %s, %s)", opts.Provenance, ir.ProvenanceSeed, ir.ProvenanceGenerated))
	}
}

func printRunReport(w io.Writer, r RunReport) {
	fmt.Fprintf(w, "Run:       %s\n", r.RunID)
	fmt.Fprintf(w, "Program:   %s\n", r.Program)
	fmt.Fprintf(w, "Input:     %s\n", r.Input)
	printBackend(w, "Backend A", r.BackendA)
	printBackend(w, "Backend B", r.BackendB)
	if r.Equal {
		fmt.Fprintln(w, "Verdict:   equal")
		return
	}
	fmt.Fprintf(w, "Verdict:   diverged (%s)\n", r.Reason)
	fmt.Fprintf(w, "Repro:     %s\n", r.Repro)
}

func printBackend(w io.Writer, label string, b BackendReport) {
	fmt.Fprintf(w, "%s: %s %s in %s, %d commit(s)\n", label, b.Name, b.Result.Status, b.Result.Elapsed, len(b.Result.Commits))
}
