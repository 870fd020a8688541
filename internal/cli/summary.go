package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/zkfuzz/internal/store"
)

// SummaryOptions holds flags for the summary command.
type SummaryOptions struct {
	*RootOptions
	Artifacts string
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SummaryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count recorded comparisons per program",
		Long: `Summarize the artifact store: comparisons, divergences, panics and
timeouts per program.

Example:
  zkfuzz summary --artifacts ./artifacts --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Artifacts, "artifacts", "", "artifact directory (default from settings)")
	return cmd
}

func runSummary(opts *SummaryOptions, cmd *cobra.Command) error {
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	st, err := store.Open(firstNonEmpty(opts.Artifacts, cfg.ArtifactsDir), store.WithLogger(opts.newLogger(cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open artifact store", err)
	}
	defer st.Close()

	sum, err := st.Summary(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize artifact store", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(sum)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-14s %8s %8s %8s %8s\n", "PROGRAM", "TOTAL", "DIVERGED", "PANICS", "TIMEOUTS")
	for _, p := range sum.Programs {
		fmt.Fprintf(w, "%-14s %8d %8d %8d %8d\n", p.Program, p.Total, p.Diverged, p.Panics, p.Timeouts)
	}
	fmt.Fprintf(w, "%-14s %8d %8d\n", "total", sum.Total, sum.Diverged)
	return nil
}
