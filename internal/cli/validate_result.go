package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/zkfuzz/internal/runner"
)

// NewValidateResultCommand creates the validate-result command.
func NewValidateResultCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-result <file>",
		Short: "Check an adapter's execution result document",
		Long: `Validate a JSON execution result document against the result schema,
the format exec: backend adapters print on stdout.

Example:
  ./adapters/risc0 --program fib --input seeds/fib.json > out.json
  zkfuzz validate-result out.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateResult(rootOpts, args[0], cmd)
		},
	}
}

func validateResult(opts *RootOptions, path string, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read result document", err)
	}

	f := opts.formatter(cmd)
	res, err := runner.DecodeResult(data)
	if err != nil {
		if err := f.Error(CodeInvalidResult, err.Error(), map[string]string{"file": path}); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "invalid result document", err)
	}

	if opts.Format == "json" {
		return f.Success(res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%s, %d commit(s))\n", path, res.Status, len(res.Commits))
	return nil
}
