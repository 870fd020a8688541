package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/zkfuzz/internal/harness"
	"github.com/roach88/zkfuzz/internal/programs"
	"github.com/roach88/zkfuzz/internal/runner"
)

// AdapterOptions holds flags for the adapter command.
type AdapterOptions struct {
	*RootOptions
	Backend string
	Program string
	Input   string
	Timeout time.Duration
	Version bool
}

// NewAdapterCommand creates the hidden adapter command, which serves an
// in-process backend over the exec: adapter protocol:
//
//	zkfuzz adapter --backend yaegi --program fib --input in.json
//
// so that "exec:zkfuzz adapter --backend yaegi" isolates a backend in its
// own process.
func NewAdapterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdapterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "adapter",
		Short:         "Serve a built-in backend over the adapter protocol",
		Hidden:        true,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdapter(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", BackendNative, "backend to serve: native or yaegi")
	cmd.Flags().StringVar(&opts.Program, "program", "", "program id")
	cmd.Flags().StringVar(&opts.Input, "input", "", "input document")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", harness.DefaultTimeout, "execution timeout")
	cmd.Flags().BoolVar(&opts.Version, "version", false, "print the backend version and exit")

	return cmd
}

func runAdapter(opts *AdapterOptions, cmd *cobra.Command) error {
	if opts.Backend != BackendNative && opts.Backend != BackendYaegi {
		return NewExitError(ExitCommandError, fmt.Sprintf("adapter cannot serve backend %q", opts.Backend))
	}
	r, err := newBackend(opts.Backend, programs.Default(), opts.newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create backend", err)
	}

	if opts.Version {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r.Name(), r.Version())
		return err
	}
	if opts.Program == "" || opts.Input == "" {
		return NewExitError(ExitCommandError, "--program and --input are required")
	}
	if err := runner.ServeAdapter(cmd.Context(), r, opts.Program, opts.Input, opts.Timeout, cmd.OutOrStdout()); err != nil {
		return WrapExitError(ExitCommandError, "adapter failed", err)
	}
	return nil
}
