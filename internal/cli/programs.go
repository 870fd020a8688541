package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/zkfuzz/internal/mutate"
	"github.com/roach88/zkfuzz/internal/programs"
)

// ProgramInfo describes one registered program.
type ProgramInfo struct {
	ID         string   `json:"id"`
	Seed       string   `json:"seed,omitempty"`
	Strategies []string `json:"strategies"`
}

// NewProgramsCommand creates the programs command.
func NewProgramsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "programs",
		Short:         "List guest programs and their mutation strategies",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPrograms(rootOpts, programs.Default(), cmd)
		},
	}
}

func listPrograms(opts *RootOptions, reg *programs.Registry, cmd *cobra.Command) error {
	infos := make([]ProgramInfo, 0, len(reg.IDs()))
	for _, id := range reg.IDs() {
		p, _ := reg.Lookup(id)
		strategies := mutate.StrategiesFor(id)
		if strategies == nil {
			strategies = []string{}
		}
		infos = append(infos, ProgramInfo{ID: id, Seed: p.SeedName, Strategies: strategies})
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(infos)
	}
	w := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(w, "%-14s %s\n", info.ID, strings.Join(info.Strategies, ", "))
	}
	return nil
}
