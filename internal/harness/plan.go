package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/zkfuzz/internal/inputs"
	"github.com/roach88/zkfuzz/internal/ir"
	"github.com/roach88/zkfuzz/internal/mutate"
	"github.com/roach88/zkfuzz/internal/programs"
)

// BuiltinSeedPrefix marks a plan whose seed is the program's built-in one.
const BuiltinSeedPrefix = "builtin:"

// BuildPlan loads program's seed and applies strategy to it. An empty
// seedPath selects the built-in seed; an empty strategy selects the
// program's default.
func BuildPlan(reg *programs.Registry, program, seedPath, strategy string, opts mutate.Options) (*ir.Plan, error) {
	p, ok := reg.Lookup(program)
	if !ok {
		return nil, newError(CodeUnknownProgram, program, "program is not registered", nil)
	}

	var (
		raw []byte
		err error
	)
	switch {
	case seedPath != "":
		raw, err = inputs.Load(seedPath)
	case p.Seed == nil:
		return nil, newError(CodeUnreadableInput, program, "no seed given and no built-in seed", nil)
	default:
		seedPath = BuiltinSeedPrefix + p.SeedName
		raw, err = inputs.Decode(p.SeedName, p.Seed)
	}
	switch {
	case errors.Is(err, inputs.ErrUndecodable):
		return nil, newError(CodeUndecodableInput, program, "decode seed "+seedPath, err)
	case err != nil:
		return nil, newError(CodeUnreadableInput, program, "read seed "+seedPath, err)
	}

	plan, err := mutate.Generate(ir.Input{Program: program, Path: seedPath, Raw: raw}, strategy, opts)
	if errors.Is(err, mutate.ErrUnknownStrategy) {
		return nil, newError(CodeUnknownStrategy, program, "resolve strategy", err)
	}
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", program, err)
	}
	return plan, nil
}
