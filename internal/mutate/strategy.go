// Package mutate derives deterministic mutation plans from seed inputs.
//
// A strategy is a pure function from a seed document to an ordered list of
// variants. Nothing here reads the clock or ambient randomness; strategies
// that want randomness take an explicit seed that is recorded in the plan.
package mutate

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/zkfuzz/internal/ir"
)

// ErrUnknownStrategy is returned for a (program, strategy) pair that is not
// registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy generates the variants of one plan.
type Strategy interface {
	Name() string
	// Version changes whenever Generate would produce different output.
	Version() int
	Generate(seed []byte) ([]ir.Variant, error)
}

// Seeded is implemented by strategies that draw from a reproducible
// random source.
type Seeded interface {
	RngSeed() uint64
}

// Options tunes strategy construction.
type Options struct {
	// RngSeed seeds strategies that implement Seeded. When nil the seed is
	// derived from the seed document's digest.
	RngSeed *uint64
	// Sizes overrides the length_bias size set.
	Sizes []int
	// Count overrides how many variants random_length draws.
	Count int
}

type factory func(opts Options, seedDigest string) Strategy

var catalog = map[string][]string{
	"io_echo":       {"length_bias", "random_length"},
	"arithmetic":    {"boundary_values"},
	"simple_struct": {"string_variation"},
	"fib":           {"fib_value"},
	"panic_test":    {"bool_variation"},
	"timeout_test":  {"iteration_variation"},
}

var factories = map[string]factory{
	"length_bias": func(o Options, _ string) Strategy {
		return LengthBias{Sizes: o.Sizes}
	},
	"random_length": func(o Options, digest string) Strategy {
		seed := seedFromDigest(digest)
		if o.RngSeed != nil {
			seed = *o.RngSeed
		}
		return RandomLength{Seed: seed, Count: o.Count}
	},
	"boundary_values":     func(Options, string) Strategy { return BoundaryValues{} },
	"string_variation":    func(Options, string) Strategy { return StringVariation{} },
	"fib_value":           func(Options, string) Strategy { return FibValue{} },
	"bool_variation":      func(Options, string) Strategy { return BoolVariation{} },
	"iteration_variation": func(Options, string) Strategy { return IterationVariation{} },
}

// StrategiesFor lists the strategies registered for program. The first
// one is the default.
func StrategiesFor(program string) []string {
	return slices.Clone(catalog[program])
}

// Lookup builds the named strategy for program. An empty name selects the
// program's default strategy.
func Lookup(program, name string, opts Options, seedDigest string) (Strategy, error) {
	names := catalog[program]
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: program %q has no strategies", ErrUnknownStrategy, program)
	}
	if name == "" {
		name = names[0]
	}
	if !slices.Contains(names, name) {
		return nil, fmt.Errorf("%w: %q for program %q (have %v)", ErrUnknownStrategy, name, program, names)
	}
	return factories[name](opts, seedDigest), nil
}

// Generate applies the named strategy to seed and returns the plan.
func Generate(seed ir.Input, strategy string, opts Options) (*ir.Plan, error) {
	digest, err := ir.InputDigest(seed.Raw)
	if err != nil {
		return nil, fmt.Errorf("digest seed: %w", err)
	}
	s, err := Lookup(seed.Program, strategy, opts, digest)
	if err != nil {
		return nil, err
	}
	variants, err := s.Generate(seed.Raw)
	if err != nil {
		return nil, fmt.Errorf("%s: generate: %w", s.Name(), err)
	}
	for i := range variants {
		variants[i].Index = i
	}

	plan := &ir.Plan{
		Program:         seed.Program,
		Strategy:        s.Name(),
		StrategyVersion: s.Version(),
		BaseSeed:        seed.Path,
		SeedDigest:      digest,
		Variants:        variants,
	}
	if sd, ok := s.(Seeded); ok {
		rs := sd.RngSeed()
		plan.RngSeed = &rs
	}
	manifest, err := NewManifest(plan)
	if err != nil {
		return nil, err
	}
	plan.Digest = manifest.Digest
	return plan, nil
}

func seedFromDigest(digest string) uint64 {
	if len(digest) < 16 {
		return 0
	}
	s, _ := strconv.ParseUint(digest[:16], 16, 64)
	return s
}
