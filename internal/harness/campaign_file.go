package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/zkfuzz/internal/mutate"
)

// CampaignFile is the YAML form of a campaign.
//
//	name: nightly
//	programs: [io_echo, arithmetic]
//	seeds:
//	  io_echo: seeds/io_echo_small.json
//	strategies:
//	  io_echo: random_length
//	timeout: 5s
//	workers: 4
//	rng_seed: 42
type CampaignFile struct {
	// Name identifies the campaign in logs and summaries.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	// Programs lists program ids, or [all].
	Programs []string `yaml:"programs"`

	// Seeds maps program ids to seed files. Relative paths are resolved
	// against the campaign file's directory.
	Seeds map[string]string `yaml:"seeds,omitempty"`

	// Strategies maps program ids to strategy names.
	Strategies map[string]string `yaml:"strategies,omitempty"`

	// Timeout bounds each backend execution, e.g. "5s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Workers is the number of variants run at once.
	Workers int `yaml:"workers,omitempty"`

	// RngSeed seeds randomized strategies. Omitted, they derive a seed
	// from the seed input's digest.
	RngSeed *uint64 `yaml:"rng_seed,omitempty"`

	// Sizes overrides the length_bias size set.
	Sizes []int `yaml:"sizes,omitempty"`

	// Count is the number of variants randomized strategies draw.
	Count int `yaml:"count,omitempty"`
}

// LoadCampaignFile reads and validates a campaign file.
// Unknown fields are rejected so typos fail loudly.
func LoadCampaignFile(path string) (*CampaignFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign file: %w", err)
	}

	var f CampaignFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for program, seed := range f.Seeds {
		if !filepath.IsAbs(seed) {
			f.Seeds[program] = filepath.Join(base, seed)
		}
	}

	if err := validateCampaignFile(&f); err != nil {
		return nil, fmt.Errorf("invalid campaign file: %w", err)
	}
	return &f, nil
}

func validateCampaignFile(f *CampaignFile) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(f.Programs) == 0 {
		return fmt.Errorf("programs list is required and must be non-empty")
	}
	if slices.Contains(f.Programs, AllPrograms) && len(f.Programs) > 1 {
		return fmt.Errorf("programs: %q cannot be combined with other ids", AllPrograms)
	}
	if f.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if f.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if f.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	for _, n := range f.Sizes {
		if n < 0 {
			return fmt.Errorf("sizes must be non-negative, got %d", n)
		}
	}

	selected := func(program string) bool {
		return slices.Contains(f.Programs, AllPrograms) || slices.Contains(f.Programs, program)
	}
	for program, seed := range f.Seeds {
		if !selected(program) {
			return fmt.Errorf("seeds: program %q is not in programs", program)
		}
		if _, err := os.Stat(seed); err != nil {
			return fmt.Errorf("seeds: %s: %w", program, err)
		}
	}
	for program := range f.Strategies {
		if !selected(program) {
			return fmt.Errorf("strategies: program %q is not in programs", program)
		}
	}
	return nil
}

// Spec converts the file into a CampaignSpec writing manifests under dir.
func (f *CampaignFile) Spec(id, dir string) CampaignSpec {
	return CampaignSpec{
		ID:         id,
		Name:       f.Name,
		Programs:   slices.Clone(f.Programs),
		Seeds:      f.Seeds,
		Strategies: f.Strategies,
		Mutate: mutate.Options{
			RngSeed: f.RngSeed,
			Sizes:   f.Sizes,
			Count:   f.Count,
		},
		Dir:     dir,
		Workers: f.Workers,
		Timeout: f.Timeout,
	}
}
