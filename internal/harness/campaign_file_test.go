package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCampaignFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCampaignFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "seeds"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seeds", "echo.json"), []byte(`{"data": [1]}`), 0o644))

	path := writeCampaignFile(t, dir, `
name: nightly
description: io and arithmetic sweep
programs: [io_echo, arithmetic]
seeds:
  io_echo: seeds/echo.json
strategies:
  io_echo: random_length
timeout: 5s
workers: 4
rng_seed: 42
count: 16
`)

	f, err := LoadCampaignFile(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", f.Name)
	assert.Equal(t, []string{"io_echo", "arithmetic"}, f.Programs)
	assert.Equal(t, filepath.Join(dir, "seeds", "echo.json"), f.Seeds["io_echo"], "seed resolved against file dir")
	assert.Equal(t, 5*time.Second, f.Timeout)
	require.NotNil(t, f.RngSeed)
	assert.Equal(t, uint64(42), *f.RngSeed)

	spec := f.Spec("camp-1", "/tmp/campaigns/camp-1")
	assert.Equal(t, "camp-1", spec.ID)
	assert.Equal(t, "nightly", spec.Name)
	assert.Equal(t, 4, spec.Workers)
	assert.Equal(t, 5*time.Second, spec.Timeout)
	assert.Equal(t, 16, spec.Mutate.Count)
	assert.Equal(t, "random_length", spec.Strategies["io_echo"])
	assert.Equal(t, "/tmp/campaigns/camp-1", spec.Dir)
}

func TestLoadCampaignFile_All(t *testing.T) {
	path := writeCampaignFile(t, t.TempDir(), "name: everything\nprograms: [all]\n")

	f, err := LoadCampaignFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{AllPrograms}, f.Programs)
	assert.Zero(t, f.Timeout)
	assert.Nil(t, f.RngSeed)
}

func TestLoadCampaignFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "name: x\nprogram: [fib]\n", "failed to parse YAML"},
		{"missing name", "programs: [fib]\n", "name is required"},
		{"missing programs", "name: x\n", "programs list is required"},
		{"all mixed", "name: x\nprograms: [all, fib]\n", "cannot be combined"},
		{"negative workers", "name: x\nprograms: [fib]\nworkers: -1\n", "workers must be non-negative"},
		{"negative timeout", "name: x\nprograms: [fib]\ntimeout: -1s\n", "timeout must be non-negative"},
		{"negative size", "name: x\nprograms: [io_echo]\nsizes: [1, -2]\n", "sizes must be non-negative"},
		{"seed for unselected program", "name: x\nprograms: [fib]\nseeds:\n  io_echo: a.json\n", `program "io_echo" is not in programs`},
		{"strategy for unselected program", "name: x\nprograms: [fib]\nstrategies:\n  io_echo: length_bias\n", `program "io_echo" is not in programs`},
		{"missing seed file", "name: x\nprograms: [fib]\nseeds:\n  fib: missing.json\n", "seeds: fib"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCampaignFile(t, t.TempDir(), tt.content)
			_, err := LoadCampaignFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCampaignFile_Missing(t *testing.T) {
	_, err := LoadCampaignFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read campaign file")
}
