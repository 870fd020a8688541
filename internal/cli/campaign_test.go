package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkfuzz/internal/harness"
	"github.com/roach88/zkfuzz/internal/mutate"
	"github.com/roach88/zkfuzz/internal/programs"
)

func TestCampaignFibThenResume(t *testing.T) {
	root := testRoot(t, "text")

	out, err := execute(NewCampaignCommand(root), "--programs", "fib", "--id", "camp-1", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Campaign camp-1 (fib)")
	assert.Contains(t, out, "fib [fib_value]")
	assert.Contains(t, out, "planned 11, skipped 0, executed 11, passed 11, diverged 0, errors 0")
	assert.Contains(t, out, "Total: executed 11")
	assert.Contains(t, out, "  backend a: avg ")
	assert.FileExists(t, filepath.Join(root.Config.ArtifactsDir, CampaignDir, "camp-1", "fib", mutate.ManifestFile))

	out, err = execute(NewCampaignCommand(root), "--programs", "fib", "--id", "camp-1")
	require.NoError(t, err)
	assert.Contains(t, out, "fib [fib_value, resumed]")
	assert.Contains(t, out, "planned 11, skipped 11, executed 0")
}

func TestCampaignFileJSON(t *testing.T) {
	file := writeFile(t, "nightly.yaml", `name: nightly
programs: [fib]
workers: 4
timeout: 5s
`)

	out, err := execute(NewCampaignCommand(testRoot(t, "json")), "--file", file)
	require.NoError(t, err)

	var sum harness.CampaignSummary
	resp := decodeResponse(t, out, &sum)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "nightly", sum.Name)
	assert.NotEmpty(t, sum.CampaignID)
	assert.Equal(t, 11, sum.Executed)
	assert.Equal(t, 11, sum.Passed)
	assert.Equal(t, 11, sum.BackendA.Count)
	assert.Equal(t, 11, sum.BackendB.Count)
	assert.False(t, sum.Cancelled)
}

func TestCampaignDivergencesExitOne(t *testing.T) {
	fib, ok := programs.Default().Lookup("fib")
	require.True(t, ok)
	fib.Entry = func([]byte) ([]int64, error) {
		return []int64{-1}, nil
	}
	reg, err := programs.NewRegistry(fib)
	require.NoError(t, err)

	opts := &CampaignOptions{RootOptions: testRoot(t, "json")}
	opts.Registry = reg
	out, err := execute(newCampaignCommand(opts), "--programs", "fib", "--id", "camp-d")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "11 variant(s) diverged")

	var sum harness.CampaignSummary
	resp := decodeResponse(t, out, &sum)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeDiverged, resp.Error.Code)
	assert.Equal(t, 11, sum.Diverged)
	require.Len(t, sum.Programs, 1)
	assert.Len(t, sum.Programs[0].Divergences, 11)
}

func TestCampaignPlanMismatch(t *testing.T) {
	root := testRoot(t, "text")

	_, err := execute(NewCampaignCommand(root), "--programs", "io_echo", "--id", "camp-m", "--sizes", "1,2")
	require.NoError(t, err)

	_, err = execute(NewCampaignCommand(root), "--programs", "io_echo", "--id", "camp-m", "--sizes", "1,2,3")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, mutate.ErrPlanMismatch)
	assert.Contains(t, err.Error(), "cannot resume campaign")
}

func TestCampaignCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no programs", nil, "either --file or --programs is required"},
		{"strategy with all", []string{"--programs", "all", "--strategy", "fib_value"}, "need exactly one program"},
		{"seed with two programs", []string{"--programs", "fib,io_echo", "--seed", "x.json"}, "need exactly one program"},
		{"unknown program", []string{"--programs", "fib,nope"}, "UNKNOWN_PROGRAM"},
		{"unknown strategy", []string{"--programs", "fib", "--strategy", "length_bias"}, "UNKNOWN_STRATEGY"},
		{"missing campaign file", []string{"--file", "/nonexistent/campaign.yaml"}, "invalid campaign file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewCampaignCommand(testRoot(t, "text")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCampaignFileAndProgramsExclusive(t *testing.T) {
	file := writeFile(t, "c.yaml", "name: c\nprograms: [fib]\n")
	_, err := execute(NewCampaignCommand(testRoot(t, "text")), "--file", file, "--programs", "fib")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestCampaignSpecFromFlags(t *testing.T) {
	opts := &CampaignOptions{RootOptions: testRoot(t, "text")}
	cmd := newCampaignCommand(opts)
	require.NoError(t, cmd.ParseFlags([]string{
		"--programs", "io_echo", "--strategy", "random_length", "--rng-seed", "0", "--count", "3", "--seed", "s.json",
	}))

	spec, err := campaignSpec(opts, cmd)
	require.NoError(t, err)
	assert.Equal(t, "io_echo", spec.Name)
	assert.Equal(t, map[string]string{"io_echo": "random_length"}, spec.Strategies)
	assert.Equal(t, map[string]string{"io_echo": "s.json"}, spec.Seeds)
	require.NotNil(t, spec.Mutate.RngSeed)
	assert.Equal(t, uint64(0), *spec.Mutate.RngSeed)
	assert.Equal(t, 3, spec.Mutate.Count)
}

func TestCampaignSpecRngSeedUnset(t *testing.T) {
	opts := &CampaignOptions{RootOptions: testRoot(t, "text")}
	cmd := newCampaignCommand(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--programs", "io_echo"}))

	spec, err := campaignSpec(opts, cmd)
	require.NoError(t, err)
	assert.Nil(t, spec.Mutate.RngSeed)
}
