package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
	assert.False(t, cfg.Mirror.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(mapEnv(map[string]string{
		EnvArtifactsDir: "/var/zkfuzz",
		EnvTimeout:      "250ms",
		EnvWorkers:      " 8 ",
		EnvBackendA:     "native",
		EnvBackendB:     "exec:./adapter",
		EnvSequential:   "true",
		EnvReproCommand: "/usr/local/bin/zkfuzz",
		EnvS3Endpoint:   "minio:9000",
		EnvS3AccessKey:  "ak",
		EnvS3SecretKey:  "sk",
		EnvS3Prefix:     "nightly",
		EnvS3UseSSL:     "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/var/zkfuzz", cfg.ArtifactsDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "exec:./adapter", cfg.BackendB)
	assert.True(t, cfg.Sequential)
	assert.Equal(t, "/usr/local/bin/zkfuzz", cfg.ReproCommand)

	require.True(t, cfg.Mirror.Enabled())
	s3 := cfg.Mirror.S3()
	assert.Equal(t, "minio:9000", s3.Endpoint)
	assert.Equal(t, "us-east-1", s3.Region)
	assert.Equal(t, "zkfuzz-divergences", s3.Bucket)
	assert.Equal(t, "nightly", s3.Prefix)
	assert.False(t, s3.UseSSL)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad timeout":    {EnvTimeout: "soon"},
		"zero timeout":   {EnvTimeout: "0s"},
		"bad workers":    {EnvWorkers: "many"},
		"zero workers":   {EnvWorkers: "0"},
		"bad sequential": {EnvSequential: "maybe"},
		"bad ssl":        {EnvS3UseSSL: "sometimes"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(mapEnv(env))
			require.Error(t, err)
			for k := range env {
				assert.Contains(t, err.Error(), k)
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zkfuzz.env")
	require.NoError(t, os.WriteFile(path, []byte("ZKFUZZ_WORKERS=3\nZKFUZZ_BACKEND_B=exec:adapter\n"), 0o644))
	t.Setenv(EnvBackendB, "yaegi")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers, "file value used")
	assert.Equal(t, "yaegi", cfg.BackendB, "environment wins over file")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "read env file")
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
