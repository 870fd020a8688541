// Package config resolves zkfuzz settings from defaults, a .env file and
// ZKFUZZ_* environment variables, in increasing priority. Command-line
// flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/roach88/zkfuzz/internal/store"
)

// DefaultEnvFile is read when no other file is named.
const DefaultEnvFile = ".env"

// Environment variable names.
const (
	EnvArtifactsDir = "ZKFUZZ_ARTIFACTS_DIR"
	EnvTimeout      = "ZKFUZZ_TIMEOUT"
	EnvWorkers      = "ZKFUZZ_WORKERS"
	EnvBackendA     = "ZKFUZZ_BACKEND_A"
	EnvBackendB     = "ZKFUZZ_BACKEND_B"
	EnvSequential   = "ZKFUZZ_SEQUENTIAL"
	EnvReproCommand = "ZKFUZZ_REPRO_COMMAND"
	EnvS3Endpoint   = "ZKFUZZ_S3_ENDPOINT"
	EnvS3Region     = "ZKFUZZ_S3_REGION"
	EnvS3AccessKey  = "ZKFUZZ_S3_ACCESS_KEY"
	EnvS3SecretKey  = "ZKFUZZ_S3_SECRET_KEY"
	EnvS3Bucket     = "ZKFUZZ_S3_BUCKET"
	EnvS3Prefix     = "ZKFUZZ_S3_PREFIX"
	EnvS3UseSSL     = "ZKFUZZ_S3_USE_SSL"
)

// Config holds resolved settings.
type Config struct {
	ArtifactsDir string
	Timeout      time.Duration
	Workers      int
	BackendA     string
	BackendB     string
	Sequential   bool
	ReproCommand string
	Mirror       MirrorConfig
}

// MirrorConfig configures the optional S3 mirror of divergence files.
type MirrorConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Enabled reports whether a mirror endpoint is configured.
func (m MirrorConfig) Enabled() bool {
	return m.Endpoint != ""
}

// S3 converts m for store.NewS3Mirror.
func (m MirrorConfig) S3() store.S3Config {
	return store.S3Config{
		Endpoint:  m.Endpoint,
		Region:    m.Region,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Bucket:    m.Bucket,
		Prefix:    m.Prefix,
		UseSSL:    m.UseSSL,
	}
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		ArtifactsDir: "artifacts",
		Timeout:      10 * time.Second,
		Workers:      1,
		BackendA:     "native",
		BackendB:     "yaegi",
		ReproCommand: "zkfuzz",
		Mirror: MirrorConfig{
			Region: "us-east-1",
			Bucket: "zkfuzz-divergences",
			UseSSL: true,
		},
	}
}

// Load reads envFile (DefaultEnvFile when empty) if it exists and
// resolves settings from it and the process environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	fileVals, err := godotenv.Read(envFile)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
		fileVals = map[string]string{}
	}
	return FromEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileVals[key]
	})
}

// FromEnv resolves settings through getenv. Empty values keep defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Defaults()
	get := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	setString := func(dst *string, key string) {
		if v := get(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.ArtifactsDir, EnvArtifactsDir)
	setString(&cfg.BackendA, EnvBackendA)
	setString(&cfg.BackendB, EnvBackendB)
	setString(&cfg.ReproCommand, EnvReproCommand)
	setString(&cfg.Mirror.Endpoint, EnvS3Endpoint)
	setString(&cfg.Mirror.Region, EnvS3Region)
	setString(&cfg.Mirror.AccessKey, EnvS3AccessKey)
	setString(&cfg.Mirror.SecretKey, EnvS3SecretKey)
	setString(&cfg.Mirror.Bucket, EnvS3Bucket)
	setString(&cfg.Mirror.Prefix, EnvS3Prefix)

	if v := get(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s: must be positive, got %s", EnvTimeout, v)
		}
		cfg.Timeout = d
	}
	if v := get(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("%s: must be at least 1, got %d", EnvWorkers, n)
		}
		cfg.Workers = n
	}
	if v := get(EnvSequential); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvSequential, err)
		}
		cfg.Sequential = b
	}
	if v := get(EnvS3UseSSL); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvS3UseSSL, err)
		}
		cfg.Mirror.UseSSL = b
	}
	return &cfg, nil
}
