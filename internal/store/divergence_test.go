package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	mu   sync.Mutex
	puts map[string][]byte
	err  error
}

func (m *fakeMirror) Put(_ context.Context, runID, name string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.puts == nil {
		m.puts = make(map[string][]byte)
	}
	m.puts[runID+"/"+name] = content
	return nil
}

func testDivergence() Divergence {
	return Divergence{
		Input:  []byte(`{"n":24}`),
		RunLog: []byte(`{"run_id":"run-1"}`),
		Script: []byte("#!/usr/bin/env bash\nexit 0\n"),
	}
}

func TestPersistDivergence_WritesFiles(t *testing.T) {
	s := createTestStore(t)

	dir, err := s.PersistDivergence(context.Background(), "run-1", testDivergence())
	require.NoError(t, err)
	assert.Equal(t, s.DivergencePath("run-1"), dir)

	input, err := os.ReadFile(filepath.Join(dir, InputFile))
	require.NoError(t, err)
	assert.Equal(t, `{"n":24}`, string(input))

	runLog, err := os.ReadFile(filepath.Join(dir, RunLogFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"run_id":"run-1"}`, string(runLog))

	info, err := os.Stat(filepath.Join(dir, ReproFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "repro script is executable")
}

func TestPersistDivergence_RequiresRunID(t *testing.T) {
	s := createTestStore(t)

	_, err := s.PersistDivergence(context.Background(), "", testDivergence())
	assert.ErrorContains(t, err, "run_id is required")
}

func TestPersistDivergence_Mirror(t *testing.T) {
	m := &fakeMirror{}
	s := createTestStore(t, WithMirror(m))

	_, err := s.PersistDivergence(context.Background(), "run-1", testDivergence())
	require.NoError(t, err)

	assert.Len(t, m.puts, 3)
	assert.Equal(t, []byte(`{"n":24}`), m.puts["run-1/"+InputFile])
	assert.Contains(t, m.puts, "run-1/"+ReproFile)
}

func TestPersistDivergence_MirrorFailureIsNotFatal(t *testing.T) {
	m := &fakeMirror{err: errors.New("connection refused")}
	s := createTestStore(t, WithMirror(m))

	dir, err := s.PersistDivergence(context.Background(), "run-1", testDivergence())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, InputFile))
}

func TestNewS3Mirror_Validation(t *testing.T) {
	valid := S3Config{Endpoint: "localhost:9000", AccessKey: "ak", SecretKey: "sk", Bucket: "zkfuzz"}

	tests := []struct {
		name    string
		mutate  func(*S3Config)
		wantErr string
	}{
		{"missing endpoint", func(c *S3Config) { c.Endpoint = " " }, "endpoint is required"},
		{"missing access key", func(c *S3Config) { c.AccessKey = "" }, "access key and secret key are required"},
		{"missing secret key", func(c *S3Config) { c.SecretKey = "" }, "access key and secret key are required"},
		{"missing bucket", func(c *S3Config) { c.Bucket = "" }, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewS3Mirror(cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	m, err := NewS3Mirror(S3Config{Endpoint: "localhost:9000", AccessKey: "ak", SecretKey: "sk", Bucket: "zkfuzz", Prefix: "/divergences/"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", m.region)
	assert.Equal(t, "divergences", m.prefix)
}

func TestS3Mirror_PutValidation(t *testing.T) {
	m, err := NewS3Mirror(S3Config{Endpoint: "localhost:9000", AccessKey: "ak", SecretKey: "sk", Bucket: "zkfuzz"})
	require.NoError(t, err)

	assert.ErrorContains(t, m.Put(context.Background(), "", InputFile, nil), "run_id is required")
	assert.ErrorContains(t, m.Put(context.Background(), "run-1", " ", nil), "name is required")
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "run-1/input.json", objectKey("", "run-1", "input.json"))
	assert.Equal(t, "div/run-1/repro.sh", objectKey("div", " run-1 ", "/repro.sh"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType(RunLogFile))
	assert.Equal(t, "text/x-shellscript", contentType(ReproFile))
	assert.Equal(t, "application/octet-stream", contentType("input.bin"))
}
