package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/zkfuzz/internal/fsx"
)

// Files written into each divergence directory.
const (
	InputFile  = "input.json"
	RunLogFile = "run_log.json"
	ReproFile  = "repro.sh"
)

// Divergence is the detail persisted for one diverging comparison.
type Divergence struct {
	Input  []byte // the triggering input, verbatim
	RunLog []byte // JSON document describing both results and the diff
	Script []byte // executable reproduction script
}

// DivergencePath returns the directory that PersistDivergence writes for
// runID. It is known before anything is written, so the record can name it.
func (s *Store) DivergencePath(runID string) string {
	return filepath.Join(s.dir, runID)
}

// PersistDivergence writes the divergence directory for runID and, when a
// mirror is configured, uploads the same files. A mirror failure is logged
// and does not fail the call; the local copy is authoritative.
func (s *Store) PersistDivergence(ctx context.Context, runID string, d Divergence) (string, error) {
	if runID == "" {
		return "", errors.New("persist divergence: run_id is required")
	}
	dir := s.DivergencePath(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("persist divergence %s: %w", runID, err)
	}

	files := []struct {
		name    string
		content []byte
		mode    os.FileMode
	}{
		{InputFile, d.Input, 0o644},
		{RunLogFile, d.RunLog, 0o644},
		{ReproFile, d.Script, 0o755},
	}
	for _, f := range files {
		if err := fsx.WriteFileAtomic(filepath.Join(dir, f.name), f.content, f.mode); err != nil {
			return "", fmt.Errorf("persist divergence %s: %w", runID, err)
		}
	}
	s.logger.Info("divergence persisted", "run_id", runID, "dir", dir)

	if s.mirror == nil {
		return dir, nil
	}
	for _, f := range files {
		if err := s.mirror.Put(ctx, runID, f.name, f.content); err != nil {
			s.logger.Warn("mirror upload failed", "run_id", runID, "file", f.name, "error", err)
		}
	}
	return dir, nil
}
