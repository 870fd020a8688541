package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/roach88/zkfuzz/internal/ir"
	"github.com/roach88/zkfuzz/internal/runner"
	"github.com/roach88/zkfuzz/internal/store"
)

// DefaultReproCommand is the executable repro scripts invoke.
const DefaultReproCommand = "zkfuzz"

// Repro describes the comparison a reproduction script reruns.
type Repro struct {
	Command  string
	RunID    string
	Program  string
	BackendA string
	BackendB string
	Timeout  time.Duration
	Reason   string
	// WorkDir resolves relative executable paths in Command and exec:
	// backends, so the script runs from any directory.
	WorkDir string
}

var reproTemplate = template.Must(template.New("repro").Parse(`#!/usr/bin/env bash
# Reruns comparison {{.RunID}} of program {{.Program}}.
# Recorded divergence: {{.Reason}}
set -euo pipefail
here="$(cd "$(dirname "${BASH_SOURCE[0]}")" && pwd)"
exec {{.Command}} run \
  --program {{.Program}} \
  --input "$here"/{{.Input}} \
  --backend-a {{.BackendA}} \
  --backend-b {{.BackendB}} \
  --timeout {{.Timeout}} \
  --artifacts "$(dirname "$here")"
`))

// Script renders a self-contained bash script that reruns the comparison
// against the input.json stored next to it. It takes no parameters and
// records the rerun in the artifact directory holding the script's own
// divergence directory.
func (r Repro) Script() ([]byte, error) {
	cmd := r.Command
	if cmd == "" {
		cmd = DefaultReproCommand
	}
	cmd = r.resolve(cmd)
	data := struct {
		RunID, Program, Reason                      string
		Command, Input, BackendA, BackendB, Timeout string
	}{
		RunID:    oneLine(r.RunID),
		Program:  shellQuote(r.Program),
		Reason:   oneLine(r.Reason),
		Command:  shellQuote(cmd),
		Input:    shellQuote(store.InputFile),
		BackendA: shellQuote(r.resolveBackend(r.BackendA)),
		BackendB: shellQuote(r.resolveBackend(r.BackendB)),
		Timeout:  shellQuote(r.Timeout.String()),
	}
	var buf bytes.Buffer
	if err := reproTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render repro script: %w", err)
	}
	return buf.Bytes(), nil
}

// resolve anchors a relative executable path at WorkDir. Bare names are
// left for PATH lookup.
func (r Repro) resolve(path string) string {
	if r.WorkDir == "" || filepath.IsAbs(path) || !strings.ContainsRune(path, '/') {
		return path
	}
	return filepath.Join(r.WorkDir, path)
}

func (r Repro) resolveBackend(spec string) string {
	rest, ok := strings.CutPrefix(spec, "exec:")
	if !ok {
		return spec
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return spec
	}
	fields[0] = r.resolve(fields[0])
	return "exec:" + strings.Join(fields, " ")
}

// shellQuote returns s unchanged when it is made of safe characters and
// single-quoted otherwise.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// oneLine keeps free text inside a single comment line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BackendLog is one side of a run log.
type BackendLog struct {
	Name    string    `json:"name"`
	Version string    `json:"version"`
	Result  ir.Result `json:"result"`
	// CommitsDigest lets two run logs be matched without diffing streams.
	CommitsDigest string `json:"commits_digest"`
}

func newBackendLog(r runner.Runner, res ir.Result) (BackendLog, error) {
	digest, err := ir.CommitsDigest(res.Commits)
	if err != nil {
		return BackendLog{}, err
	}
	return BackendLog{Name: r.Name(), Version: r.Version(), Result: res, CommitsDigest: digest}, nil
}

// RunLog is the run_log.json document of a divergence directory.
type RunLog struct {
	RunID      string     `json:"run_id"`
	Program    string     `json:"program"`
	Input      string     `json:"input"`
	CampaignID string     `json:"campaign_id,omitempty"`
	MutationOp string     `json:"mutation_op,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	BackendA   BackendLog `json:"backend_a"`
	BackendB   BackendLog `json:"backend_b"`
	Diff       ir.Diff    `json:"diff"`
	States     []State    `json:"states"`
}

func (l RunLog) marshal() ([]byte, error) {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal run log: %w", err)
	}
	return append(data, '\n'), nil
}
