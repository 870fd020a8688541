package mutate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/zkfuzz/internal/fsx"
	"github.com/roach88/zkfuzz/internal/ir"
)

// ManifestFile is the file name of a persisted plan.
const ManifestFile = "plan.json"

// ErrPlanMismatch means a regenerated plan does not match its manifest.
var ErrPlanMismatch = errors.New("plan does not match manifest")

// NewManifest describes plan without its payloads and fills in the
// manifest digest.
func NewManifest(plan *ir.Plan) (ir.Manifest, error) {
	m := ir.Manifest{
		Program:         plan.Program,
		Strategy:        plan.Strategy,
		StrategyVersion: plan.StrategyVersion,
		BaseSeed:        plan.BaseSeed,
		SeedDigest:      plan.SeedDigest,
		RngSeed:         plan.RngSeed,
		Entries:         make([]ir.ManifestEntry, len(plan.Variants)),
	}
	for i, v := range plan.Variants {
		d, err := ir.InputDigest(v.Input)
		if err != nil {
			return ir.Manifest{}, fmt.Errorf("variant %d: %w", v.Index, err)
		}
		m.Entries[i] = ir.ManifestEntry{Index: v.Index, Operator: v.Operator, Size: v.Size, InputDigest: d}
	}
	digest, err := manifestDigest(m)
	if err != nil {
		return ir.Manifest{}, err
	}
	m.Digest = digest
	return m, nil
}

func manifestDigest(m ir.Manifest) (string, error) {
	m.Digest = ""
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	return ir.PlanDigest(data)
}

// WriteManifest persists plan as dir/plan.json, creating dir if needed.
// It returns the manifest path.
func WriteManifest(dir string, plan *ir.Plan) (string, error) {
	m, err := NewManifest(plan)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create manifest dir: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := fsx.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest and checks its digest.
func ReadManifest(path string) (ir.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m ir.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return ir.Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	digest, err := manifestDigest(m)
	if err != nil {
		return ir.Manifest{}, err
	}
	if digest != m.Digest {
		return ir.Manifest{}, fmt.Errorf("manifest %s: digest %s does not match content %s", path, m.Digest, digest)
	}
	return m, nil
}

// Verify checks that plan regenerates exactly what m recorded.
func Verify(m ir.Manifest, plan *ir.Plan) error {
	if plan.Digest != m.Digest {
		return fmt.Errorf("%w: digest %s, manifest %s", ErrPlanMismatch, plan.Digest, m.Digest)
	}
	return nil
}

// Resume loads the manifest in dir if one exists and verifies plan
// against it; otherwise it writes plan as the new manifest. It returns the
// manifest path and whether an existing manifest was found.
func Resume(dir string, plan *ir.Plan) (string, bool, error) {
	path := filepath.Join(dir, ManifestFile)
	m, err := ReadManifest(path)
	switch {
	case err == nil:
		if err := Verify(m, plan); err != nil {
			return "", true, err
		}
		return path, true, nil
	case errors.Is(err, os.ErrNotExist):
		path, err := WriteManifest(dir, plan)
		return path, false, err
	default:
		return "", false, err
	}
}
