package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the terminal state of one backend execution.
type Status string

const (
	StatusOK      Status = "OK"
	StatusPanic   Status = "PANIC"
	StatusTimeout Status = "TIMEOUT"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusPanic, StatusTimeout:
		return true
	}
	return false
}

// Result is the outcome of running one program on one input in one
// backend. Commits are only meaningful when Status is OK; Meta is
// informational and never compared.
type Result struct {
	Status  Status
	Elapsed time.Duration
	Commits []IRValue
	Meta    map[string]string
}

type resultWire struct {
	Status    Status            `json:"status"`
	ElapsedMS int64             `json:"elapsed_ms"`
	Commits   IRArray           `json:"commits"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// MarshalJSON emits the execution result document:
// {"status", "elapsed_ms", "commits", "meta"}.
func (r Result) MarshalJSON() ([]byte, error) {
	commits := IRArray(r.Commits)
	if commits == nil {
		commits = IRArray{}
	}
	return json.Marshal(resultWire{
		Status:    r.Status,
		ElapsedMS: r.Elapsed.Milliseconds(),
		Commits:   commits,
		Meta:      r.Meta,
	})
}

// UnmarshalJSON decodes an execution result document.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Status.Valid() {
		return fmt.Errorf("invalid status %q", w.Status)
	}
	if w.ElapsedMS < 0 {
		return fmt.Errorf("negative elapsed_ms %d", w.ElapsedMS)
	}
	*r = Result{
		Status:  w.Status,
		Elapsed: time.Duration(w.ElapsedMS) * time.Millisecond,
		Commits: []IRValue(w.Commits),
		Meta:    w.Meta,
	}
	return nil
}

// Diff is the oracle's verdict on a pair of results. Reason is empty when
// Equal is true. TimingDelta never influences Equal.
type Diff struct {
	Equal       bool
	Reason      string
	TimingDelta time.Duration
}

type diffWire struct {
	Equal         bool   `json:"equal"`
	Reason        string `json:"reason,omitempty"`
	TimingDeltaMS int64  `json:"timing_delta_ms"`
}

// MarshalJSON emits {"equal", "reason", "timing_delta_ms"}.
func (d Diff) MarshalJSON() ([]byte, error) {
	return json.Marshal(diffWire{
		Equal:         d.Equal,
		Reason:        d.Reason,
		TimingDeltaMS: d.TimingDelta.Milliseconds(),
	})
}

// UnmarshalJSON decodes a divergence report.
func (d *Diff) UnmarshalJSON(data []byte) error {
	var w diffWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Diff{
		Equal:       w.Equal,
		Reason:      w.Reason,
		TimingDelta: time.Duration(w.TimingDeltaMS) * time.Millisecond,
	}
	return nil
}
