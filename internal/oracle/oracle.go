// Package oracle decides whether two execution results are semantically
// equal.
package oracle

import (
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/zkfuzz/internal/ir"
)

// Compare returns the verdict on a and b. It is pure: the same pair always
// yields the same Diff.
//
// Statuses are compared first. Two PANICs or two TIMEOUTs are equal no
// matter what their metadata or elapsed times say. Two OK results are
// equal only when their commit streams match element for element, in
// value and in type class. Timing is reported but never decides equality.
func Compare(a, b ir.Result) ir.Diff {
	d := ir.Diff{TimingDelta: timingDelta(a, b)}

	if a.Status != b.Status {
		d.Reason = fmt.Sprintf("status mismatch: %s vs %s", a.Status, b.Status)
		return d
	}
	if a.Status != ir.StatusOK {
		d.Equal = true
		return d
	}

	if len(a.Commits) != len(b.Commits) {
		d.Reason = fmt.Sprintf("commit count mismatch: %d vs %d", len(a.Commits), len(b.Commits))
		return d
	}
	for i := range a.Commits {
		if !commitEqual(a.Commits[i], b.Commits[i]) {
			d.Reason = fmt.Sprintf("commit[%d] mismatch: %s vs %s", i,
				ir.FormatValue(a.Commits[i]), ir.FormatValue(b.Commits[i]))
			return d
		}
	}
	d.Equal = true
	return d
}

func commitEqual(x, y ir.IRValue) bool {
	if ir.TypeClass(x) != ir.TypeClass(y) {
		return false
	}
	return cmp.Equal(x, y)
}

func timingDelta(a, b ir.Result) time.Duration {
	delta := a.Elapsed - b.Elapsed
	if delta < 0 {
		delta = -delta
	}
	return delta
}
