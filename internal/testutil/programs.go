package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/zkfuzz/internal/programs"
)

// BlockingProgramID names the program returned by BlockingProgram.
const BlockingProgramID = "blocking"

// BlockingProgram returns a program that never finishes on its own. It
// stands in for an infinite loop without burning CPU: every execution
// blocks until the test ends, then returns. The program has no source,
// so only native backends can run it.
func BlockingProgram(t *testing.T) programs.Program {
	t.Helper()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	return programs.Program{
		ID: BlockingProgramID,
		Entry: func([]byte) ([]int64, error) {
			<-release
			return []int64{0}, nil
		},
	}
}

// SleepProgramID names the program returned by SleepProgram.
const SleepProgramID = "sleepy"

// SleepProgram returns an interpretable program that sleeps for
// {"ms": n} milliseconds and commits n. Interpreting it requires "time"
// in the backend's import allowlist.
func SleepProgram() programs.Program {
	return programs.Program{
		ID:      SleepProgramID,
		Package: "sleepy",
		Source: `package sleepy

import (
	"encoding/json"
	"time"
)

type Input struct {
	MS int64 ` + "`json:\"ms\"`" + `
}

func Commit(raw []byte) ([]int64, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	time.Sleep(time.Duration(in.MS) * time.Millisecond)
	return []int64{in.MS}, nil
}
`,
		Entry: func(raw []byte) ([]int64, error) {
			var in struct {
				MS int64 `json:"ms"`
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, err
			}
			time.Sleep(time.Duration(in.MS) * time.Millisecond)
			return []int64{in.MS}, nil
		},
	}
}

// Registry returns the default programs plus extra.
func Registry(t *testing.T, extra ...programs.Program) *programs.Registry {
	t.Helper()
	base := programs.Default()
	all := make([]programs.Program, 0, len(base.IDs())+len(extra))
	for _, id := range base.IDs() {
		p, _ := base.Lookup(id)
		all = append(all, p)
	}
	all = append(all, extra...)
	reg, err := programs.NewRegistry(all...)
	require.NoError(t, err)
	return reg
}
