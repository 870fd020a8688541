// Package timeouttest burns a configurable number of loop iterations.
package timeouttest

import "encoding/json"

// Input.Iterations of zero never terminates.
type Input struct {
	Iterations uint64 `json:"iterations"`
}

type Output struct {
	Completed uint64
	Checksum  uint64
}

func Run(in Input) Output {
	var sum uint64
	for i := uint64(0); in.Iterations == 0 || i < in.Iterations; i++ {
		sum += i
	}
	return Output{Completed: in.Iterations, Checksum: sum}
}

// Commit decodes raw and returns the commit stream: completed iterations.
func Commit(raw []byte) ([]int64, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := Run(in)
	return []int64{int64(out.Completed)}, nil
}
