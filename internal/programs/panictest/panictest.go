// Package panictest panics on request.
package panictest

import "encoding/json"

// DefaultMessage is used when the input carries no panic_msg.
const DefaultMessage = "Intentional panic for testing"

type Input struct {
	ShouldPanic bool   `json:"should_panic"`
	PanicMsg    string `json:"panic_msg,omitempty"`
}

// Commit decodes raw and panics if asked to. Otherwise it commits
// should_panic as 0 followed by status code 0.
func Commit(raw []byte) ([]int64, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	if in.ShouldPanic {
		msg := in.PanicMsg
		if msg == "" {
			msg = DefaultMessage
		}
		panic(msg)
	}
	return []int64{0, 0}, nil
}
