package harness

import (
	"fmt"
	"slices"
)

// State is a step of a single comparison.
type State string

const (
	StateLoadInput     State = "LOAD_INPUT"
	StateRunBackendA   State = "RUN_BACKEND_A"
	StateRunBackendB   State = "RUN_BACKEND_B"
	StateCompare       State = "COMPARE"
	StateRecord        State = "RECORD"
	StateGenerateRepro State = "GENERATE_REPRO"
	StateDone          State = "DONE"
)

// transitions lists the legal successors of each state. DONE has none.
var transitions = map[State][]State{
	StateLoadInput:     {StateRunBackendA},
	StateRunBackendA:   {StateRunBackendB},
	StateRunBackendB:   {StateCompare},
	StateCompare:       {StateRecord},
	StateRecord:        {StateGenerateRepro, StateDone},
	StateGenerateRepro: {StateDone},
}

// machine tracks one comparison. It is not safe for concurrent use; each
// comparison owns its own.
type machine struct {
	state State
	trail []State
}

func newMachine() *machine {
	return &machine{state: StateLoadInput, trail: []State{StateLoadInput}}
}

// advance moves to next or fails with CodeInvalidTransition.
func (m *machine) advance(next State) error {
	if !slices.Contains(transitions[m.state], next) {
		return newError(CodeInvalidTransition, "", fmt.Sprintf("%s -> %s", m.state, next), nil)
	}
	m.state = next
	m.trail = append(m.trail, next)
	return nil
}

// State returns the current state.
func (m *machine) State() State {
	return m.state
}

// Trail returns every state visited, in order.
func (m *machine) Trail() []State {
	return slices.Clone(m.trail)
}
