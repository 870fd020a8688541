package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_EqualPath(t *testing.T) {
	m := newMachine()
	assert.Equal(t, StateLoadInput, m.State())

	for _, s := range []State{StateRunBackendA, StateRunBackendB, StateCompare, StateRecord, StateDone} {
		require.NoError(t, m.advance(s))
	}
	assert.Equal(t, StateDone, m.State())
	assert.Len(t, m.Trail(), 6)
}

func TestMachine_DivergedPath(t *testing.T) {
	m := newMachine()
	for _, s := range []State{StateRunBackendA, StateRunBackendB, StateCompare, StateRecord, StateGenerateRepro, StateDone} {
		require.NoError(t, m.advance(s))
	}
	assert.Equal(t, StateDone, m.State())
}

func TestMachine_RejectsIllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		next State
	}{
		{"compare before running", nil, StateCompare},
		{"b before a", nil, StateRunBackendB},
		{"record before compare", []State{StateRunBackendA, StateRunBackendB}, StateRecord},
		{"repro before record", []State{StateRunBackendA, StateRunBackendB, StateCompare}, StateGenerateRepro},
		{"done twice", []State{StateRunBackendA, StateRunBackendB, StateCompare, StateRecord, StateDone}, StateDone},
		{"record twice", []State{StateRunBackendA, StateRunBackendB, StateCompare, StateRecord}, StateRecord},
		{"restart after done", []State{StateRunBackendA, StateRunBackendB, StateCompare, StateRecord, StateDone}, StateLoadInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine()
			for _, s := range tt.path {
				require.NoError(t, m.advance(s))
			}
			before := m.State()

			err := m.advance(tt.next)
			require.Error(t, err)
			assert.True(t, IsError(err, CodeInvalidTransition))
			assert.Equal(t, before, m.State(), "state unchanged after rejection")
		})
	}
}

func TestMachine_TrailIsACopy(t *testing.T) {
	m := newMachine()
	trail := m.Trail()
	trail[0] = StateDone
	assert.Equal(t, StateLoadInput, m.Trail()[0])
}

func TestIsError(t *testing.T) {
	err := newError(CodeUnknownStrategy, "fib", "resolve strategy", nil)
	assert.True(t, IsError(err))
	assert.True(t, IsError(err, CodeUnknownProgram, CodeUnknownStrategy))
	assert.False(t, IsError(err, CodeStoreWriteFailed))
	assert.False(t, IsError(assert.AnError))
	assert.Equal(t, "UNKNOWN_STRATEGY: resolve strategy (program=fib)", err.Error())
}
