package runner

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes precondition failures. A precondition failure
// means the backend never produced a result; it is not a status.
type ErrorCode string

const (
	// CodeUnknownProgram indicates the program id is not registered.
	CodeUnknownProgram ErrorCode = "UNKNOWN_PROGRAM"

	// CodeUndecodableInput indicates the program could not decode its input.
	CodeUndecodableInput ErrorCode = "UNDECODABLE_INPUT"

	// CodeBuildFailed indicates the backend could not prepare the program.
	CodeBuildFailed ErrorCode = "BUILD_FAILED"

	// CodeAdapterFailed indicates an external adapter misbehaved.
	CodeAdapterFailed ErrorCode = "ADAPTER_FAILED"
)

// PreconditionError reports why a backend could not run a program at all.
type PreconditionError struct {
	Code    ErrorCode
	Backend string
	Program string
	Message string
	Err     error
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("%s: %s (backend=%s, program=%s)", e.Code, e.Message, e.Backend, e.Program)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err is a PreconditionError, optionally
// restricted to the given codes.
func IsPrecondition(err error, codes ...ErrorCode) bool {
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if pe.Code == c {
			return true
		}
	}
	return false
}

func newPrecondition(code ErrorCode, backend, program, message string, err error) *PreconditionError {
	return &PreconditionError{Code: code, Backend: backend, Program: program, Message: message, Err: err}
}
