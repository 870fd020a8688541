package harness

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes harness failures.
type ErrorCode string

const (
	// CodeUnknownProgram indicates a program id that is not registered.
	CodeUnknownProgram ErrorCode = "UNKNOWN_PROGRAM"

	// CodeUnreadableInput indicates an input file that could not be read.
	CodeUnreadableInput ErrorCode = "UNREADABLE_INPUT"

	// CodeUndecodableInput indicates an input that is not a JSON document.
	CodeUndecodableInput ErrorCode = "UNDECODABLE_INPUT"

	// CodeUnknownStrategy indicates a strategy not offered for the program.
	CodeUnknownStrategy ErrorCode = "UNKNOWN_STRATEGY"

	// CodeStoreWriteFailed indicates a record could not be appended.
	// Fatal to a campaign.
	CodeStoreWriteFailed ErrorCode = "STORE_WRITE_FAILED"

	// CodeInvalidTransition indicates a comparison stepped out of order.
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Error is a harness failure with a machine-readable code.
type Error struct {
	Code    ErrorCode
	Program string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Program != "" {
		msg = fmt.Sprintf("%s: %s (program=%s)", e.Code, e.Message, e.Program)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsError reports whether err is a harness Error, optionally restricted
// to the given codes. Uses errors.As to handle wrapped errors.
func IsError(err error, codes ...ErrorCode) bool {
	var he *Error
	if !errors.As(err, &he) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if he.Code == c {
			return true
		}
	}
	return false
}

func newError(code ErrorCode, program, message string, err error) *Error {
	return &Error{Code: code, Program: program, Message: message, Err: err}
}
