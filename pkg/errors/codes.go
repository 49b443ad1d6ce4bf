package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique identifier for specific error conditions in Optibench.
type ErrorCode int

const (
	ErrCodeUnknown         ErrorCode = 1000
	ErrCodeConfig          ErrorCode = 1001
	ErrCodeInvalidArgument ErrorCode = 1002

	// Device lifecycle
	ErrCodeConnection      ErrorCode = 2001
	ErrCodeInvalidState    ErrorCode = 2002
	ErrCodeTimeoutExceeded ErrorCode = 2003

	// Data path
	ErrCodeDecode ErrorCode = 3001
	ErrCodeDriver ErrorCode = 3002

	// External tools
	ErrCodeAutomation ErrorCode = 4001
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:         "Unknown",
	ErrCodeConfig:          "ConfigError",
	ErrCodeInvalidArgument: "InvalidArgument",
	ErrCodeConnection:      "ConnectionError",
	ErrCodeInvalidState:    "InvalidState",
	ErrCodeTimeoutExceeded: "TimeoutExceeded",
	ErrCodeDecode:          "DecodeError",
	ErrCodeDriver:          "DriverError",
	ErrCodeAutomation:      "AutomationError",
}

// String returns the taxonomy name of the code.
func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// HostError is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type HostError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *HostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *HostError) Unwrap() error {
	return e.Err
}

// New creates a new HostError with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &HostError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// CodeOf returns the code of the outermost HostError in err's chain,
// or ErrCodeUnknown when there is none.
func CodeOf(err error) ErrorCode {
	var he *HostError
	if stderrors.As(err, &he) {
		return he.Code
	}
	return ErrCodeUnknown
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var he *HostError
		if !stderrors.As(err, &he) {
			return false
		}
		if he.Code == code {
			return true
		}
		err = he.Err
	}
	return false
}

// Personal.AI order the ending
