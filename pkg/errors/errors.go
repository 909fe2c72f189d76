// Package errors provides structured error handling for coltable.
//
// Every failure surfaced by the table engine is an *Error carrying an
// ErrorType. The type tells the caller which of the engine's failure classes
// it is looking at:
//
//   - ErrorTypeConfig / ErrorTypeCapability: structural problems (malformed
//     descriptor, column type without an adapter). Raised before any I/O.
//   - ErrorTypeState: an operation was invoked in the wrong lifecycle phase
//     (write after close, store access after dispose, key on a keyless row).
//   - ErrorTypeStorage: the physical store failed while opening, reading,
//     writing or copying.
//   - ErrorTypeCancelled: a long-running operation observed a cancelled
//     context and abandoned its work.
//
// None of these are retried by the engine; IsRetryable exists so callers can
// share one policy function across subsystems.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments (bad cell count, bad filter index)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration and descriptor errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCapability represents an unsupported logical column type
	ErrorTypeCapability ErrorType = "capability"
	// ErrorTypeState represents an operation in the wrong lifecycle phase
	ErrorTypeState ErrorType = "state"
	// ErrorTypeStorage represents physical store I/O failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeCancelled represents cooperative cancellation
	ErrorTypeCancelled ErrorType = "cancelled"
	// ErrorTypeData represents cell values that do not fit their column
	ErrorTypeData ErrorType = "data"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a format string.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable. The table engine never
// produces retryable errors; only timeouts raised by callers qualify.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == ErrorTypeTimeout
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost *Error in err's chain, or the empty
// string when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
