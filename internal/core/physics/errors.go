package physics

import (
	"errors"
	"fmt"
	"strings"
)

// Core simulation errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNumericInstability = errors.New("numeric instability")
	ErrUnknownBody        = errors.New("unknown body id")
	ErrCorruptState       = errors.New("corrupt simulation state")
	ErrHalted             = errors.New("simulation halted")
)

// ErrorCode is a numeric classification of simulation errors, stable enough to be
// carried in reports and over the wire.
type ErrorCode int

const (
	ErrorCodeNone ErrorCode = 0

	// Recoverable (1000-1999)

	ErrorCodeInvalidInput       ErrorCode = 1001
	ErrorCodeNumericInstability ErrorCode = 1002
	ErrorCodeUnknownBody        ErrorCode = 1003

	// Fatal (9000-9999)

	ErrorCodeCorruptState ErrorCode = 9001
	ErrorCodeHalted       ErrorCode = 9002
)

var errorCodeMap = map[error]ErrorCode{
	ErrInvalidInput:       ErrorCodeInvalidInput,
	ErrNumericInstability: ErrorCodeNumericInstability,
	ErrUnknownBody:        ErrorCodeUnknownBody,
	ErrCorruptState:       ErrorCodeCorruptState,
	ErrHalted:             ErrorCodeHalted,
}

var codeSentinels = map[ErrorCode]error{
	ErrorCodeInvalidInput:       ErrInvalidInput,
	ErrorCodeNumericInstability: ErrNumericInstability,
	ErrorCodeUnknownBody:        ErrUnknownBody,
	ErrorCodeCorruptState:       ErrCorruptState,
	ErrorCodeHalted:             ErrHalted,
}

// String returns the short snake_case name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeNone:
		return "none"
	case ErrorCodeInvalidInput:
		return "invalid_input"
	case ErrorCodeNumericInstability:
		return "numeric_instability"
	case ErrorCodeUnknownBody:
		return "unknown_body_id"
	case ErrorCodeCorruptState:
		return "corrupt_state"
	case ErrorCodeHalted:
		return "halted"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// Error is a simulation error with a code and the bodies it concerns.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Bodies  []BodyID
	Context map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Bodies) > 0 {
		b.WriteString(" [")
		for i, id := range e.Bodies {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(id.String())
		}
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel belonging to the error code, so errors.Is(err, ErrUnknownBody)
// holds for coded errors even without a wrapped cause.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// IsFatal reports whether the simulation core must stop after this error.
func (e *Error) IsFatal() bool {
	return e.Code == ErrorCodeCorruptState || e.Code == ErrorCodeHalted
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates a coded simulation error.
func NewError(code ErrorCode, message string, cause error, bodies ...BodyID) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Bodies:  bodies,
	}
}

// InvalidInputf is shorthand for an ErrorCodeInvalidInput error.
func InvalidInputf(format string, args ...any) *Error {
	return NewError(ErrorCodeInvalidInput, fmt.Sprintf(format, args...), nil)
}

// UnknownBody builds the error reported for commands naming a missing body.
func UnknownBody(op string, id BodyID) *Error {
	return NewError(ErrorCodeUnknownBody, op+": unknown body", nil, id)
}

// GetErrorCode returns the error code for a given error
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ErrorCodeNone
	}
	var simErr *Error
	if errors.As(err, &simErr) {
		return simErr.Code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrorCodeNone
}

// IsFatal reports whether err terminates the simulation core.
func IsFatal(err error) bool {
	var simErr *Error
	if errors.As(err, &simErr) {
		return simErr.IsFatal()
	}
	return errors.Is(err, ErrCorruptState) || errors.Is(err, ErrHalted)
}
