package transcription

import (
	"errors"
	"fmt"
)

type ErrorType int

const (
	ErrSubmit ErrorType = iota
	ErrPoll
	ErrTimeout
	ErrParse
	ErrRequest
	ErrCancelled
	ErrUnknown
)

func (t ErrorType) String() string {
	switch t {
	case ErrSubmit:
		return "Submit"
	case ErrPoll:
		return "Poll"
	case ErrTimeout:
		return "Timeout"
	case ErrParse:
		return "Parse"
	case ErrRequest:
		return "Request"
	case ErrCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the single opaque failure a provider reports to the orchestrator.
// The orchestrator logs it and moves on to the next provider; it is never
// shown raw to the end caller.
type Error struct {
	Type     ErrorType
	Provider ProviderName
	Message  string
	Cause    error
}

func NewError(provider ProviderName, errorType ErrorType, message string) *Error {
	return &Error{
		Type:     errorType,
		Provider: provider,
		Message:  message,
	}
}

func NewErrorWithCause(provider ProviderName, errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:     errorType,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] [%s] %s | cause: %v", e.Provider, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] [%s] %s", e.Provider, e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsErrorType reports whether err is a provider Error of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Type == errorType
	}
	return false
}

// ErrServiceUnavailable is the only error surfaced to callers when every
// provider in the chain has failed. The underlying provider errors are
// logged but deliberately not attached, so provider internals never leak
// into responses.
var ErrServiceUnavailable = errors.New("transcription service unavailable, retry later")
