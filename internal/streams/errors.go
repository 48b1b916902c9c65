package streams

import "fmt"

// StreamError represents a domain-specific error
type StreamError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Is matches any StreamError with the same code, so the sentinels below work
// with errors.Is.
func (e *StreamError) Is(target error) bool {
	t, ok := target.(*StreamError)
	return ok && t.Code == e.Code
}

// Error codes
const (
	ErrCodeValidation     = "VALIDATION"
	ErrCodeAlreadyRunning = "ALREADY_RUNNING"
	ErrCodeCapacity       = "CAPACITY"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeSpawnFailed    = "SPAWN_FAILED"
	ErrCodeShuttingDown   = "SHUTTING_DOWN"
)

// Sentinels for errors.Is.
var (
	ErrValidation     = &StreamError{Code: ErrCodeValidation}
	ErrAlreadyRunning = &StreamError{Code: ErrCodeAlreadyRunning}
	ErrCapacity       = &StreamError{Code: ErrCodeCapacity}
	ErrNotFound       = &StreamError{Code: ErrCodeNotFound}
	ErrSpawnFailed    = &StreamError{Code: ErrCodeSpawnFailed}
	ErrShuttingDown   = &StreamError{Code: ErrCodeShuttingDown}
)

// NewStreamError creates a new stream error
func NewStreamError(code, message string, cause error) *StreamError {
	return &StreamError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
