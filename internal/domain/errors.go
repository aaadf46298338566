package domain

import "fmt"

// FormatError reports a malformed wire payload or a missing required field.
// The HTTP layer maps it to 400.
type FormatError struct {
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("required field missing or invalid: %s", e.Field)
	}
	return fmt.Sprintf("malformed payload: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// NewMissingFieldError names a required field absent after parsing.
func NewMissingFieldError(field string) *FormatError {
	return &FormatError{Field: field}
}

// CacheMissError reports that an opaque key was not found within the
// bounded wait. Mapped to 400 or 404 depending on the endpoint.
type CacheMissError struct {
	Key string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("no cached value for key %q", e.Key)
}

// EngineError is the dialog engine's declared failure type. It becomes a
// Failure response unless fail-fast mode is on.
type EngineError struct {
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dialog engine error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("dialog engine error: %s", e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }
