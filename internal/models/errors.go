package models

import "fmt"

// ValidationError represents rejected input.
// Raised before any query is built; never retried.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// UnavailableError reports that a station's data could not be fetched
// (connectivity, timeout, bad schema). Callers keep rendering the other
// stations.
type UnavailableError struct {
	Table string
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("data unavailable for %s: %v", e.Table, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsTransient returns true; a later fetch may succeed
func (e *UnavailableError) IsTransient() bool {
	return true
}
