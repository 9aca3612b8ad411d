package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the point-cloud core. Concrete errors wrap one of
// these so callers can branch with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrMalformedMetadata   = errors.New("malformed metadata")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotImplemented      = errors.New("not implemented")
)

// ValidationError reports a schema violation on a single record.
type ValidationError struct {
	Record string // tile name or row index, when known
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("validation failed: %s: %s %s", e.Record, e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(record, field, reason string) error {
	return &ValidationError{Record: record, Field: field, Reason: reason}
}
