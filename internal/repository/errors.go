// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to touch a resource owned by someone else, while
// ErrAlreadyRecorded signals that an adherence record has already been
// resolved and must not be mutated again.
package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as creating a reminder against another
// user's schedule. Handlers should translate this into an HTTP 403
// response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as deleting a medication that still has
// schedules attached. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrAlreadyRecorded is returned when a response is recorded against an
// adherence record that has already been resolved out of pending. The
// transition performs no mutation in that case. Handlers translate this
// into an HTTP 400 response.
var ErrAlreadyRecorded = errors.New("response already recorded for this reminder")

// ValidationError carries field-level constraint violations keyed by
// field name. It satisfies the error interface so it can travel through
// the generic sync machinery, while handlers can unwrap the individual
// messages for the response body.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError wraps a non-empty field error map. Passing an empty
// map is a programming error; callers must check emptiness first.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Error renders the violations in a stable, human-readable order.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}
