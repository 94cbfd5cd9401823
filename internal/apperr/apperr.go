// Package apperr defines the error kinds shared by the services and mapped to
// HTTP statuses by the web layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
)

// FieldErrors maps a field name to the messages reported against it.
type FieldErrors map[string][]string

// Add appends msg to field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Has reports whether field has at least one message.
func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

func (f FieldErrors) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(f[k], "; "))
	}
	return strings.Join(parts, ", ")
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Fields.String()
}

// Validation builds a ValidationError for a single field.
func Validation(field, msg string) *ValidationError {
	return &ValidationError{Fields: FieldErrors{field: {msg}}}
}

// ConflictError reports a violated uniqueness invariant.
type ConflictError struct {
	Fields FieldErrors
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Fields.String()
}

// Conflict builds a ConflictError for a single field.
func Conflict(field, msg string) *ConflictError {
	return &ConflictError{Fields: FieldErrors{field: {msg}}}
}

type ItemKind string

const (
	KindValidation ItemKind = "validation"
	KindConflict   ItemKind = "conflict"
)

// ItemError describes why one item of a batch was rejected. Index is the
// zero-based position in the submitted batch, or -1 when the failing item
// could not be identified.
type ItemError struct {
	Index  int         `json:"index"`
	Kind   ItemKind    `json:"kind"`
	Fields FieldErrors `json:"fields"`
}

// BatchError rejects a whole batch. Items are sorted by Index.
type BatchError struct {
	Items []ItemError
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch rejected: %d item(s) failed", len(e.Items))
}

// ConflictOnly reports whether every rejected item failed only on uniqueness.
func (e *BatchError) ConflictOnly() bool {
	for _, it := range e.Items {
		if it.Kind != KindConflict {
			return false
		}
	}
	return len(e.Items) > 0
}
