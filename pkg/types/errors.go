package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("not found")

var (
	ErrDocumentNotFound      = fmt.Errorf("document %w", ErrNotFound)
	ErrRoleNotFound          = fmt.Errorf("role %w", ErrNotFound)
	ErrFieldConfigNotFound   = fmt.Errorf("field configuration %w", ErrNotFound)
	ErrCommunicationNotFound = fmt.Errorf("communication %w", ErrNotFound)
	ErrNotificationNotFound  = fmt.Errorf("notification %w", ErrNotFound)
)

// ErrInvalidTransition is returned when a status change is requested from a
// state the document or message is no longer in.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns e as an error only when it holds at least one field.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

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
	return "validation failed: " + strings.Join(parts, "; ")
}
