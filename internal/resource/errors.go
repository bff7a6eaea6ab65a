package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports relationship payloads that reference ids missing
// from the store. It maps relationship names to human-readable messages with
// missing ids listed in sorted order, and is intended to surface as a
// user-facing validation failure.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a validation error for a single relationship
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var messages []string
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// IsValidationError returns true if the error is a ValidationError
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// SerializationError reports an include path naming an undeclared
// relationship.
type SerializationError struct {
	Name string
}

// Error implements the error interface
func (e *SerializationError) Error() string {
	return fmt.Sprintf("%q is not a valid relationship to include", e.Name)
}

// IsSerializationError returns true if the error is a SerializationError
func IsSerializationError(err error) bool {
	var serErr *SerializationError
	return errors.As(err, &serErr)
}

// BindingError reports a self-link request on a resource type with no
// viewset binding. It is a configuration defect, not a user input error.
type BindingError struct {
	Type   string
	Detail string
}

// Error implements the error interface
func (e *BindingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("resource type %s: %s", e.Type, e.Detail)
	}
	return fmt.Sprintf("resource type %s is not bound to a viewset, cannot generate link", e.Type)
}

// IsBindingError returns true if the error is a BindingError
func IsBindingError(err error) bool {
	var bindErr *BindingError
	return errors.As(err, &bindErr)
}
