package schema

import (
	"errors"
	"fmt"
)

// Error is returned when an unknown attribute or relationship name is
// referenced at populate or serialize time. It signals a caller contract
// violation, not bad user data, and is never retried.
type Error struct {
	Resource string
	Kind     string // "attribute" or "relationship"
	Name     string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("resource type %s has no %s %q", e.Resource, e.Kind, e.Name)
}

// NewAttributeError creates a schema error for an unknown attribute
func NewAttributeError(resource, name string) *Error {
	return &Error{Resource: resource, Kind: "attribute", Name: name}
}

// NewRelationshipError creates a schema error for an unknown relationship
func NewRelationshipError(resource, name string) *Error {
	return &Error{Resource: resource, Kind: "relationship", Name: name}
}

// IsSchemaError returns true if the error is a schema Error
func IsSchemaError(err error) bool {
	var schemaErr *Error
	return errors.As(err, &schemaErr)
}
