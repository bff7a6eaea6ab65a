// Package schema defines the resource type descriptors that drive the
// mapping engine: which attributes a resource exposes, how it relates to
// other resources, and how it nests under parent routes for link generation.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Cardinality describes how many target objects a relationship points at.
type Cardinality int

const (
	// One is a to-one relationship (foreign key style)
	One Cardinality = iota
	// Many is a to-many relationship (join table or reverse relation)
	Many
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	default:
		return "unknown"
	}
}

// Relationship describes a named, typed edge from one resource type to
// another. Cardinality is fixed for the lifetime of the resource type.
type Relationship struct {
	Cardinality Cardinality
	TargetType  string // registered ResourceType name

	// Attr is the storage attribute on the domain object if it differs
	// from the relationship name. Empty means the relationship name is
	// used directly.
	Attr string
}

// StorageAttr returns the field name used to read and write the
// relationship on the domain object.
func (r *Relationship) StorageAttr(relName string) string {
	if r.Attr != "" {
		return r.Attr
	}
	return relName
}

// ViewsetBinding describes how a resource type nests under a parent route.
// LookupField names the field on the child domain object that identifies it
// within the parent's namespace, and doubles as the URL parameter name for
// that level. BaseName is the named-route prefix ("article" produces
// "article-list" and "article-detail").
type ViewsetBinding struct {
	Parent      *ViewsetBinding
	LookupField string
	BaseName    string
}

// ResourceType is the immutable per-type descriptor: wire type tag, exposed
// attributes in declared order, and the relationship map. Built once at
// startup and registered with a Registry.
type ResourceType struct {
	Name          string   // resource name, e.g. "Article"
	APIType       string   // wire-level type tag, e.g. "article"
	Attributes    []string // exposed attribute names, declared order
	Relationships map[string]*Relationship

	// Binding is the viewset binding used for self-link generation.
	// A type without a binding cannot produce self-links.
	Binding *ViewsetBinding

	// relOrder tracks relationship declaration order for deterministic
	// serialization. Populated by AddRelationship.
	relOrder []string
}

// NewResourceType creates a resource type with the given name and wire tag.
func NewResourceType(name, apiType string) *ResourceType {
	return &ResourceType{
		Name:          name,
		APIType:       apiType,
		Relationships: make(map[string]*Relationship),
	}
}

// HasAttribute returns true if the attribute is declared on this type
func (rt *ResourceType) HasAttribute(name string) bool {
	for _, attr := range rt.Attributes {
		if attr == name {
			return true
		}
	}
	return false
}

// AddRelationship declares a relationship, preserving declaration order
func (rt *ResourceType) AddRelationship(name string, rel *Relationship) *ResourceType {
	if rt.Relationships == nil {
		rt.Relationships = make(map[string]*Relationship)
	}
	if _, exists := rt.Relationships[name]; !exists {
		rt.relOrder = append(rt.relOrder, name)
	}
	rt.Relationships[name] = rel
	return rt
}

// Relationship returns the relationship descriptor for the given name
func (rt *ResourceType) Relationship(name string) (*Relationship, bool) {
	rel, ok := rt.Relationships[name]
	return rel, ok
}

// RelationshipNames returns relationship names in declaration order. Names
// assigned directly to the Relationships map rather than through
// AddRelationship come last, sorted.
func (rt *ResourceType) RelationshipNames() []string {
	names := make([]string, 0, len(rt.Relationships))
	seen := make(map[string]bool, len(rt.Relationships))
	for _, name := range rt.relOrder {
		if _, ok := rt.Relationships[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range rt.Relationships {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// TableName returns the storage-level name for this resource type
func (rt *ResourceType) TableName() string {
	return pluralize(toSnakeCase(rt.Name))
}

// validate checks the descriptor's internal consistency. Cross-type checks
// (relationship targets) happen in Registry.ValidateAll.
func (rt *ResourceType) validate() error {
	if rt.Name == "" {
		return fmt.Errorf("resource type has no name")
	}
	if rt.APIType == "" {
		return fmt.Errorf("resource type %s has no api type", rt.Name)
	}
	seen := make(map[string]bool, len(rt.Attributes))
	for _, attr := range rt.Attributes {
		if attr == "" {
			return fmt.Errorf("resource type %s declares an empty attribute name", rt.Name)
		}
		if seen[attr] {
			return fmt.Errorf("resource type %s declares attribute %s twice", rt.Name, attr)
		}
		seen[attr] = true
	}
	for name, rel := range rt.Relationships {
		if rel == nil {
			return fmt.Errorf("resource type %s has a nil relationship %s", rt.Name, name)
		}
		switch rel.Cardinality {
		case One, Many:
		default:
			return fmt.Errorf("resource type %s relationship %s has invalid cardinality", rt.Name, name)
		}
		if rel.TargetType == "" {
			return fmt.Errorf("resource type %s relationship %s has no target type", rt.Name, name)
		}
	}
	return nil
}

// toSnakeCase converts a CamelCase name to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// pluralize converts a singular noun to its plural form
func pluralize(word string) string {
	if word == "" {
		return word
	}

	switch {
	case strings.HasSuffix(word, "y"):
		if len(word) > 1 && !isVowel(word[len(word)-2]) {
			return word[:len(word)-1] + "ies"
		}
		return word + "s"
	case strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") ||
		strings.HasSuffix(word, "z") || strings.HasSuffix(word, "ch") ||
		strings.HasSuffix(word, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
