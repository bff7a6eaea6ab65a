// Package resource implements the mapping engine between domain records and
// the hierarchical API document format: populate (inbound payloads onto
// records), serialize (records into document fragments), include resolution,
// and self-link generation. A Resource is a request-scoped view binding one
// resource type to one record; it is never cached beyond a single document
// assembly.
package resource

import (
	"fmt"

	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
)

// Identifier is the {type, id} pair uniquely naming a resource in the
// document format. The id is always a string on the wire.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Resource binds a resource type descriptor to exactly one domain record
// for the duration of one populate or serialize call.
type Resource struct {
	Type   *schema.ResourceType
	Record store.Record
}

// Identifier returns the resource's stable {type, id} pair. The same record
// always yields the same identifier.
func (r *Resource) Identifier() Identifier {
	return Identifier{Type: r.Type.APIType, ID: store.RecordID(r.Record)}
}

// IncludeSet accumulates related resources gathered through include-path
// traversal, deduplicated by identifier. Iteration order is insertion
// order. It is owned by exactly one in-flight serialize call.
type IncludeSet struct {
	order   []Identifier
	members map[Identifier]*Resource
}

// NewIncludeSet creates an empty include set
func NewIncludeSet() *IncludeSet {
	return &IncludeSet{
		members: make(map[Identifier]*Resource),
	}
}

// Add inserts a resource into the set. Adding a resource whose identifier
// is already present is a no-op; returns true if the resource was inserted.
func (s *IncludeSet) Add(r *Resource) bool {
	id := r.Identifier()
	if _, exists := s.members[id]; exists {
		return false
	}
	s.members[id] = r
	s.order = append(s.order, id)
	return true
}

// Len returns the number of resources in the set
func (s *IncludeSet) Len() int {
	return len(s.order)
}

// Resources returns the accumulated resources in insertion order
func (s *IncludeSet) Resources() []*Resource {
	result := make([]*Resource, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.members[id])
	}
	return result
}

// Mapper wires the schema registry, the persistence collaborator, and the
// route reverser into the mapping engine. One Mapper is built at startup
// and shared by all requests; it holds no per-request state.
type Mapper struct {
	registry *schema.Registry
	store    store.Store
	reverser URLReverser
}

// NewMapper creates a mapper. The reverser may be nil when no resource type
// carries a viewset binding.
func NewMapper(registry *schema.Registry, st store.Store, reverser URLReverser) *Mapper {
	return &Mapper{
		registry: registry,
		store:    st,
		reverser: reverser,
	}
}

// Registry returns the schema registry backing this mapper
func (m *Mapper) Registry() *schema.Registry {
	return m.registry
}

// Resource wraps a record in a request-scoped resource view
func (m *Mapper) Resource(typeName string, record store.Record) (*Resource, error) {
	rt, ok := m.registry.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("resource type %s is not registered", typeName)
	}
	return &Resource{Type: rt, Record: record}, nil
}

// relatedRecords reads the members reachable through a relationship's
// storage attribute: zero or one record for cardinality one, zero or more
// for cardinality many.
func relatedRecords(record store.Record, attr string, cardinality schema.Cardinality) []store.Record {
	value, ok := record[attr]
	if !ok || value == nil {
		return nil
	}

	switch cardinality {
	case schema.One:
		// A typed-nil record is an explicit cleared relationship
		if member, ok := value.(store.Record); ok && member != nil {
			return []store.Record{member}
		}
	case schema.Many:
		switch members := value.(type) {
		case []store.Record:
			return members
		case []interface{}:
			var result []store.Record
			for _, v := range members {
				if member, ok := v.(store.Record); ok {
					result = append(result, member)
				}
			}
			return result
		}
	}
	return nil
}
