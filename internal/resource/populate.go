package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
)

// Payload is the deserialized inbound document fragment handed to Populate.
// Relationships keep their payload declaration order so deferred writes can
// be executed in that order.
type Payload struct {
	Attributes    map[string]interface{}
	Relationships []RelationshipPayload
}

// RelationshipPayload is one relationship entry from an inbound payload.
// One is set when data was a single identifier object, Many when it was an
// array. A null data member leaves both unset.
type RelationshipPayload struct {
	Name string
	One  *Identifier
	Many []Identifier
}

// DeferredWrite is a collection-relationship write that must run strictly
// after the owning record has been persisted, since linking into a
// collection requires the parent's primary key to exist. The caller executes
// deferred writes exactly once, in order, after Save.
type DeferredWrite struct {
	// Relationship is the payload-level relationship name
	Relationship string

	// Attr is the storage attribute backing the relationship
	Attr string

	// TargetIDs are the ids being linked, in payload order
	TargetIDs []string

	targets []store.Record
}

// Targets returns the fetched target records, in payload order
func (d *DeferredWrite) Targets() []store.Record {
	return d.targets
}

// Apply appends the fetched targets to the persisted parent's collection
// attribute. Calling Apply on a parent that has not been saved yet is a
// caller error.
func (d *DeferredWrite) Apply(parent store.Record) error {
	if store.RecordID(parent) == "" {
		return fmt.Errorf("cannot apply deferred %s write: parent record has no primary key", d.Relationship)
	}

	existing, _ := parent[d.Attr].([]store.Record)
	parent[d.Attr] = append(existing, d.targets...)
	return nil
}

// Populate deserializes an inbound payload into a domain record, creating a
// fresh record when existing is nil. Attribute writes are applied to a copy
// of existing, so a populate that fails validation partway through leaves
// the caller's record untouched. To-one relationships are validated against
// the store and assigned; to-many relationships are validated and returned
// as deferred writes for the caller to execute after the record is
// persisted.
func (m *Mapper) Populate(ctx context.Context, typeName string, payload *Payload, existing store.Record) (*Resource, []DeferredWrite, error) {
	rt, ok := m.registry.Get(typeName)
	if !ok {
		return nil, nil, fmt.Errorf("resource type %s is not registered", typeName)
	}

	record := store.Record{}
	if existing != nil {
		record = store.CopyRecord(existing)
	}

	for name, value := range payload.Attributes {
		if !rt.HasAttribute(name) {
			return nil, nil, schema.NewAttributeError(rt.Name, name)
		}
		record[name] = value
	}

	var deferred []DeferredWrite
	for _, relPayload := range payload.Relationships {
		rel, ok := rt.Relationship(relPayload.Name)
		if !ok {
			return nil, nil, schema.NewRelationshipError(rt.Name, relPayload.Name)
		}
		target, ok := m.registry.Get(rel.TargetType)
		if !ok {
			return nil, nil, schema.NewRelationshipError(rt.Name, relPayload.Name)
		}

		attr := rel.StorageAttr(relPayload.Name)
		switch rel.Cardinality {
		case schema.One:
			if relPayload.Many != nil {
				return nil, nil, NewValidationError(relPayload.Name, fmt.Sprintf(
					"relationship %q expects a single object, got an array", relPayload.Name))
			}
			if relPayload.One == nil {
				record[attr] = store.Record(nil)
				continue
			}
			obj, err := m.store.Find(ctx, target.TableName(), relPayload.One.ID)
			if err != nil {
				if store.IsNotFound(err) {
					return nil, nil, NewValidationError(relPayload.Name, fmt.Sprintf(
						"relationship %q object ID %s does not exist", relPayload.Name, relPayload.One.ID))
				}
				return nil, nil, fmt.Errorf("failed to fetch %s target: %w", relPayload.Name, err)
			}
			record[attr] = obj

		case schema.Many:
			if relPayload.One != nil {
				return nil, nil, NewValidationError(relPayload.Name, fmt.Sprintf(
					"relationship %q expects an array, got a single object", relPayload.Name))
			}
			given := make([]string, 0, len(relPayload.Many))
			for _, id := range relPayload.Many {
				given = append(given, id.ID)
			}

			found, err := m.store.FindMany(ctx, target.TableName(), given)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to batch fetch %s targets: %w", relPayload.Name, err)
			}

			foundIDs := make(map[string]bool, len(found))
			for _, obj := range found {
				foundIDs[store.RecordID(obj)] = true
			}

			var missing []string
			for _, id := range given {
				if !foundIDs[id] {
					missing = append(missing, id)
				}
			}
			if len(missing) > 0 {
				sort.Strings(missing)
				return nil, nil, NewValidationError(relPayload.Name, fmt.Sprintf(
					"relationship %q object IDs %s do not exist", relPayload.Name, strings.Join(missing, ", ")))
			}

			deferred = append(deferred, DeferredWrite{
				Relationship: relPayload.Name,
				Attr:         attr,
				TargetIDs:    given,
				targets:      found,
			})
		}
	}

	return &Resource{Type: rt, Record: record}, deferred, nil
}
