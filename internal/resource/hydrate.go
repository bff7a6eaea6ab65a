package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
)

// Hydrate loads relationship targets onto a record fetched from flat
// storage, so serialization and include resolution see them. Embedded
// targets are kept as-is; otherwise a to-one target is fetched through the
// {attr}_id foreign key field and a to-many collection through the store's
// link table. Include paths are hydrated recursively so traversal can cross
// fetched targets; other relationships load one level deep.
func (m *Mapper) Hydrate(ctx context.Context, res *Resource, includePaths []string) error {
	rt := res.Type

	for _, name := range rt.RelationshipNames() {
		rel := rt.Relationships[name]
		target, ok := m.registry.Get(rel.TargetType)
		if !ok {
			return schema.NewRelationshipError(rt.Name, name)
		}

		attr := rel.StorageAttr(name)
		if _, ok := res.Record[attr]; ok {
			continue
		}

		switch rel.Cardinality {
		case schema.One:
			if err := m.hydrateOne(ctx, res.Record, attr, target); err != nil {
				return err
			}
		case schema.Many:
			if err := m.hydrateMany(ctx, res.Record, rt, attr, target); err != nil {
				return err
			}
		}
	}

	for _, path := range includePaths {
		head, rest, _ := strings.Cut(path, ".")
		if rest == "" {
			continue
		}
		rel, ok := rt.Relationship(head)
		if !ok {
			// ResolveInclude reports the undeclared segment
			continue
		}
		target, ok := m.registry.Get(rel.TargetType)
		if !ok {
			return schema.NewRelationshipError(rt.Name, head)
		}

		for _, member := range relatedRecords(res.Record, rel.StorageAttr(head), rel.Cardinality) {
			related := &Resource{Type: target, Record: member}
			if err := m.Hydrate(ctx, related, []string{rest}); err != nil {
				return err
			}
		}
	}

	return nil
}

// hydrateOne resolves a to-one target through its foreign key field. A
// missing key, a null key, or a dangling reference all leave the
// relationship empty.
func (m *Mapper) hydrateOne(ctx context.Context, record store.Record, attr string, target *schema.ResourceType) error {
	fk, ok := record[attr+"_id"]
	if !ok || fk == nil {
		return nil
	}
	id := foreignKeyString(fk)
	if id == "" {
		return nil
	}

	obj, err := m.store.Find(ctx, target.TableName(), id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to load %s %s: %w", target.TableName(), id, err)
	}
	record[attr] = obj
	return nil
}

// hydrateMany resolves a collection through the store's link table, keeping
// link order. Targets whose rows have since disappeared are skipped by the
// batch fetch.
func (m *Mapper) hydrateMany(ctx context.Context, record store.Record, rt *schema.ResourceType, attr string, target *schema.ResourceType) error {
	parentID := store.RecordID(record)
	if parentID == "" {
		return nil
	}

	ids, err := m.store.CollectionIDs(ctx, rt.TableName(), parentID, attr)
	if err != nil {
		return fmt.Errorf("failed to load %s links for %s %s: %w", attr, rt.TableName(), parentID, err)
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := m.store.FindMany(ctx, target.TableName(), ids)
	if err != nil {
		return fmt.Errorf("failed to load %s targets: %w", attr, err)
	}
	record[attr] = found
	return nil
}

func foreignKeyString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case []byte:
		return string(id)
	default:
		return fmt.Sprintf("%v", id)
	}
}
