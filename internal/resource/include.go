package resource

import (
	"strings"

	"github.com/strata-api/strata/internal/schema"
)

// ResolveInclude walks a dotted include path from a resource and adds every
// related resource it reaches into the set, deduplicated by identifier.
// Each path segment must name a declared relationship on the type being
// traversed at that point; the recursion switches to the target type's
// relationships at every step.
//
// No cycle detection is performed: a cyclic relationship graph combined
// with a path that traverses back into ancestors will recurse without
// bound. Relationship graphs are assumed acyclic in practice.
func (m *Mapper) ResolveInclude(res *Resource, path string, set *IncludeSet) error {
	head, rest, _ := strings.Cut(path, ".")

	rel, ok := res.Type.Relationship(head)
	if !ok {
		return &SerializationError{Name: head}
	}
	target, ok := m.registry.Get(rel.TargetType)
	if !ok {
		return schema.NewRelationshipError(res.Type.Name, head)
	}

	attr := rel.StorageAttr(head)
	for _, member := range relatedRecords(res.Record, attr, rel.Cardinality) {
		related := &Resource{Type: target, Record: member}
		if rest != "" {
			if err := m.ResolveInclude(related, rest, set); err != nil {
				return err
			}
		}
		set.Add(related)
	}
	return nil
}
