package resource

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/strata-api/strata/internal/schema"
)

// Member is a single named value inside an ordered JSON object
type Member struct {
	Name  string
	Value interface{}
}

// RelationshipFragment is one serialized relationship: a single identifier,
// an explicit null, or an ordered list of identifiers. HasMany distinguishes
// an empty collection from a null to-one.
type RelationshipFragment struct {
	Name    string
	One     *Identifier
	Many    []Identifier
	HasMany bool
}

// Links holds a resource's hyperlinks
type Links struct {
	Self string `json:"self"`
}

// Fragment is the serialized form of one resource: identifier, attributes
// and relationships in declared schema order, and optional links. It
// marshals to the wire fragment shape.
type Fragment struct {
	Identifier
	Attributes    []Member
	Relationships []RelationshipFragment
	Links         *Links
}

// MarshalJSON writes the fragment with attribute and relationship members
// in declared schema order, which map-based marshaling cannot guarantee.
func (f *Fragment) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	fmt.Fprintf(&buf, `"type":%s`, mustJSON(f.Type))
	fmt.Fprintf(&buf, `,"id":%s`, mustJSON(f.ID))

	buf.WriteString(`,"attributes":{`)
	for i, attr := range f.Attributes {
		if i > 0 {
			buf.WriteByte(',')
		}
		value, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attribute %s: %w", attr.Name, err)
		}
		fmt.Fprintf(&buf, `%s:%s`, mustJSON(attr.Name), value)
	}
	buf.WriteByte('}')

	if len(f.Relationships) > 0 {
		buf.WriteString(`,"relationships":{`)
		for i, rel := range f.Relationships {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, `%s:{"data":`, mustJSON(rel.Name))
			switch {
			case rel.HasMany:
				if rel.Many == nil {
					buf.WriteString(`[]`)
				} else {
					data, err := json.Marshal(rel.Many)
					if err != nil {
						return nil, fmt.Errorf("failed to marshal relationship %s: %w", rel.Name, err)
					}
					buf.Write(data)
				}
			case rel.One != nil:
				data, err := json.Marshal(rel.One)
				if err != nil {
					return nil, fmt.Errorf("failed to marshal relationship %s: %w", rel.Name, err)
				}
				buf.Write(data)
			default:
				buf.WriteString(`null`)
			}
			buf.WriteByte('}')
		}
		buf.WriteByte('}')
	}

	if f.Links != nil {
		links, err := json.Marshal(f.Links)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, `,"links":%s`, links)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// mustJSON marshals a plain string; strings never fail to marshal
func mustJSON(s string) []byte {
	data, _ := json.Marshal(s)
	return data
}

// Serialize turns a resource into its document fragment. Attribute and
// relationship order follows the declared schema order. When includePaths
// is non-empty the include resolver accumulates related resources into the
// caller-supplied set; the set is returned alongside the fragment by the
// document assembler, never embedded in it.
func (m *Mapper) Serialize(res *Resource, includePaths []string, linkCtx *LinkContext, includes *IncludeSet) (*Fragment, error) {
	rt := res.Type

	fragment := &Fragment{
		Identifier: res.Identifier(),
		Attributes: make([]Member, 0, len(rt.Attributes)),
	}

	for _, attr := range rt.Attributes {
		fragment.Attributes = append(fragment.Attributes, Member{
			Name:  attr,
			Value: res.Record[attr],
		})
	}

	for _, name := range rt.RelationshipNames() {
		rel := rt.Relationships[name]
		target, ok := m.registry.Get(rel.TargetType)
		if !ok {
			return nil, schema.NewRelationshipError(rt.Name, name)
		}

		attr := rel.StorageAttr(name)
		relFragment := RelationshipFragment{Name: name}
		switch rel.Cardinality {
		case schema.Many:
			relFragment.HasMany = true
			for _, member := range relatedRecords(res.Record, attr, schema.Many) {
				relFragment.Many = append(relFragment.Many, identifierFor(target, member))
			}
		case schema.One:
			members := relatedRecords(res.Record, attr, schema.One)
			if len(members) > 0 {
				id := identifierFor(target, members[0])
				relFragment.One = &id
			}
		}
		fragment.Relationships = append(fragment.Relationships, relFragment)
	}

	if rt.Binding != nil {
		self, err := m.SelfLink(res, linkCtx)
		if err != nil {
			return nil, err
		}
		fragment.Links = &Links{Self: self}
	}

	if includes != nil {
		for _, path := range includePaths {
			if err := m.ResolveInclude(res, path, includes); err != nil {
				return nil, err
			}
		}
	}

	return fragment, nil
}

func identifierFor(rt *schema.ResourceType, record map[string]interface{}) Identifier {
	return (&Resource{Type: rt, Record: record}).Identifier()
}
