package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
)

// blogRegistry builds the fixture domain used across the mapper tests:
// authors write articles, articles carry tags.
func blogRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	registry := schema.NewRegistry()

	author := schema.NewResourceType("Author", "author")
	author.Attributes = []string{"name"}

	tag := schema.NewResourceType("Tag", "tag")
	tag.Attributes = []string{"name"}

	article := schema.NewResourceType("Article", "article")
	article.Attributes = []string{"title", "body"}
	article.AddRelationship("author", &schema.Relationship{
		Cardinality: schema.One,
		TargetType:  "Author",
	})
	article.AddRelationship("tags", &schema.Relationship{
		Cardinality: schema.Many,
		TargetType:  "Tag",
	})

	for _, rt := range []*schema.ResourceType{author, tag, article} {
		require.NoError(t, registry.Register(rt))
	}
	require.NoError(t, registry.ValidateAll())
	return registry
}

func blogMapper(t *testing.T) (*Mapper, *store.MemStore) {
	t.Helper()
	ms := store.NewMemStore()
	return NewMapper(blogRegistry(t), ms, nil), ms
}

func TestResourceIdentifierStability(t *testing.T) {
	mapper, ms := blogMapper(t)
	record := ms.Seed("articles", store.Record{"id": "42", "title": "Hello"})

	res, err := mapper.Resource("Article", record)
	require.NoError(t, err)

	first := res.Identifier()
	second := res.Identifier()
	assert.Equal(t, Identifier{Type: "article", ID: "42"}, first)
	assert.Equal(t, first, second)
}

func TestResourceUnknownType(t *testing.T) {
	mapper, _ := blogMapper(t)

	_, err := mapper.Resource("Widget", store.Record{})
	assert.Error(t, err)
}

func TestIncludeSetDeduplicates(t *testing.T) {
	registry := blogRegistry(t)
	tagType, _ := registry.Get("Tag")
	authorType, _ := registry.Get("Author")

	set := NewIncludeSet()
	tag := &Resource{Type: tagType, Record: store.Record{"id": "1", "name": "go"}}
	author := &Resource{Type: authorType, Record: store.Record{"id": "1", "name": "Ada"}}

	assert.True(t, set.Add(tag))
	// Same identifier, different record instance: still a duplicate
	assert.False(t, set.Add(&Resource{Type: tagType, Record: store.Record{"id": "1"}}))
	// Same id under a different type is distinct
	assert.True(t, set.Add(author))

	assert.Equal(t, 2, set.Len())

	resources := set.Resources()
	require.Len(t, resources, 2)
	assert.Equal(t, "tag", resources[0].Type.APIType)
	assert.Equal(t, "author", resources[1].Type.APIType)
	// First-added instance wins
	assert.Equal(t, "go", resources[0].Record["name"])
}

func TestIncludeSetInsertionOrder(t *testing.T) {
	registry := blogRegistry(t)
	tagType, _ := registry.Get("Tag")

	set := NewIncludeSet()
	for _, id := range []string{"9", "3", "7"} {
		set.Add(&Resource{Type: tagType, Record: store.Record{"id": id}})
	}

	var got []string
	for _, res := range set.Resources() {
		got = append(got, res.Identifier().ID)
	}
	assert.Equal(t, []string{"9", "3", "7"}, got)
}
