package resource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/store"
)

func TestSerializeWireOrder(t *testing.T) {
	mapper, _ := blogMapper(t)

	record := store.Record{
		"id":     "5",
		"title":  "Engines",
		"body":   "On computation.",
		"author": store.Record{"id": "1", "name": "Ada"},
		"tags": []store.Record{
			{"id": "1", "name": "go"},
			{"id": "2", "name": "api"},
		},
	}
	res, err := mapper.Resource("Article", record)
	require.NoError(t, err)

	fragment, err := mapper.Serialize(res, nil, nil, nil)
	require.NoError(t, err)

	data, err := json.Marshal(fragment)
	require.NoError(t, err)

	// Attribute and relationship members appear in declared schema order
	want := `{"type":"article","id":"5",` +
		`"attributes":{"title":"Engines","body":"On computation."},` +
		`"relationships":{` +
		`"author":{"data":{"type":"author","id":"1"}},` +
		`"tags":{"data":[{"type":"tag","id":"1"},{"type":"tag","id":"2"}]}}}`
	assert.Equal(t, want, string(data))
}

func TestSerializeNullToOne(t *testing.T) {
	mapper, _ := blogMapper(t)

	record := store.Record{"id": "5", "title": "Engines"}
	res, err := mapper.Resource("Article", record)
	require.NoError(t, err)

	fragment, err := mapper.Serialize(res, nil, nil, nil)
	require.NoError(t, err)

	data, err := json.Marshal(fragment)
	require.NoError(t, err)

	// Absent to-one serializes as explicit null, absent to-many as []
	assert.Contains(t, string(data), `"author":{"data":null}`)
	assert.Contains(t, string(data), `"tags":{"data":[]}`)
}

func TestSerializeMissingAttributeIsNull(t *testing.T) {
	mapper, _ := blogMapper(t)

	res, err := mapper.Resource("Article", store.Record{"id": "5", "title": "Engines"})
	require.NoError(t, err)

	fragment, err := mapper.Serialize(res, nil, nil, nil)
	require.NoError(t, err)

	data, err := json.Marshal(fragment)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"body":null`)
}

func TestSerializeResolvesIncludes(t *testing.T) {
	mapper, _ := blogMapper(t)

	record := store.Record{
		"id":     "5",
		"title":  "Engines",
		"author": store.Record{"id": "1", "name": "Ada"},
		"tags": []store.Record{
			{"id": "1", "name": "go"},
			{"id": "2", "name": "api"},
		},
	}
	res, err := mapper.Resource("Article", record)
	require.NoError(t, err)

	includes := NewIncludeSet()
	_, err = mapper.Serialize(res, []string{"author", "tags"}, nil, includes)
	require.NoError(t, err)

	var got []Identifier
	for _, r := range includes.Resources() {
		got = append(got, r.Identifier())
	}
	assert.Equal(t, []Identifier{
		{Type: "author", ID: "1"},
		{Type: "tag", ID: "1"},
		{Type: "tag", ID: "2"},
	}, got)
}

func TestSerializeInvalidIncludePath(t *testing.T) {
	mapper, _ := blogMapper(t)

	res, err := mapper.Resource("Article", store.Record{"id": "5"})
	require.NoError(t, err)

	_, err = mapper.Serialize(res, []string{"publisher"}, nil, NewIncludeSet())
	require.Error(t, err)
	assert.True(t, IsSerializationError(err))
	assert.Equal(t, `"publisher" is not a valid relationship to include`, err.Error())
}

func TestSerializeNilIncludeSetSkipsResolution(t *testing.T) {
	mapper, _ := blogMapper(t)

	res, err := mapper.Resource("Article", store.Record{"id": "5"})
	require.NoError(t, err)

	// A nil set means the caller wants no include traversal; a bad path is
	// not even inspected.
	_, err = mapper.Serialize(res, []string{"publisher"}, nil, nil)
	assert.NoError(t, err)
}
