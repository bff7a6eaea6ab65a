package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/resource"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
	"github.com/strata-api/strata/internal/web/cache"
	"github.com/strata-api/strata/internal/web/response"
	"github.com/strata-api/strata/internal/web/router"
)

type testEnv struct {
	router *router.Router
	store  *store.MemStore
	mapper *resource.Mapper
}

// newTestEnv stands up the blog API: registered types, seeded store, and
// CRUD endpoints mounted on a named-route router.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	registry := schema.NewRegistry()

	author := schema.NewResourceType("Author", "author")
	author.Attributes = []string{"name"}
	author.Binding = &schema.ViewsetBinding{LookupField: "pk", BaseName: "author"}

	tag := schema.NewResourceType("Tag", "tag")
	tag.Attributes = []string{"name"}
	tag.Binding = &schema.ViewsetBinding{LookupField: "pk", BaseName: "tag"}

	article := schema.NewResourceType("Article", "article")
	article.Attributes = []string{"title", "body"}
	article.Binding = &schema.ViewsetBinding{LookupField: "pk", BaseName: "article"}
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

	ms := store.NewMemStore()
	r := router.New()
	mapper := resource.NewMapper(registry, ms, r)

	for typeName, basePath := range map[string]string{
		"Author":  "/authors",
		"Tag":     "/tags",
		"Article": "/articles",
	} {
		set, err := NewSet(typeName, mapper, ms, opts...)
		require.NoError(t, err)
		require.NoError(t, set.Register(r, basePath))
	}

	return &testEnv{router: r, store: ms, mapper: mapper}
}

func (e *testEnv) seedArticle(t *testing.T) store.Record {
	t.Helper()

	ada := e.store.Seed("authors", store.Record{"id": "a1", "name": "Ada"})
	tag := e.store.Seed("tags", store.Record{"id": "t1", "name": "history"})
	return e.store.Seed("articles", store.Record{
		"id":     "1",
		"title":  "Engines",
		"body":   "On computation.",
		"author": ada,
		"tags":   []store.Record{tag},
	})
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", response.MediaType)
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &doc), "body: %s", body)
	return doc
}

func TestShow(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)

	w := env.do("GET", "/articles/1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, response.MediaType, w.Header().Get("Content-Type"))

	doc := decodeBody(t, w.Body.String())
	data := doc["data"].(map[string]interface{})
	assert.Equal(t, "article", data["type"])
	assert.Equal(t, "1", data["id"])

	attrs := data["attributes"].(map[string]interface{})
	assert.Equal(t, "Engines", attrs["title"])

	links := data["links"].(map[string]interface{})
	assert.Equal(t, "http://example.com/articles/1", links["self"])
}

func TestShowWithIncludes(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)

	w := env.do("GET", "/articles/1?include=author,tags", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeBody(t, w.Body.String())
	included := doc["included"].([]interface{})
	require.Len(t, included, 2)

	first := included[0].(map[string]interface{})
	assert.Equal(t, "author", first["type"])
	assert.Equal(t, "a1", first["id"])
}

func TestShowNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/articles/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowInvalidInclude(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)

	w := env.do("GET", "/articles/1?include=publisher", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_include")
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)
	env.store.Seed("articles", store.Record{"id": "2", "title": "Second"})

	w := env.do("GET", "/articles?page[limit]=1&page[offset]=0", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeBody(t, w.Body.String())
	data := doc["data"].([]interface{})
	assert.Len(t, data, 1)

	meta := doc["meta"].(map[string]interface{})
	paginator := meta["paginator"].(map[string]interface{})
	assert.Equal(t, float64(2), paginator["count"])
	assert.Equal(t, float64(2), paginator["num_pages"])

	links := doc["links"].(map[string]interface{})
	assert.Contains(t, links["next"], "page%5Boffset%5D=1")
}

func TestListFilter(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)
	env.store.Seed("articles", store.Record{"id": "2", "title": "Second"})

	w := env.do("GET", "/articles?filter[title]=Second", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeBody(t, w.Body.String())
	data := doc["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "2", data[0].(map[string]interface{})["id"])
}

func TestListSort(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)
	env.store.Seed("articles", store.Record{"id": "2", "title": "Apple"})

	w := env.do("GET", "/articles?sort=title", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeBody(t, w.Body.String())
	data := doc["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "2", data[0].(map[string]interface{})["id"])

	w = env.do("GET", "/articles?sort=-title", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc = decodeBody(t, w.Body.String())
	data = doc["data"].([]interface{})
	assert.Equal(t, "1", data[0].(map[string]interface{})["id"])
}

func TestListSortUnknownField(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)

	w := env.do("GET", "/articles?sort=secret", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cannot sort by unknown field")
}

func TestShowSparseFieldsets(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)

	w := env.do("GET", "/articles/1?fields[article]=title", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeBody(t, w.Body.String())
	data := doc["data"].(map[string]interface{})

	attrs := data["attributes"].(map[string]interface{})
	assert.Equal(t, "Engines", attrs["title"])
	_, hasBody := attrs["body"]
	assert.False(t, hasBody, "unrequested attributes are trimmed")
	_, hasRels := data["relationships"]
	assert.False(t, hasRels, "unrequested relationships are trimmed")
}

func TestShowHydratesFlatRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.Seed("authors", store.Record{"id": "a1", "name": "Ada"})
	env.store.Seed("tags", store.Record{"id": "t1", "name": "history"})
	env.store.Seed("articles", store.Record{"id": "9", "title": "Flat", "author_id": "a1"})
	require.NoError(t, env.store.AddToCollection(ctx, "articles", "9", "tags", []string{"t1"}))

	w := env.do("GET", "/articles/9?include=author,tags", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeBody(t, w.Body.String())
	rels := doc["data"].(map[string]interface{})["relationships"].(map[string]interface{})

	authorData := rels["author"].(map[string]interface{})["data"].(map[string]interface{})
	assert.Equal(t, "a1", authorData["id"])
	tagData := rels["tags"].(map[string]interface{})["data"].([]interface{})
	require.Len(t, tagData, 1)
	assert.Equal(t, "t1", tagData[0].(map[string]interface{})["id"])

	included := doc["included"].([]interface{})
	assert.Len(t, included, 2)
}

func TestCreate(t *testing.T) {
	env := newTestEnv(t)
	env.store.Seed("authors", store.Record{"id": "a1", "name": "Ada"})
	env.store.Seed("tags", store.Record{"id": "t1", "name": "history"})
	env.store.Seed("tags", store.Record{"id": "t2", "name": "compilers"})

	body := `{
		"data": {
			"type": "article",
			"attributes": {"title": "New Post", "body": "Text."},
			"relationships": {
				"author": {"data": {"type": "author", "id": "a1"}},
				"tags": {"data": [{"type": "tag", "id": "t2"}, {"type": "tag", "id": "t1"}]}
			}
		}
	}`

	w := env.do("POST", "/articles", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	doc := decodeBody(t, w.Body.String())
	data := doc["data"].(map[string]interface{})
	id := data["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "http://example.com/articles/"+id, w.Header().Get("Location"))

	rels := data["relationships"].(map[string]interface{})
	authorData := rels["author"].(map[string]interface{})["data"].(map[string]interface{})
	assert.Equal(t, "a1", authorData["id"])

	// Deferred collection writes ran after save, in payload order
	tagData := rels["tags"].(map[string]interface{})["data"].([]interface{})
	require.Len(t, tagData, 2)
	assert.Equal(t, "t2", tagData[0].(map[string]interface{})["id"])
	assert.Equal(t, "t1", tagData[1].(map[string]interface{})["id"])
}

func TestCreateTypeMismatch(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/articles", `{"data": {"type": "tag", "attributes": {}}}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateMissingRelationshipTargets(t *testing.T) {
	env := newTestEnv(t)
	env.store.Seed("tags", store.Record{"id": "t1", "name": "history"})

	body := `{
		"data": {
			"type": "article",
			"relationships": {
				"tags": {"data": [{"type": "tag", "id": "t9"}, {"type": "tag", "id": "t3"}]}
			}
		}
	}`

	w := env.do("POST", "/articles", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "t3, t9 do not exist")
	assert.Contains(t, w.Body.String(), "/data/relationships/tags")
}

func TestCreateRequiresMediaType(t *testing.T) {
	env := newTestEnv(t)

	r := httptest.NewRequest("POST", "/articles", strings.NewReader(`{"data": {"type": "article"}}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)

	w := env.do("PATCH", "/articles/1", `{"data": {"type": "article", "id": "1", "attributes": {"title": "Renamed"}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeBody(t, w.Body.String())
	attrs := doc["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	assert.Equal(t, "Renamed", attrs["title"])
	// Omitted attributes keep their stored values
	assert.Equal(t, "On computation.", attrs["body"])
}

func TestUpdateIDMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)

	w := env.do("PATCH", "/articles/1", `{"data": {"type": "article", "id": "2", "attributes": {}}}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("PATCH", "/articles/99", `{"data": {"type": "article", "attributes": {}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seedArticle(t)

	w := env.do("DELETE", "/articles/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = env.do("GET", "/articles/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowCachesDocument(t *testing.T) {
	memCache := cache.NewMemoryCache()
	env := newTestEnv(t, WithCache(memCache, time.Minute))
	env.seedArticle(t)

	first := env.do("GET", "/articles/1", "")
	require.Equal(t, http.StatusOK, first.Code)

	// Mutate the store behind the cache's back: the cached document wins
	require.NoError(t, env.store.Delete(httptest.NewRequest("GET", "/", nil).Context(), "articles", "1"))

	second := env.do("GET", "/articles/1", "")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestWriteInvalidatesCache(t *testing.T) {
	memCache := cache.NewMemoryCache()
	env := newTestEnv(t, WithCache(memCache, time.Minute))
	env.seedArticle(t)

	first := env.do("GET", "/articles/1", "")
	require.Equal(t, http.StatusOK, first.Code)

	w := env.do("PATCH", "/articles/1", `{"data": {"type": "article", "attributes": {"title": "Renamed"}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	after := env.do("GET", "/articles/1", "")
	require.Equal(t, http.StatusOK, after.Code)
	assert.Contains(t, after.Body.String(), "Renamed")
}

func TestNewSetUnknownType(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewSet("Widget", env.mapper, env.store)
	assert.Error(t, err)
}
