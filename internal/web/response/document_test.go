package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/strata-api/strata/internal/resource"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
)

func testMapper(t *testing.T) (*resource.Mapper, *store.MemStore) {
	t.Helper()

	registry := schema.NewRegistry()

	author := schema.NewResourceType("Author", "author")
	author.Attributes = []string{"name"}

	article := schema.NewResourceType("Article", "article")
	article.Attributes = []string{"title"}
	article.AddRelationship("author", &schema.Relationship{
		Cardinality: schema.One,
		TargetType:  "Author",
	})

	for _, rt := range []*schema.ResourceType{author, article} {
		if err := registry.Register(rt); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	ms := store.NewMemStore()
	return resource.NewMapper(registry, ms, nil), ms
}

func TestAssembleResourceDocument(t *testing.T) {
	mapper, _ := testMapper(t)
	assembler := NewAssembler(mapper)

	res, err := mapper.Resource("Article", store.Record{
		"id":     "5",
		"title":  "Engines",
		"author": store.Record{"id": "1", "name": "Ada"},
	})
	if err != nil {
		t.Fatalf("Resource() error = %v", err)
	}

	doc, err := assembler.Resource(res, []string{"author"}, nil)
	if err != nil {
		t.Fatalf("Resource document error = %v", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	body := string(data)
	if !strings.HasPrefix(body, `{"jsonapi":{"version":"1.0"}`) {
		t.Errorf("envelope must lead with the jsonapi member: %s", body)
	}
	if !strings.Contains(body, `"data":{"type":"article","id":"5"`) {
		t.Errorf("missing primary data: %s", body)
	}
	if !strings.Contains(body, `"included":[{"type":"author","id":"1"`) {
		t.Errorf("missing included member: %s", body)
	}
}

func TestAssembleCollectionSharesIncludeSet(t *testing.T) {
	mapper, _ := testMapper(t)
	assembler := NewAssembler(mapper)

	ada := store.Record{"id": "1", "name": "Ada"}
	var resources []*resource.Resource
	for _, id := range []string{"5", "6"} {
		res, err := mapper.Resource("Article", store.Record{"id": id, "title": "T", "author": ada})
		if err != nil {
			t.Fatalf("Resource() error = %v", err)
		}
		resources = append(resources, res)
	}

	doc, err := assembler.Collection(resources, []string{"author"}, nil)
	if err != nil {
		t.Fatalf("Collection() error = %v", err)
	}

	// Both articles reference the same author; the included set holds it once
	if len(doc.Included) != 1 {
		t.Errorf("included count = %d, want 1", len(doc.Included))
	}

	fragments, ok := doc.Data.([]*resource.Fragment)
	if !ok {
		t.Fatalf("Data is %T, want fragment slice", doc.Data)
	}
	if len(fragments) != 2 {
		t.Errorf("primary data count = %d, want 2", len(fragments))
	}
}

func TestAssembleEmptyCollection(t *testing.T) {
	mapper, _ := testMapper(t)
	assembler := NewAssembler(mapper)

	doc, err := assembler.Collection(nil, nil, nil)
	if err != nil {
		t.Fatalf("Collection() error = %v", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"data":[]`) {
		t.Errorf("empty collection must serialize as [], got %s", data)
	}
}

func TestRender(t *testing.T) {
	w := httptest.NewRecorder()

	doc := NewDocument(nil)
	if err := Render(w, http.StatusOK, doc); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if got := w.Header().Get("Content-Type"); got != MediaType {
		t.Errorf("Content-Type = %q, want %q", got, MediaType)
	}
	if !strings.Contains(w.Body.String(), `"data":null`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestIsJSONAPI(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		want   bool
	}{
		{"json:api", "application/vnd.api+json", true},
		{"json:api with charset", "application/vnd.api+json; charset=utf-8", true},
		{"plain json", "application/json", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			if got := IsJSONAPI(r); got != tt.want {
				t.Errorf("IsJSONAPI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaginationLinks(t *testing.T) {
	links := PaginationLinks("http://api.test/articles", 10, 20, 45)

	tests := []struct {
		key  string
		want string
	}{
		{"self", "http://api.test/articles?page%5Blimit%5D=10&page%5Boffset%5D=20"},
		{"first", "http://api.test/articles?page%5Blimit%5D=10&page%5Boffset%5D=0"},
		{"prev", "http://api.test/articles?page%5Blimit%5D=10&page%5Boffset%5D=10"},
		{"next", "http://api.test/articles?page%5Blimit%5D=10&page%5Boffset%5D=30"},
		{"last", "http://api.test/articles?page%5Blimit%5D=10&page%5Boffset%5D=40"},
	}
	for _, tt := range tests {
		if got := links[tt.key]; got != tt.want {
			t.Errorf("links[%s] = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestPaginationLinksFirstPage(t *testing.T) {
	links := PaginationLinks("/articles", 10, 0, 5)

	if _, ok := links["prev"]; ok {
		t.Error("first page must not carry a prev link")
	}
	if _, ok := links["next"]; ok {
		t.Error("single page must not carry a next link")
	}
	if links["self"] != links["first"] || links["self"] != links["last"] {
		t.Errorf("single page links disagree: %v", links)
	}
}
