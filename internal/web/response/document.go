// Package response assembles and renders API documents: the top-level
// envelope combining a primary resource fragment (or collection) with the
// deduplicated included set, plus JSON:API error documents.
package response

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/strata-api/strata/internal/resource"
)

// MediaType is the official JSON:API media type
const MediaType = "application/vnd.api+json"

// Version tags the document format version
type Version struct {
	Version string `json:"version"`
}

// Document is the top-level response envelope. Data holds either a single
// fragment or a slice of fragments.
type Document struct {
	JSONAPI  Version                `json:"jsonapi"`
	Links    map[string]string      `json:"links,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
	Data     interface{}            `json:"data"`
	Included []*resource.Fragment   `json:"included,omitempty"`
}

// NewDocument creates a document envelope around primary data
func NewDocument(data interface{}) *Document {
	return &Document{
		JSONAPI: Version{Version: "1.0"},
		Data:    data,
	}
}

// Assembler combines the serializer and include resolver output into
// response documents.
type Assembler struct {
	mapper *resource.Mapper
}

// NewAssembler creates a document assembler over a mapper
func NewAssembler(mapper *resource.Mapper) *Assembler {
	return &Assembler{mapper: mapper}
}

// Resource assembles a single-resource document, resolving include paths
// into the document's included set.
func (a *Assembler) Resource(res *resource.Resource, includePaths []string, linkCtx *resource.LinkContext) (*Document, error) {
	includes := resource.NewIncludeSet()

	fragment, err := a.mapper.Serialize(res, includePaths, linkCtx, includes)
	if err != nil {
		return nil, err
	}

	doc := NewDocument(fragment)
	if err := a.appendIncluded(doc, includes, linkCtx); err != nil {
		return nil, err
	}
	return doc, nil
}

// Collection assembles a multi-resource document. Include paths are
// resolved from every member; the included set stays deduplicated across
// the whole collection.
func (a *Assembler) Collection(resources []*resource.Resource, includePaths []string, linkCtx *resource.LinkContext) (*Document, error) {
	includes := resource.NewIncludeSet()

	fragments := make([]*resource.Fragment, 0, len(resources))
	for _, res := range resources {
		fragment, err := a.mapper.Serialize(res, includePaths, linkCtx, includes)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, fragment)
	}

	doc := NewDocument(fragments)
	if err := a.appendIncluded(doc, includes, linkCtx); err != nil {
		return nil, err
	}
	return doc, nil
}

// appendIncluded serializes the accumulated include set into the document,
// preserving insertion order. Included fragments never trigger further
// include resolution.
func (a *Assembler) appendIncluded(doc *Document, includes *resource.IncludeSet, linkCtx *resource.LinkContext) error {
	for _, res := range includes.Resources() {
		fragment, err := a.mapper.Serialize(res, nil, linkCtx, nil)
		if err != nil {
			return err
		}
		doc.Included = append(doc.Included, fragment)
	}
	return nil
}

// ApplySparseFieldsets trims every fragment in the document down to the
// requested fields[type] members. Types without an entry keep their full
// attribute and relationship sets; an entry with an empty list strips them
// all.
func ApplySparseFieldsets(doc *Document, fields map[string][]string) {
	if len(fields) == 0 {
		return
	}

	switch data := doc.Data.(type) {
	case *resource.Fragment:
		trimFragment(data, fields)
	case []*resource.Fragment:
		for _, fragment := range data {
			trimFragment(fragment, fields)
		}
	}
	for _, fragment := range doc.Included {
		trimFragment(fragment, fields)
	}
}

func trimFragment(fragment *resource.Fragment, fields map[string][]string) {
	if fragment == nil {
		return
	}
	requested, ok := fields[fragment.Type]
	if !ok {
		return
	}

	keep := make(map[string]bool, len(requested))
	for _, name := range requested {
		keep[name] = true
	}

	attrs := fragment.Attributes[:0]
	for _, attr := range fragment.Attributes {
		if keep[attr.Name] {
			attrs = append(attrs, attr)
		}
	}
	fragment.Attributes = attrs

	rels := fragment.Relationships[:0]
	for _, rel := range fragment.Relationships {
		if keep[rel.Name] {
			rels = append(rels, rel)
		}
	}
	fragment.Relationships = rels
}

// Marshal encodes a document to its wire form
func Marshal(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

// Render marshals a document and writes it. Marshaling happens before any
// response bytes are written so a failure never produces a partial body.
func Render(w http.ResponseWriter, status int, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// IsJSONAPI checks if the request accepts the JSON:API media type
func IsJSONAPI(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(accept)
	if err != nil {
		return strings.Contains(accept, MediaType)
	}
	return mediaType == MediaType
}

// PaginationLinks builds the self/first/prev/next/last link set for a
// paginated collection
func PaginationLinks(baseURL string, limit, offset, total int) map[string]string {
	if limit < 1 {
		limit = 1
	}

	links := map[string]string{
		"self":  pageURL(baseURL, limit, offset),
		"first": pageURL(baseURL, limit, 0),
	}

	lastOffset := 0
	if total > 0 {
		lastOffset = ((total - 1) / limit) * limit
	}
	links["last"] = pageURL(baseURL, limit, lastOffset)

	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links["prev"] = pageURL(baseURL, limit, prev)
	}
	if offset+limit < total {
		links["next"] = pageURL(baseURL, limit, offset+limit)
	}

	return links
}

func pageURL(baseURL string, limit, offset int) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Sprintf("%s?page[limit]=%d&page[offset]=%d", baseURL, limit, offset)
	}

	q := u.Query()
	q.Set("page[limit]", strconv.Itoa(limit))
	q.Set("page[offset]", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String()
}
