package endpoint

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/strata-api/strata/internal/resource"
	"github.com/strata-api/strata/internal/store"
	"github.com/strata-api/strata/internal/web/cache"
	"github.com/strata-api/strata/internal/web/query"
	"github.com/strata-api/strata/internal/web/response"
	"github.com/strata-api/strata/internal/web/router"
)

// List handles GET on the collection route: a paginated document shaped by
// the include, filter, sort, and sparse fieldset parameters.
func (s *Set) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	includePaths := query.ParseInclude(r)
	page := query.ParsePage(r)
	filters := query.ParseFilter(r)
	fields := query.ParseFields(r)
	sortFields := query.ParseSort(r)

	if err := s.validateSort(sortFields); err != nil {
		response.RenderStatusError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The collection cache key covers the raw query string, so sort and
	// fieldset variants cache separately; filtered reads skip it.
	if s.cache != nil && len(filters) == 0 {
		key := cache.CollectionKey(s.rt.APIType, includePaths, r.URL.RawQuery)
		if body, err := s.cache.Get(ctx, key); err == nil {
			s.writeCached(w, body)
			return
		}
	}

	records, total, err := s.store.List(ctx, s.kind(), sortFields, page.Limit, page.Offset)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	records = applyFilters(records, filters)

	resources := make([]*resource.Resource, 0, len(records))
	for _, record := range records {
		res, err := s.resourceFor(ctx, record, includePaths)
		if err != nil {
			response.RenderError(w, err)
			return
		}
		resources = append(resources, res)
	}

	linkCtx := resource.NewLinkContext(r)
	doc, err := s.assembler.Collection(resources, includePaths, linkCtx)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	response.ApplySparseFieldsets(doc, fields)

	doc.Links = response.PaginationLinks(s.requestURL(r), page.Limit, page.Offset, total)
	doc.Meta = map[string]interface{}{
		"paginator": map[string]interface{}{
			"count":     total,
			"num_pages": numPages(total, page.Limit),
		},
	}

	s.renderAndCache(ctx, w, http.StatusOK, doc, s.collectionCacheKey(r, includePaths, filters))
}

// Show handles GET on the detail route
func (s *Set) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := router.URLParam(r, s.lookupField())
	includePaths := query.ParseInclude(r)
	fields := query.ParseFields(r)

	// The document cache key does not carry fieldsets, so trimmed reads
	// bypass the cache entirely
	var cacheKey string
	if s.cache != nil && len(fields) == 0 {
		cacheKey = cache.DocumentKey(s.rt.APIType, id, includePaths)
		if body, err := s.cache.Get(ctx, cacheKey); err == nil {
			s.writeCached(w, body)
			return
		}
	}

	record, err := s.store.Find(ctx, s.kind(), id)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	res, err := s.resourceFor(ctx, record, includePaths)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	doc, err := s.assembler.Resource(res, includePaths, resource.NewLinkContext(r))
	if err != nil {
		response.RenderError(w, err)
		return
	}
	response.ApplySparseFieldsets(doc, fields)

	s.renderAndCache(ctx, w, http.StatusOK, doc, cacheKey)
}

// Create handles POST on the collection route. Deferred collection writes
// run after the record is persisted, then the saved resource is re-read and
// rendered.
func (s *Set) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !response.ValidateContentType(w, r) {
		return
	}

	doc, err := s.parser.ParseDocument(w, r)
	if err != nil {
		response.RenderStatusError(w, http.StatusBadRequest, err.Error())
		return
	}
	if doc.Type != s.rt.APIType {
		response.RenderStatusError(w, http.StatusConflict,
			fmt.Sprintf("document type %q does not match endpoint type %q", doc.Type, s.rt.APIType))
		return
	}

	res, deferred, err := s.mapper.Populate(ctx, s.typeName, &doc.Payload, nil)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	saved, err := s.store.Save(ctx, s.kind(), res.Record)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if err := s.applyDeferred(ctx, saved, deferred); err != nil {
		response.RenderError(w, err)
		return
	}
	s.invalidate(ctx)

	savedRes, err := s.resourceFor(ctx, saved, nil)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	linkCtx := resource.NewLinkContext(r)
	out, err := s.assembler.Resource(savedRes, nil, linkCtx)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	if self, err := s.mapper.SelfLink(savedRes, linkCtx); err == nil {
		w.Header().Set("Location", self)
	}
	if err := response.Render(w, http.StatusCreated, out); err != nil {
		s.logger.Error("failed to render document", zap.Error(err))
	}
}

// Update handles PATCH on the detail route. The payload populates over the
// existing record, so omitted attributes keep their stored values.
func (s *Set) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !response.ValidateContentType(w, r) {
		return
	}

	id := router.URLParam(r, s.lookupField())
	existing, err := s.store.Find(ctx, s.kind(), id)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	doc, err := s.parser.ParseDocument(w, r)
	if err != nil {
		response.RenderStatusError(w, http.StatusBadRequest, err.Error())
		return
	}
	if doc.Type != s.rt.APIType {
		response.RenderStatusError(w, http.StatusConflict,
			fmt.Sprintf("document type %q does not match endpoint type %q", doc.Type, s.rt.APIType))
		return
	}
	if doc.ID != "" && doc.ID != id {
		response.RenderStatusError(w, http.StatusConflict,
			fmt.Sprintf("document id %q does not match URL id %q", doc.ID, id))
		return
	}

	res, deferred, err := s.mapper.Populate(ctx, s.typeName, &doc.Payload, existing)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	saved, err := s.store.Save(ctx, s.kind(), res.Record)
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if err := s.applyDeferred(ctx, saved, deferred); err != nil {
		response.RenderError(w, err)
		return
	}
	s.invalidate(ctx)

	savedRes, err := s.resourceFor(ctx, saved, nil)
	if err != nil {
		response.RenderError(w, err)
		return
	}

	out, err := s.assembler.Resource(savedRes, nil, resource.NewLinkContext(r))
	if err != nil {
		response.RenderError(w, err)
		return
	}
	if err := response.Render(w, http.StatusOK, out); err != nil {
		s.logger.Error("failed to render document", zap.Error(err))
	}
}

// Delete handles DELETE on the detail route
func (s *Set) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := router.URLParam(r, s.lookupField())

	if err := s.store.Delete(ctx, s.kind(), id); err != nil {
		response.RenderError(w, err)
		return
	}
	s.invalidate(ctx)

	w.WriteHeader(http.StatusNoContent)
}

// resourceFor wraps a fetched record and hydrates its relationship targets,
// so flat storage rows serialize with their relationship data
func (s *Set) resourceFor(ctx context.Context, record store.Record, includePaths []string) (*resource.Resource, error) {
	res, err := s.mapper.Resource(s.typeName, record)
	if err != nil {
		return nil, err
	}
	if err := s.mapper.Hydrate(ctx, res, includePaths); err != nil {
		return nil, err
	}
	return res, nil
}

// validateSort rejects sort fields naming anything other than a declared
// attribute or the primary key
func (s *Set) validateSort(sortFields []string) error {
	for _, field := range sortFields {
		name := strings.TrimPrefix(field, "-")
		if name == "id" || s.rt.HasAttribute(name) {
			continue
		}
		return fmt.Errorf("cannot sort by unknown field %q", name)
	}
	return nil
}

// applyDeferred executes the populate pipeline's deferred collection writes
// in order: persist the links through the store, then mirror them onto the
// in-memory record so the response reflects them.
func (s *Set) applyDeferred(ctx context.Context, saved store.Record, deferred []resource.DeferredWrite) error {
	id := store.RecordID(saved)
	for i := range deferred {
		d := &deferred[i]
		if err := s.store.AddToCollection(ctx, s.kind(), id, d.Attr, d.TargetIDs); err != nil {
			return err
		}
		if err := d.Apply(saved); err != nil {
			return err
		}
	}
	return nil
}

// invalidate drops every cached document for this type after a write
func (s *Set) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, prefix := range cache.TypePrefix(s.rt.APIType) {
		if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
			s.logger.Warn("cache invalidation failed",
				zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

// collectionCacheKey returns the list-document cache key, or empty when the
// response should not be cached
func (s *Set) collectionCacheKey(r *http.Request, includePaths []string, filters map[string]string) string {
	if s.cache == nil || len(filters) > 0 {
		return ""
	}
	return cache.CollectionKey(s.rt.APIType, includePaths, r.URL.RawQuery)
}

// renderAndCache renders the document and, when a cache key is set, stores
// the marshaled body for subsequent reads
func (s *Set) renderAndCache(ctx context.Context, w http.ResponseWriter, status int, doc *response.Document, cacheKey string) {
	body, err := response.Marshal(doc)
	if err != nil {
		response.RenderStatusError(w, http.StatusInternalServerError, "failed to render document")
		return
	}

	if s.cache != nil && cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, body, s.cacheTTL); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", response.MediaType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}

func (s *Set) writeCached(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", response.MediaType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("failed to write cached response", zap.Error(err))
	}
}

// requestURL rebuilds the request's own URL for pagination links
func (s *Set) requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if r.Host == "" {
		return r.URL.Path
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
}

// applyFilters keeps records whose stringified field values match every
// filter entry
func applyFilters(records []store.Record, filters map[string]string) []store.Record {
	if len(filters) == 0 {
		return records
	}

	var filtered []store.Record
	for _, record := range records {
		match := true
		for field, want := range filters {
			if fmt.Sprint(record[field]) != want {
				match = false
				break
			}
		}
		if match {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func numPages(total, limit int) int {
	if limit < 1 {
		limit = 1
	}
	pages := int(math.Ceil(float64(total) / float64(limit)))
	if pages < 1 {
		pages = 1
	}
	return pages
}
