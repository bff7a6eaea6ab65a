// Package endpoint wires a registered resource type into a full CRUD route
// set: list, show, create, update, and delete handlers that parse inbound
// documents, run the populate pipeline, persist through the store, execute
// deferred collection writes, and assemble response documents.
package endpoint

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/strata-api/strata/internal/resource"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
	"github.com/strata-api/strata/internal/web/cache"
	"github.com/strata-api/strata/internal/web/request"
	"github.com/strata-api/strata/internal/web/response"
	"github.com/strata-api/strata/internal/web/router"
)

// Set is the handler set for one resource type. It owns no routing state of
// its own; Register installs its handlers on a router under a base path.
type Set struct {
	typeName  string
	rt        *schema.ResourceType
	mapper    *resource.Mapper
	assembler *response.Assembler
	store     store.Store
	parser    *request.Parser

	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Option configures a handler set
type Option func(*Set)

// WithCache enables response document caching for read endpoints. Write
// endpoints invalidate the type's cached documents.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Set) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithLogger attaches a logger for handler-level diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(s *Set) {
		s.logger = logger
	}
}

// WithParser overrides the default document parser
func WithParser(p *request.Parser) Option {
	return func(s *Set) {
		s.parser = p
	}
}

// NewSet creates the handler set for a registered resource type
func NewSet(typeName string, mapper *resource.Mapper, st store.Store, opts ...Option) (*Set, error) {
	rt, ok := mapper.Registry().Get(typeName)
	if !ok {
		return nil, fmt.Errorf("resource type %s is not registered", typeName)
	}

	s := &Set{
		typeName:  typeName,
		rt:        rt,
		mapper:    mapper,
		assembler: response.NewAssembler(mapper),
		store:     st,
		parser:    request.NewParser(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// baseName is the named-route prefix: the binding's base name when the type
// is bound, the wire type tag otherwise.
func (s *Set) baseName() string {
	if s.rt.Binding != nil && s.rt.Binding.BaseName != "" {
		return s.rt.Binding.BaseName
	}
	return s.rt.APIType
}

// lookupField is the URL parameter name for the detail route
func (s *Set) lookupField() string {
	if s.rt.Binding != nil && s.rt.Binding.LookupField != "" {
		return s.rt.Binding.LookupField
	}
	return "pk"
}

// kind is the storage-level name records of this type live under
func (s *Set) kind() string {
	return s.rt.TableName()
}

// Register installs the CRUD routes under basePath. The list and detail GET
// routes are named so self-links can reverse them.
func (s *Set) Register(r *router.Router, basePath string) error {
	base := s.baseName()
	detailPattern := fmt.Sprintf("%s/{%s}", basePath, s.lookupField())

	if _, err := r.Get(basePath, base+"-list", s.List); err != nil {
		return err
	}
	if _, err := r.Post(basePath, "", s.Create); err != nil {
		return err
	}
	if _, err := r.Get(detailPattern, base+"-detail", s.Show); err != nil {
		return err
	}
	if _, err := r.Patch(detailPattern, "", s.Update); err != nil {
		return err
	}
	if _, err := r.Delete(detailPattern, "", s.Delete); err != nil {
		return err
	}
	return nil
}
