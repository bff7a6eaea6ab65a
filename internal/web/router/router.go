// Package router provides HTTP routing over chi with named routes, so
// resource self-links can be generated by reversing a route name plus its
// lookup parameters back into a path.
package router

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Router manages HTTP routing using the chi framework and keeps a name →
// pattern index for URL reversal.
type Router struct {
	mux    chi.Router
	mu     sync.RWMutex
	routes map[string]*Route
}

// Route represents a single registered route
type Route struct {
	Pattern string // /articles/{pk}
	Method  string // GET, POST, etc.
	Name    string // named route for URL generation
	Handler http.HandlerFunc
}

// New creates a new router
func New() *Router {
	return &Router{
		mux:    chi.NewRouter(),
		routes: make(map[string]*Route),
	}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use appends middleware to the underlying chi router
func (r *Router) Use(middlewares ...func(http.Handler) http.Handler) {
	r.mux.Use(middlewares...)
}

// Handle registers a handler for the given method and pattern. A non-empty
// name makes the route reversible.
func (r *Router) Handle(method, pattern, name string, handler http.HandlerFunc) (*Route, error) {
	route := &Route{
		Pattern: pattern,
		Method:  method,
		Name:    name,
		Handler: handler,
	}

	if name != "" {
		r.mu.Lock()
		if existing, exists := r.routes[name]; exists && existing.Pattern != pattern {
			r.mu.Unlock()
			return nil, fmt.Errorf("route name %s already registered for %s", name, existing.Pattern)
		}
		r.routes[name] = route
		r.mu.Unlock()
	}

	r.mux.Method(method, pattern, handler)
	return route, nil
}

// Get registers a GET route
func (r *Router) Get(pattern, name string, handler http.HandlerFunc) (*Route, error) {
	return r.Handle(http.MethodGet, pattern, name, handler)
}

// Post registers a POST route
func (r *Router) Post(pattern, name string, handler http.HandlerFunc) (*Route, error) {
	return r.Handle(http.MethodPost, pattern, name, handler)
}

// Patch registers a PATCH route
func (r *Router) Patch(pattern, name string, handler http.HandlerFunc) (*Route, error) {
	return r.Handle(http.MethodPatch, pattern, name, handler)
}

// Delete registers a DELETE route
func (r *Router) Delete(pattern, name string, handler http.HandlerFunc) (*Route, error) {
	return r.Handle(http.MethodDelete, pattern, name, handler)
}

// Lookup returns the named route, if registered
func (r *Router) Lookup(name string) (*Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.routes[name]
	return route, ok
}

// URLParam reads a path parameter from a request routed through this router
func URLParam(req *http.Request, name string) string {
	return chi.URLParam(req, name)
}

// patternParams extracts the {param} names from a chi route pattern
func patternParams(pattern string) []string {
	var params []string
	for _, segment := range strings.Split(pattern, "/") {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			params = append(params, strings.Trim(segment, "{}"))
		}
	}
	return params
}
