package router

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/strata-api/strata/internal/resource"
)

// Reverse turns a named route and its ordered lookup parameters into a
// path, filling each {param} placeholder in the route pattern. Every
// placeholder must be filled and every parameter must correspond to a
// placeholder.
func (r *Router) Reverse(name string, params []resource.LookupParam) (string, error) {
	route, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("no route registered with name %s", name)
	}

	values := make(map[string]string, len(params))
	for _, param := range params {
		values[param.Field] = param.Value
	}

	path := route.Pattern
	for _, placeholder := range patternParams(route.Pattern) {
		value, ok := values[placeholder]
		if !ok {
			return "", fmt.Errorf("route %s requires parameter %s", name, placeholder)
		}
		path = strings.ReplaceAll(path, "{"+placeholder+"}", url.PathEscape(value))
		delete(values, placeholder)
	}
	if len(values) > 0 {
		for field := range values {
			return "", fmt.Errorf("route %s has no parameter %s", name, field)
		}
	}

	return path, nil
}
