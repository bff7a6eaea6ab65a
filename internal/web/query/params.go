// Package query parses the document-shaping query parameters: include
// paths, sparse fieldsets, filters, sort order, and pagination.
package query

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// fieldsPattern matches query parameters like fields[typename]
var fieldsPattern = regexp.MustCompile(`^fields\[([^\]]+)\]$`)

// filterPattern matches query parameters like filter[key]
var filterPattern = regexp.MustCompile(`^filter\[([^\]]+)\]$`)

// ParseInclude parses the include parameter into dotted relationship paths.
// Example: ?include=author.company,tags returns ["author.company", "tags"].
func ParseInclude(r *http.Request) []string {
	include := r.URL.Query().Get("include")
	if include == "" {
		return []string{}
	}

	parts := strings.Split(include, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseFields parses fields[type] parameters into a map of resource types
// to requested attribute names.
func ParseFields(r *http.Request) map[string][]string {
	result := make(map[string][]string)

	for key, values := range r.URL.Query() {
		matches := fieldsPattern.FindStringSubmatch(key)
		if len(matches) != 2 {
			continue
		}

		typeName := matches[1]
		if len(values) == 0 || values[0] == "" {
			result[typeName] = []string{}
			continue
		}

		fields := strings.Split(values[0], ",")
		fieldList := make([]string, 0, len(fields))
		for _, field := range fields {
			if trimmed := strings.TrimSpace(field); trimmed != "" {
				fieldList = append(fieldList, trimmed)
			}
		}
		result[typeName] = fieldList
	}
	return result
}

// ParseFilter parses filter[key] parameters into a key → value map
func ParseFilter(r *http.Request) map[string]string {
	result := make(map[string]string)

	for key, values := range r.URL.Query() {
		matches := filterPattern.FindStringSubmatch(key)
		if len(matches) != 2 {
			continue
		}
		if len(values) > 0 {
			result[matches[1]] = values[0]
		}
	}
	return result
}

// ParseSort parses the sort parameter into sort fields, keeping the "-"
// prefix that marks descending order
func ParseSort(r *http.Request) []string {
	sort := r.URL.Query().Get("sort")
	if sort == "" {
		return []string{}
	}

	parts := strings.Split(sort, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Page holds pagination parameters
type Page struct {
	Limit  int
	Offset int
}

// DefaultPageLimit is used when no page[limit] is supplied
const DefaultPageLimit = 50

// MaxPageLimit caps page[limit] to keep responses bounded
const MaxPageLimit = 200

// ParsePage parses page[limit] and page[offset] parameters, applying the
// default and maximum limits
func ParsePage(r *http.Request) Page {
	page := Page{Limit: DefaultPageLimit}

	if raw := r.URL.Query().Get("page[limit]"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			page.Limit = limit
		}
	}
	if page.Limit > MaxPageLimit {
		page.Limit = MaxPageLimit
	}

	if raw := r.URL.Query().Get("page[offset]"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			page.Offset = offset
		}
	}
	return page
}
