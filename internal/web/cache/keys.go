package cache

import (
	"fmt"
	"sort"
	"strings"
)

// DocumentKey builds the cache key for a single-resource document. Include
// paths are sorted so equivalent requests share an entry.
func DocumentKey(apiType, id string, includePaths []string) string {
	return fmt.Sprintf("doc:%s:%s:%s", apiType, id, includeKey(includePaths))
}

// CollectionKey builds the cache key for a collection document
func CollectionKey(apiType string, includePaths []string, query string) string {
	return fmt.Sprintf("col:%s:%s:%s", apiType, includeKey(includePaths), query)
}

// TypePrefix is the key prefix shared by every document of a resource
// type, used for write invalidation
func TypePrefix(apiType string) []string {
	return []string{
		fmt.Sprintf("doc:%s:", apiType),
		fmt.Sprintf("col:%s:", apiType),
	}
}

func includeKey(includePaths []string) string {
	if len(includePaths) == 0 {
		return "-"
	}
	sorted := make([]string, len(includePaths))
	copy(sorted, includePaths)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
