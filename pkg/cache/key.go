package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key represents a unique identifier for a cached Jira response.
type Key struct {
	// Endpoint is the API endpoint path (e.g. "/rest/api/2/search")
	Endpoint string

	// QueryParams are the query parameters of the request
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: jira:endpoint:query1=val1:query2=val2
//
// Example:
//
//	jira:rest/api/2/search:jql=project = KAFKA ORDER BY created DESC:startAt=0
func (k Key) String() string {
	parts := []string{"jira"}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
