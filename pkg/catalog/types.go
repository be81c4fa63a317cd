// Package catalog defines the shared data model for the API directory:
// provider catalogs, versioned API records, directory metrics, search
// results, and extracted endpoint summaries.
package catalog

import (
	"fmt"
	"strings"
	"time"
)

// SourceName identifies one of the three independent catalogs.
type SourceName string

const (
	// SourcePrimary is the authoritative catalog of record.
	SourcePrimary SourceName = "primary"

	// SourceSecondary is the enhanced secondary catalog.
	SourceSecondary SourceName = "secondary"

	// SourceCustom is the locally-imported custom catalog.
	SourceCustom SourceName = "custom"
)

// API is one catalog entry keyed by "provider[:service]" with all of its
// published versions.
type API struct {
	// Added is when the API first appeared in the directory.
	Added time.Time `json:"added"`

	// Preferred is the version key callers should use by default.
	Preferred string `json:"preferred"`

	// Versions maps version identifiers to their metadata.
	Versions map[string]Version `json:"versions"`
}

// Version holds the metadata of a single published API version.
type Version struct {
	Added          time.Time `json:"added"`
	Updated        time.Time `json:"updated"`
	SwaggerURL     string    `json:"swaggerUrl"`
	SwaggerYamlURL string    `json:"swaggerYamlUrl,omitempty"`
	Info           Info      `json:"info"`
}

// Info carries the descriptive fields of an API version.
type Info struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Provider    string   `json:"x-providerName,omitempty"`
	Service     string   `json:"x-serviceName,omitempty"`
	Categories  []string `json:"x-apisguru-categories,omitempty"`
	Popularity  int      `json:"x-popularity,omitempty"`
}

// PreferredVersion returns the metadata of the preferred version, falling
// back to any version when the preferred key is missing.
func (a API) PreferredVersion() Version {
	if v, ok := a.Versions[a.Preferred]; ok {
		return v
	}
	for _, v := range a.Versions {
		return v
	}
	return Version{}
}

// APIID builds the canonical identifier "provider" or "provider:service".
func APIID(provider, service string) string {
	if service == "" {
		return provider
	}
	return fmt.Sprintf("%s:%s", provider, service)
}

// SplitAPIID splits an identifier into provider and optional service.
func SplitAPIID(id string) (provider, service string) {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, ""
}

// Metrics is a directory-wide statistics object as reported by a source
// (or produced by aggregation across sources).
type Metrics struct {
	NumSpecs     int `json:"numSpecs"`
	NumAPIs      int `json:"numAPIs"`
	NumEndpoints int `json:"numEndpoints"`
	NumProviders int `json:"numProviders,omitempty"`
	Unreachable  int `json:"unreachable,omitempty"`
	Invalid      int `json:"invalid,omitempty"`
	Unofficial   int `json:"unofficial,omitempty"`
	Fixes        int `json:"fixes,omitempty"`
	Stars        int `json:"stars,omitempty"`
}

// SearchResult is one scored entry of a cross-catalog search.
type SearchResult struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Provider    string     `json:"provider"`
	Preferred   string     `json:"preferred"`
	Categories  []string   `json:"categories,omitempty"`
	Source      SourceName `json:"source"`
}

// SearchPage is a paginated slice of search results with derived
// pagination fields recomputed from total/page/limit.
type SearchPage struct {
	Results    []SearchResult `json:"results"`
	Pagination PageInfo       `json:"pagination"`
}

// ListPage is a paginated slice of catalog entries.
type ListPage struct {
	Results    []ListEntry `json:"results"`
	Pagination PageInfo    `json:"pagination"`
}

// ListEntry is one row of a paginated catalog listing.
type ListEntry struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Provider  string     `json:"provider"`
	Preferred string     `json:"preferred"`
	Updated   time.Time  `json:"updated"`
	Source    SourceName `json:"source"`
}

// PageInfo carries derived pagination fields. TotalPages, HasNext and
// HasPrevious are always recomputed, never stored independently.
type PageInfo struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPageInfo derives the full pagination block from total/page/limit.
func NewPageInfo(page, limit, total int) PageInfo {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return PageInfo{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1 && total > 0,
	}
}

// Endpoint is one operation extracted from an OpenAPI document's paths.
type Endpoint struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	OperationID string   `json:"operationId,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Deprecated  bool     `json:"deprecated,omitempty"`
}

// EndpointPage is a paginated slice of extracted endpoints.
type EndpointPage struct {
	Endpoints  []Endpoint `json:"endpoints"`
	Pagination PageInfo   `json:"pagination"`
}

// Summary is a compact directory overview assembled from the merged catalog.
type Summary struct {
	TotalAPIs      int            `json:"total_apis"`
	TotalProviders int            `json:"total_providers"`
	Categories     map[string]int `json:"categories,omitempty"`
	RecentlyAdded  []ListEntry    `json:"recently_added,omitempty"`
}
