// Package merge implements the deterministic multi-source merge engine.
// Every function is pure: inputs are never mutated, and the same inputs
// always produce the same output regardless of fetch completion order.
//
// Precedence is fixed: secondary overrides primary, and N-way merges
// fold pairwise left-to-right in increasing precedence order, so
// merging (primary, secondary) and then custom makes custom win all
// conflicts.
package merge

import (
	"sort"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/pagination"
)

// Providers returns the case-preserving, deduplicated union of two
// provider-name lists, sorted ascending.
func Providers(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// APILists returns the union of two catalogs keyed by identifier. On
// conflict the higher-precedence (second) catalog always wins.
func APILists(primary, secondary map[string]catalog.API) map[string]catalog.API {
	out := make(map[string]catalog.API, len(primary)+len(secondary))
	for id, api := range primary {
		out[id] = api
	}
	for id, api := range secondary {
		out[id] = api
	}
	return out
}

// PaginatedAPIs merges two catalogs and returns one page of the result,
// ordered by identifier for determinism. Pagination is applied after
// the full merge, never per source.
func PaginatedAPIs(primary, secondary map[string]catalog.API, page, limit int) catalog.ListPage {
	page, limit = pagination.Validate(page, limit)
	merged := APILists(primary, secondary)

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]catalog.ListEntry, 0, len(ids))
	for _, id := range ids {
		api := merged[id]
		pv := api.PreferredVersion()
		source := catalog.SourcePrimary
		if _, ok := secondary[id]; ok {
			source = catalog.SourceSecondary
		}
		entries = append(entries, catalog.ListEntry{
			ID:        id,
			Title:     pv.Info.Title,
			Provider:  pv.Info.Provider,
			Preferred: api.Preferred,
			Updated:   pv.Updated,
			Source:    source,
		})
	}

	start, end := pageBounds(len(entries), page, limit)
	return catalog.ListPage{
		Results:    entries[start:end],
		Pagination: catalog.NewPageInfo(page, limit, len(entries)),
	}
}

// pageBounds clamps a [start, end) slice window onto n items.
func pageBounds(n, page, limit int) (int, int) {
	start := (page - 1) * limit
	if start > n {
		start = n
	}
	end := start + limit
	if end > n {
		end = n
	}
	return start, end
}
