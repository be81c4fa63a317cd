package merge

import (
	"sort"
	"strings"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/pagination"
)

// Relevance scores, highest priority first.
const (
	scoreProviderExact    = 100
	scoreProviderContains = 80
	scoreIDPrefix         = 60
	scoreIDContains       = 40
	scoreTitleContains    = 20
	scoreFallback         = 10
)

// scored pairs a search result with its ranking inputs.
type scored struct {
	result  catalog.SearchResult
	score   int
	updated int64
}

// SearchResults merges two catalogs, scores the merged set against the
// query, and returns one page of the ranked result. Records present in
// both catalogs keep the secondary copy (tagged with its source); the
// superseded primary copy never reaches scoring.
//
// Ordering: score descending, then newer preferred-version update, then
// secondary-sourced records, then identifier ascending. Pagination is
// applied after the full sort over the merged, deduplicated set.
func SearchResults(primary, secondary map[string]catalog.API, query string, page, limit int) catalog.SearchPage {
	page, limit = pagination.Validate(page, limit)
	q := strings.ToLower(strings.TrimSpace(query))

	// Precedence is settled before scoring: a conflicted identifier is
	// represented only by its secondary copy, even when that copy does
	// not match the query.
	type record struct {
		api    catalog.API
		source catalog.SourceName
	}
	merged := make(map[string]record, len(primary)+len(secondary))
	for id, api := range primary {
		merged[id] = record{api, catalog.SourcePrimary}
	}
	for id, api := range secondary {
		merged[id] = record{api, catalog.SourceSecondary}
	}

	ranked := make([]scored, 0, len(merged))
	for id, rec := range merged {
		score := scoreAPI(id, rec.api, q)
		if score == 0 {
			continue
		}
		pv := rec.api.PreferredVersion()
		ranked = append(ranked, scored{
			result: catalog.SearchResult{
				ID:          id,
				Title:       pv.Info.Title,
				Description: trimDescription(pv.Info.Description),
				Provider:    pv.Info.Provider,
				Preferred:   rec.api.Preferred,
				Categories:  pv.Info.Categories,
				Source:      rec.source,
			},
			score:   score,
			updated: pv.Updated.UnixMilli(),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.updated != b.updated {
			return a.updated > b.updated
		}
		if a.result.Source != b.result.Source {
			return a.result.Source == catalog.SourceSecondary
		}
		return a.result.ID < b.result.ID
	})

	start, end := pageBounds(len(ranked), page, limit)
	results := make([]catalog.SearchResult, 0, end-start)
	for _, s := range ranked[start:end] {
		results = append(results, s.result)
	}

	return catalog.SearchPage{
		Results:    results,
		Pagination: catalog.NewPageInfo(page, limit, len(ranked)),
	}
}

// scoreAPI ranks one record against a lowercased query. A zero score
// means the record does not match at all.
func scoreAPI(id string, api catalog.API, q string) int {
	if q == "" {
		return scoreFallback
	}

	pv := api.PreferredVersion()
	provider := strings.ToLower(pv.Info.Provider)
	lowerID := strings.ToLower(id)

	switch {
	case provider == q:
		return scoreProviderExact
	case provider != "" && strings.Contains(provider, q):
		return scoreProviderContains
	case strings.HasPrefix(lowerID, q):
		return scoreIDPrefix
	case strings.Contains(lowerID, q):
		return scoreIDContains
	case strings.Contains(strings.ToLower(pv.Info.Title), q):
		return scoreTitleContains
	case strings.Contains(strings.ToLower(pv.Info.Description), q):
		return scoreFallback
	default:
		return 0
	}
}

// trimDescription bounds description payloads carried in search results.
func trimDescription(desc string) string {
	const max = 200
	if len(desc) <= max {
		return desc
	}
	return desc[:max] + "..."
}
