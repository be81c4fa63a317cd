package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/merge"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/pagination"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/source"
)

const (
	defaultRankingSize = 10
	summaryRecentSize  = 5
)

// GetProviders returns the merged provider-name list across all three
// catalogs.
func (a *Aggregator) GetProviders(ctx context.Context) ([]string, error) {
	return cachedAs(ctx, a, keyProviders, ttlProviders, func(ctx context.Context) ([]string, error) {
		merged := []string{}
		for _, src := range a.sources() {
			var doc catalog.ProviderList
			if err := a.fetchJSON(ctx, src, source.PathProviders, &doc); err != nil {
				a.degrade(src.Name(), "provider list", err)
				continue
			}
			merged = merge.Providers(merged, doc.Data)
		}
		return merged, nil
	})
}

// ListAPIs returns the full merged catalog. Conflicts resolve custom
// over secondary over primary.
func (a *Aggregator) ListAPIs(ctx context.Context) (catalog.APIList, error) {
	return cachedAs(ctx, a, keyAllAPIs, ttlListing, func(ctx context.Context) (catalog.APIList, error) {
		p, s, c := a.catalogs(ctx)
		return catalog.APIList(merge.APILists(merge.APILists(p, s), c)), nil
	})
}

// ListAPIsPaginated returns one id-ordered page of the merged catalog.
func (a *Aggregator) ListAPIsPaginated(ctx context.Context, page, limit int) (catalog.ListPage, error) {
	page, limit = pagination.Validate(page, limit)
	return cachedAs(ctx, a, pageKey(page, limit), ttlPage, func(ctx context.Context) (catalog.ListPage, error) {
		p, s, c := a.catalogs(ctx)
		lp := merge.PaginatedAPIs(p, merge.APILists(s, c), page, limit)
		for i := range lp.Results {
			if _, ok := c[lp.Results[i].ID]; ok {
				lp.Results[i].Source = catalog.SourceCustom
			}
		}
		return lp, nil
	})
}

// SearchAPIs returns one page of the scored cross-catalog search.
func (a *Aggregator) SearchAPIs(ctx context.Context, query string, page, limit int) (catalog.SearchPage, error) {
	page, limit = pagination.Validate(page, limit)
	q := strings.ToLower(strings.TrimSpace(query))
	return cachedAs(ctx, a, searchKey(q, page, limit), ttlSearch, func(ctx context.Context) (catalog.SearchPage, error) {
		p, s, c := a.catalogs(ctx)
		sp := merge.SearchResults(p, merge.APILists(s, c), q, page, limit)
		for i := range sp.Results {
			if _, ok := c[sp.Results[i].ID]; ok {
				sp.Results[i].Source = catalog.SourceCustom
			}
		}
		return sp, nil
	})
}

// GetMetrics returns the overlap-corrected directory-wide metrics.
func (a *Aggregator) GetMetrics(ctx context.Context) (catalog.Metrics, error) {
	return cachedAs(ctx, a, keyMetrics, ttlMetrics, func(ctx context.Context) (catalog.Metrics, error) {
		p, s, c := a.catalogs(ctx)
		first := merge.Metrics(
			a.sourceMetrics(ctx, a.primary),
			a.sourceMetrics(ctx, a.secondary), p, s)
		return merge.Metrics(&first,
			a.sourceMetrics(ctx, a.custom), merge.APILists(p, s), c), nil
	})
}

// GetPopularAPIs ranks the merged catalog by popularity.
func (a *Aggregator) GetPopularAPIs(ctx context.Context, limit int) ([]catalog.ListEntry, error) {
	if limit <= 0 {
		limit = defaultRankingSize
	}
	key := fmt.Sprintf("apis:popular:%d", limit)
	return cachedAs(ctx, a, key, ttlRanking, func(ctx context.Context) ([]catalog.ListEntry, error) {
		entries, merged := a.mergedEntries(ctx)
		sort.Slice(entries, func(i, j int) bool {
			pi := merged[entries[i].ID].PreferredVersion().Info.Popularity
			pj := merged[entries[j].ID].PreferredVersion().Info.Popularity
			if pi != pj {
				return pi > pj
			}
			return entries[i].ID < entries[j].ID
		})
		return truncateEntries(entries, limit), nil
	})
}

// GetRecentlyUpdatedAPIs ranks the merged catalog by the preferred
// version's update date.
func (a *Aggregator) GetRecentlyUpdatedAPIs(ctx context.Context, limit int) ([]catalog.ListEntry, error) {
	if limit <= 0 {
		limit = defaultRankingSize
	}
	key := fmt.Sprintf("apis:recent:%d", limit)
	return cachedAs(ctx, a, key, ttlRanking, func(ctx context.Context) ([]catalog.ListEntry, error) {
		entries, _ := a.mergedEntries(ctx)
		sort.Slice(entries, func(i, j int) bool {
			if !entries[i].Updated.Equal(entries[j].Updated) {
				return entries[i].Updated.After(entries[j].Updated)
			}
			return entries[i].ID < entries[j].ID
		})
		return truncateEntries(entries, limit), nil
	})
}

// GetDirectorySummary assembles a compact overview of the merged
// catalog: totals, category counts, and the newest additions.
func (a *Aggregator) GetDirectorySummary(ctx context.Context) (catalog.Summary, error) {
	return cachedAs(ctx, a, keySummary, ttlSummary, func(ctx context.Context) (catalog.Summary, error) {
		entries, merged := a.mergedEntries(ctx)

		providers := make(map[string]struct{})
		categories := make(map[string]int)
		for id, api := range merged {
			provider, _ := catalog.SplitAPIID(id)
			providers[provider] = struct{}{}
			for _, cat := range api.PreferredVersion().Info.Categories {
				categories[cat]++
			}
		}

		sort.Slice(entries, func(i, j int) bool {
			ai, aj := merged[entries[i].ID].Added, merged[entries[j].ID].Added
			if !ai.Equal(aj) {
				return ai.After(aj)
			}
			return entries[i].ID < entries[j].ID
		})

		return catalog.Summary{
			TotalAPIs:      len(merged),
			TotalProviders: len(providers),
			Categories:     categories,
			RecentlyAdded:  truncateEntries(entries, summaryRecentSize),
		}, nil
	})
}

// catalogs returns all three source catalogs, each degraded to empty on
// failure. Merge order stays fixed no matter which fetch finishes how.
func (a *Aggregator) catalogs(ctx context.Context) (p, s, c map[string]catalog.API) {
	return a.degradedCatalog(ctx, a.primary),
		a.degradedCatalog(ctx, a.secondary),
		a.degradedCatalog(ctx, a.custom)
}

func (a *Aggregator) degradedCatalog(ctx context.Context, src source.Source) map[string]catalog.API {
	apis, err := a.sourceCatalog(ctx, src)
	if err != nil {
		a.degrade(src.Name(), "listing", err)
		return map[string]catalog.API{}
	}
	return apis
}

// sourceMetrics returns one source's raw metrics document, nil when the
// source cannot provide it.
func (a *Aggregator) sourceMetrics(ctx context.Context, src source.Source) *catalog.Metrics {
	var m catalog.Metrics
	if err := a.fetchJSON(ctx, src, source.PathMetrics, &m); err != nil {
		a.degrade(src.Name(), "metrics", err)
		return nil
	}
	return &m
}

func (a *Aggregator) degrade(name catalog.SourceName, what string, err error) {
	aggregateDegraded.WithLabelValues(string(name)).Inc()
	a.logger.Warn().Err(err).Str("source", string(name)).
		Msgf("Source %s unavailable, contribution degraded to empty", what)
}

// mergedEntries flattens the merged catalog into tagged listing rows,
// returning the merged map alongside for rank computations.
func (a *Aggregator) mergedEntries(ctx context.Context) ([]catalog.ListEntry, map[string]catalog.API) {
	p, s, c := a.catalogs(ctx)
	merged := merge.APILists(merge.APILists(p, s), c)

	entries := make([]catalog.ListEntry, 0, len(merged))
	for id, api := range merged {
		pv := api.PreferredVersion()
		src := catalog.SourcePrimary
		if _, ok := s[id]; ok {
			src = catalog.SourceSecondary
		}
		if _, ok := c[id]; ok {
			src = catalog.SourceCustom
		}
		entries = append(entries, catalog.ListEntry{
			ID:        id,
			Title:     pv.Info.Title,
			Provider:  pv.Info.Provider,
			Preferred: api.Preferred,
			Updated:   pv.Updated,
			Source:    src,
		})
	}
	return entries, merged
}

func truncateEntries(entries []catalog.ListEntry, limit int) []catalog.ListEntry {
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
