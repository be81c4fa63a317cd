package directory

import "context"

// aggregateKeys are the fixed well-known keys discarded when the custom
// catalog changes.
var aggregateKeys = []string{keyProviders, keyAllAPIs, keyMetrics, keySummary}

// invalidationPatterns cover every paginated, search, and entity key.
var invalidationPatterns = []string{"apis:*", "search:*", "api:*"}

// InvalidateCustomCatalog discards every cache entry whose content can
// depend on the custom catalog, then re-warms the highest-traffic
// aggregates so the next real request is not a cold miss. Call it after
// an import or removal changes the custom spec directory.
func (a *Aggregator) InvalidateCustomCatalog(ctx context.Context) {
	removed := a.cache.InvalidateKeys(aggregateKeys)
	for _, pattern := range invalidationPatterns {
		removed += a.cache.InvalidatePattern(pattern)
	}
	customInvalidations.Inc()
	a.logger.Info().Int("removed", removed).
		Msg("Custom catalog changed, dependent cache entries invalidated")

	rewarm := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"providers", func(ctx context.Context) error { _, err := a.GetProviders(ctx); return err }},
		{"metrics", func(ctx context.Context) error { _, err := a.GetMetrics(ctx); return err }},
		{"listing", func(ctx context.Context) error { _, err := a.ListAPIs(ctx); return err }},
	}
	for _, w := range rewarm {
		if err := w.fn(ctx); err != nil {
			a.logger.Warn().Err(err).Str("key", w.name).Msg("Cache re-warm failed")
		}
	}
}
