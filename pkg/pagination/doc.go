// Package pagination provides adaptive fetching for paginated catalog
// endpoints, plus pagination argument validation.
//
// The strategist issues a cheap probe call (page 1, limit 10) to
// estimate the dataset size, then picks the cheapest polite strategy:
//
//   - small (fits one chunk): a single call sized to the dataset
//   - moderate (up to 1000): sequential fixed-size chunks with a 50ms
//     politeness delay, returning partial results on failure
//   - large: the first page directly, then remaining pages in
//     bounded-concurrency batches (default 2) with ~200ms between
//     batches, skipping failed pages
//
// Example usage:
//
//	s := pagination.NewStrategist(fetchPage, pagination.Options{
//		ChunkSize: 100,
//		MaxTotal:  500,
//	}, logger)
//	result, err := s.FetchAll(ctx)
//
// Only the probe call can fail the whole fetch; every later failure
// degrades to a partial Result.
package pagination
