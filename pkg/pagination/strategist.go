package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// probeLimit is the cheap first call used to estimate dataset size.
	probeLimit = 10

	// DefaultChunkSize is the page size for chunked strategies.
	DefaultChunkSize = 100

	// DefaultConcurrency bounds parallel page fetches.
	DefaultConcurrency = 2

	// largeThreshold switches from sequential to parallel fetching.
	largeThreshold = 1000

	// sequentialDelay is the politeness pause between sequential calls.
	sequentialDelay = 50 * time.Millisecond

	// batchDelay is the pause between parallel batches.
	batchDelay = 200 * time.Millisecond
)

// PageResult is one fetched page. Total is the upstream's reported
// total when known, negative otherwise. HasMore signals further pages
// when the upstream does not report totals.
type PageResult[T any] struct {
	Items   []T
	Total   int
	HasMore bool
}

// FetchFunc fetches one page of at most limit items.
type FetchFunc[T any] func(ctx context.Context, page, limit int) (PageResult[T], error)

// Options tunes a Strategist.
type Options struct {
	// ChunkSize is the page size for chunked strategies (default 100).
	ChunkSize int

	// MaxTotal caps the number of items retrieved. Zero means no cap.
	MaxTotal int

	// Concurrency bounds the parallel strategy (default 2).
	Concurrency int
}

// Result is the outcome of an adaptive fetch.
type Result[T any] struct {
	Data            []T `json:"data"`
	TotalFetched    int `json:"totalFetched"`
	TotalAvailable  int `json:"totalAvailable"`
	ChunksProcessed int `json:"chunksProcessed"`
}

// Strategist estimates dataset size with a cheap probe call and picks
// one of three strategies: a single call for small datasets, sequential
// fixed-size chunks for moderate ones, and bounded-concurrency parallel
// batches for large ones.
type Strategist[T any] struct {
	fetch  FetchFunc[T]
	opts   Options
	logger zerolog.Logger

	// overridable in tests
	seqDelay   time.Duration
	batchPause time.Duration
}

// NewStrategist creates a strategist over a page-fetch capability.
func NewStrategist[T any](fetch FetchFunc[T], opts Options, logger zerolog.Logger) *Strategist[T] {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Strategist[T]{
		fetch:      fetch,
		opts:       opts,
		logger:     logger,
		seqDelay:   sequentialDelay,
		batchPause: batchDelay,
	}
}

// FetchAll probes the dataset size and retrieves (bounded) results with
// the cheapest polite strategy. Failures after the probe degrade to
// partial results rather than errors; only a probe failure is fatal.
func (s *Strategist[T]) FetchAll(ctx context.Context) (Result[T], error) {
	probe, err := s.fetch(ctx, 1, probeLimit)
	if err != nil {
		return Result[T]{}, fmt.Errorf("probe fetch: %w", err)
	}

	total := probe.Total
	target := total
	if s.opts.MaxTotal > 0 && (total < 0 || total > s.opts.MaxTotal) {
		target = s.opts.MaxTotal
	}

	switch {
	case total == 0:
		return Result[T]{Data: []T{}, TotalAvailable: 0}, nil

	case total > 0 && target <= s.opts.ChunkSize:
		s.logger.Debug().Int("total", total).Msg("Pagination strategy: single call")
		return s.fetchSingle(ctx, total, target)

	case total < 0 || target <= largeThreshold:
		s.logger.Debug().Int("total", total).Msg("Pagination strategy: sequential chunks")
		return s.fetchSequential(ctx, total, target)

	default:
		s.logger.Debug().Int("total", total).Msg("Pagination strategy: parallel chunks")
		return s.fetchParallel(ctx, total, target)
	}
}

// fetchSingle issues one call sized to the whole (capped) dataset.
func (s *Strategist[T]) fetchSingle(ctx context.Context, total, target int) (Result[T], error) {
	page, err := s.fetch(ctx, 1, target)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Single-call fetch failed")
		return Result[T]{Data: []T{}, TotalAvailable: total}, nil
	}
	return Result[T]{
		Data:            page.Items,
		TotalFetched:    len(page.Items),
		TotalAvailable:  total,
		ChunksProcessed: 1,
	}, nil
}

// fetchSequential advances page by page in fixed-size chunks with a
// politeness delay, stopping at hasMore=false, the target, or the first
// failure (partial success, not an error).
func (s *Strategist[T]) fetchSequential(ctx context.Context, total, target int) (Result[T], error) {
	result := Result[T]{Data: []T{}, TotalAvailable: total}

	for page := 1; ; page++ {
		limit := s.opts.ChunkSize
		if target > 0 {
			if remaining := target - len(result.Data); remaining < limit {
				// The final chunk requests exactly the remaining slots.
				limit = remaining
			}
		}
		if limit <= 0 {
			break
		}

		pr, err := s.fetch(ctx, page, limit)
		if err != nil {
			s.logger.Warn().Err(err).Int("page", page).Msg("Sequential fetch stopped early")
			break
		}

		result.Data = append(result.Data, pr.Items...)
		result.ChunksProcessed++

		if target > 0 && len(result.Data) >= target {
			break
		}
		if len(pr.Items) < limit {
			break
		}
		if pr.Total >= 0 && !pr.HasMore && len(result.Data) >= pr.Total {
			break
		}

		select {
		case <-ctx.Done():
			result.TotalFetched = len(result.Data)
			return result, nil
		case <-time.After(s.seqDelay):
		}
	}

	result.TotalFetched = len(result.Data)
	if total < 0 {
		result.TotalAvailable = result.TotalFetched
	}
	return result, nil
}

// fetchParallel fetches the first page directly, then the remaining
// pages in bounded-concurrency batches with an inter-batch delay.
// Failed pages are logged and skipped.
func (s *Strategist[T]) fetchParallel(ctx context.Context, total, target int) (Result[T], error) {
	chunk := s.opts.ChunkSize
	totalPages := (target + chunk - 1) / chunk

	var mu sync.Mutex
	pages := make([][]T, totalPages+1)
	chunks := 0

	first, err := s.fetch(ctx, 1, chunk)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Parallel fetch failed on first page")
		return Result[T]{Data: []T{}, TotalAvailable: total}, nil
	}
	pages[1] = first.Items
	chunks++

	for batchStart := 2; batchStart <= totalPages; batchStart += s.opts.Concurrency {
		batchEnd := batchStart + s.opts.Concurrency - 1
		if batchEnd > totalPages {
			batchEnd = totalPages
		}

		var g errgroup.Group
		for page := batchStart; page <= batchEnd; page++ {
			page := page
			g.Go(func() error {
				pr, err := s.fetch(ctx, page, chunk)
				if err != nil {
					// Partial-failure-tolerant join: log and skip.
					s.logger.Warn().Err(err).Int("page", page).Msg("Parallel page fetch failed")
					return nil
				}
				mu.Lock()
				pages[page] = pr.Items
				chunks++
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if batchEnd < totalPages {
			select {
			case <-ctx.Done():
				batchStart = totalPages // stop issuing batches
			case <-time.After(s.batchPause):
			}
		}
	}

	result := Result[T]{Data: []T{}, TotalAvailable: total, ChunksProcessed: chunks}
	for _, items := range pages {
		result.Data = append(result.Data, items...)
	}
	if target > 0 && len(result.Data) > target {
		result.Data = result.Data[:target]
	}
	result.TotalFetched = len(result.Data)
	return result, nil
}
