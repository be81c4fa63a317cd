package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/cache"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/pagination"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/ratelimit"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/source"
)

// Per-operation cache TTLs, ordered roughly by upstream volatility.
const (
	ttlProviders = time.Hour
	ttlListing   = time.Hour
	ttlEntity    = 30 * time.Minute
	ttlSummary   = 15 * time.Minute
	ttlRanking   = 15 * time.Minute
	ttlPage      = 10 * time.Minute
	ttlMetrics   = 5 * time.Minute
	ttlSearch    = 30 * time.Second
	ttlSpec      = 2 * time.Hour
	ttlEndpoints = time.Hour
)

// Well-known aggregate cache keys.
const (
	keyProviders = "providers"
	keyAllAPIs   = "all_apis"
	keyMetrics   = "metrics"
	keySummary   = "summary"
)

func pageKey(page, limit int) string {
	return fmt.Sprintf("apis:page:%d:%d", page, limit)
}

func searchKey(query string, page, limit int) string {
	return fmt.Sprintf("search:%s:%d:%d", query, page, limit)
}

// Config wires an Aggregator's collaborators. Sources and the cache are
// required; a missing limiter falls back to its named preset.
type Config struct {
	Primary   source.Source
	Secondary source.Source
	Custom    source.Source

	Cache *cache.Store

	PrimaryLimiter   *ratelimit.Limiter
	SecondaryLimiter *ratelimit.Limiter
	CustomLimiter    *ratelimit.Limiter
}

// Aggregator is the process-wide orchestrator over the three catalog
// sources. Construct it once and share it.
type Aggregator struct {
	primary   source.Source
	secondary source.Source
	custom    source.Source

	cache    *cache.Store
	limiters map[catalog.SourceName]*ratelimit.Limiter
	group    singleflight.Group
	logger   zerolog.Logger
}

// New creates an Aggregator.
func New(cfg Config, logger zerolog.Logger) (*Aggregator, error) {
	if cfg.Primary == nil || cfg.Secondary == nil || cfg.Custom == nil {
		return nil, fmt.Errorf("all three catalog sources are required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}

	if cfg.PrimaryLimiter == nil {
		cfg.PrimaryLimiter = ratelimit.New(ratelimit.PresetPrimary, logger)
	}
	if cfg.SecondaryLimiter == nil {
		cfg.SecondaryLimiter = ratelimit.New(ratelimit.PresetSecondary, logger)
	}
	if cfg.CustomLimiter == nil {
		cfg.CustomLimiter = ratelimit.New(ratelimit.PresetCustom, logger)
	}

	return &Aggregator{
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		custom:    cfg.Custom,
		cache:     cfg.Cache,
		limiters: map[catalog.SourceName]*ratelimit.Limiter{
			cfg.Primary.Name():   cfg.PrimaryLimiter,
			cfg.Secondary.Name(): cfg.SecondaryLimiter,
			cfg.Custom.Name():    cfg.CustomLimiter,
		},
		logger: logger.With().Str("component", "aggregator").Logger(),
	}, nil
}

// sources lists the catalogs in increasing merge precedence.
func (a *Aggregator) sources() []source.Source {
	return []source.Source{a.primary, a.secondary, a.custom}
}

func (a *Aggregator) sourceByName(name catalog.SourceName) source.Source {
	switch name {
	case catalog.SourceCustom:
		return a.custom
	case catalog.SourceSecondary:
		return a.secondary
	default:
		return a.primary
	}
}

// cached is the get-or-compute cycle every operation runs through.
// Concurrent computes for the same key are collapsed to one flight.
func (a *Aggregator) cached(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (any, error)) (json.RawMessage, error) {
	if raw, ok := a.cache.Get(key); ok {
		return raw, nil
	}
	v, err, _ := a.group.Do(key, func() (any, error) {
		return a.cache.Warm(ctx, key, fetch, ttl)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// cachedAs runs the get-or-compute cycle and decodes the payload into T.
func cachedAs[T any](ctx context.Context, a *Aggregator, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := a.cached(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode cached %q: %w", key, err)
	}
	return out, nil
}

// limited runs fn through the named source's admission queue.
func (a *Aggregator) limited(ctx context.Context, name catalog.SourceName, fn ratelimit.Task) (any, error) {
	lim, ok := a.limiters[name]
	if !ok {
		return fn(ctx)
	}
	return lim.Execute(ctx, fn)
}

func (a *Aggregator) fetchRaw(ctx context.Context, src source.Source, path string) (json.RawMessage, error) {
	v, err := a.limited(ctx, src.Name(), func(ctx context.Context) (any, error) {
		return src.FetchRaw(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

func (a *Aggregator) fetchJSON(ctx context.Context, src source.Source, path string, out any) error {
	raw, err := a.fetchRaw(ctx, src, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &source.Error{Kind: source.KindValidation, Message: "malformed document at " + path, Err: err}
	}
	return nil
}

// probe runs an existence probe through the source's admission queue.
func (a *Aggregator) probe(ctx context.Context, src source.Source, fn func(context.Context) (bool, error)) (bool, error) {
	v, err := a.limited(ctx, src.Name(), func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// sourceCatalog returns one source's full API list, cached per source.
// The secondary catalog is drained through the pagination strategist
// when its paged listing endpoint is available.
func (a *Aggregator) sourceCatalog(ctx context.Context, src source.Source) (catalog.APIList, error) {
	key := "api:catalog:" + string(src.Name())
	return cachedAs(ctx, a, key, ttlListing, func(ctx context.Context) (catalog.APIList, error) {
		if src.Name() == catalog.SourceSecondary {
			apis, err := a.pagedCatalog(ctx, src)
			if err == nil {
				return apis, nil
			}
			a.logger.Debug().Err(err).Msg("Paged listing unavailable, using full document")
		}
		var apis catalog.APIList
		if err := a.fetchJSON(ctx, src, source.PathList, &apis); err != nil {
			return nil, err
		}
		return apis, nil
	})
}

// pagedCatalog drains a paged listing endpoint adaptively. A source
// without paged support answers with the plain map document, which
// decodes to a nil result set and is reported as unsupported.
func (a *Aggregator) pagedCatalog(ctx context.Context, src source.Source) (catalog.APIList, error) {
	fetch := func(ctx context.Context, page, limit int) (pagination.PageResult[catalog.PagedAPIEntry], error) {
		path := fmt.Sprintf("%s?page=%d&limit=%d", source.PathList, page, limit)
		var doc catalog.PagedAPIList
		if err := a.fetchJSON(ctx, src, path, &doc); err != nil {
			return pagination.PageResult[catalog.PagedAPIEntry]{}, err
		}
		if doc.Results == nil {
			return pagination.PageResult[catalog.PagedAPIEntry]{},
				source.NewValidation("paged listing not supported")
		}
		return pagination.PageResult[catalog.PagedAPIEntry]{
			Items:   doc.Results,
			Total:   doc.Total,
			HasMore: page*limit < doc.Total,
		}, nil
	}

	strat := pagination.NewStrategist(fetch, pagination.Options{}, a.logger)
	res, err := strat.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	apis := make(catalog.APIList, len(res.Data))
	for _, entry := range res.Data {
		apis[entry.ID] = entry.API
	}
	return apis, nil
}
