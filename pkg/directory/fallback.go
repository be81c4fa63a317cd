package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/source"
)

// StageOutcome classifies what one source contributed to a fallback
// chain.
type StageOutcome string

const (
	// StageMiss means the existence probe answered no; the stage was
	// skipped without error.
	StageMiss StageOutcome = "miss"

	// StageFailed means the probe passed (or errored) but the stage
	// could not produce a result; the chain falls through.
	StageFailed StageOutcome = "failed"

	// StageHit means the stage produced the result.
	StageHit StageOutcome = "hit"
)

type probeFunc func(ctx context.Context, src source.Source) (bool, error)
type fetchFunc func(ctx context.Context, src source.Source) (json.RawMessage, error)

// fallback walks custom, then secondary, then primary. The first two
// stages are probe-gated; the primary is the catalog of record and is
// always attempted without a probe. Only the primary's own failure
// surfaces to the caller.
func (a *Aggregator) fallback(ctx context.Context, what string, probe probeFunc, fetch fetchFunc) (json.RawMessage, catalog.SourceName, error) {
	for _, src := range []source.Source{a.custom, a.secondary} {
		name := string(src.Name())

		ok, err := probe(ctx, src)
		if err != nil {
			fallbackStages.WithLabelValues(name, string(StageFailed)).Inc()
			a.logger.Warn().Err(err).Str("source", name).Str("entity", what).
				Msg("Existence probe failed, stage skipped")
			continue
		}
		if !ok {
			fallbackStages.WithLabelValues(name, string(StageMiss)).Inc()
			continue
		}

		raw, err := fetch(ctx, src)
		if err != nil {
			fallbackStages.WithLabelValues(name, string(StageFailed)).Inc()
			a.logger.Warn().Err(err).Str("source", name).Str("entity", what).
				Msg("Fetch failed after positive probe, falling through")
			continue
		}
		fallbackStages.WithLabelValues(name, string(StageHit)).Inc()
		return raw, src.Name(), nil
	}

	name := string(catalog.SourcePrimary)
	raw, err := fetch(ctx, a.primary)
	if err != nil {
		fallbackStages.WithLabelValues(name, string(StageFailed)).Inc()
		return nil, "", fmt.Errorf("%s: %w", what, err)
	}
	fallbackStages.WithLabelValues(name, string(StageHit)).Inc()
	return raw, catalog.SourcePrimary, nil
}

// GetProvider returns one provider's API map from the first source that
// has it.
func (a *Aggregator) GetProvider(ctx context.Context, provider string) (catalog.ProviderAPIs, error) {
	key := "api:provider:" + provider
	return cachedAs(ctx, a, key, ttlEntity, func(ctx context.Context) (catalog.ProviderAPIs, error) {
		raw, _, err := a.fallback(ctx, "provider "+provider,
			func(ctx context.Context, src source.Source) (bool, error) {
				return a.probe(ctx, src, func(ctx context.Context) (bool, error) {
					return src.HasProvider(ctx, provider)
				})
			},
			func(ctx context.Context, src source.Source) (json.RawMessage, error) {
				return a.fetchRaw(ctx, src, source.ProviderPath(provider))
			})
		if err != nil {
			return catalog.ProviderAPIs{}, err
		}

		var doc catalog.ProviderAPIs
		if err := json.Unmarshal(raw, &doc); err != nil {
			return catalog.ProviderAPIs{}, &source.Error{
				Kind: source.KindValidation, Message: "malformed provider document", Err: err}
		}
		return doc, nil
	})
}

// GetServices returns the service names published by one provider.
func (a *Aggregator) GetServices(ctx context.Context, provider string) ([]string, error) {
	key := "api:services:" + provider
	return cachedAs(ctx, a, key, ttlEntity, func(ctx context.Context) ([]string, error) {
		raw, _, err := a.fallback(ctx, "services "+provider,
			func(ctx context.Context, src source.Source) (bool, error) {
				return a.probe(ctx, src, func(ctx context.Context) (bool, error) {
					return src.HasProvider(ctx, provider)
				})
			},
			func(ctx context.Context, src source.Source) (json.RawMessage, error) {
				return a.fetchRaw(ctx, src, source.ServicesPath(provider))
			})
		if err != nil {
			return nil, err
		}

		var doc catalog.ServiceList
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &source.Error{
				Kind: source.KindValidation, Message: "malformed services document", Err: err}
		}
		return doc.Data, nil
	})
}

// GetAPI returns one API record by identifier ("provider" or
// "provider:service").
func (a *Aggregator) GetAPI(ctx context.Context, id string) (catalog.API, error) {
	key := "api:entry:" + id
	return cachedAs(ctx, a, key, ttlEntity, func(ctx context.Context) (catalog.API, error) {
		api, _, err := a.resolveAPI(ctx, id)
		return api, err
	})
}

// GetServiceAPI returns the record of one provider service.
func (a *Aggregator) GetServiceAPI(ctx context.Context, provider, service string) (catalog.API, error) {
	return a.GetAPI(ctx, catalog.APIID(provider, service))
}

// GetOpenAPISpec returns the raw spec document of an API's preferred
// version, fetched from the same source that supplied the record.
func (a *Aggregator) GetOpenAPISpec(ctx context.Context, id string) (json.RawMessage, error) {
	key := "api:spec:" + id
	return a.cached(ctx, key, ttlSpec, func(ctx context.Context) (any, error) {
		api, name, err := a.resolveAPI(ctx, id)
		if err != nil {
			return nil, err
		}
		specURL := api.PreferredVersion().SwaggerURL
		if specURL == "" {
			return nil, source.NewValidation("api " + id + " has no spec URL")
		}
		return a.fetchRaw(ctx, a.sourceByName(name), specURL)
	})
}

// resolveAPI runs the fallback chain for one API record and reports the
// winning source, which a spec fetch needs afterwards.
func (a *Aggregator) resolveAPI(ctx context.Context, id string) (catalog.API, catalog.SourceName, error) {
	provider, _ := catalog.SplitAPIID(id)

	raw, name, err := a.fallback(ctx, "api "+id,
		func(ctx context.Context, src source.Source) (bool, error) {
			return a.probe(ctx, src, func(ctx context.Context) (bool, error) {
				return src.HasAPI(ctx, id)
			})
		},
		func(ctx context.Context, src source.Source) (json.RawMessage, error) {
			var doc catalog.ProviderAPIs
			if err := a.fetchJSON(ctx, src, source.ProviderPath(provider), &doc); err != nil {
				return nil, err
			}
			api, ok := doc.APIs[id]
			if !ok {
				return nil, source.NewNotFound("api " + id)
			}
			return json.Marshal(api)
		})
	if err != nil {
		return catalog.API{}, "", err
	}

	var api catalog.API
	if err := json.Unmarshal(raw, &api); err != nil {
		return catalog.API{}, "", &source.Error{
			Kind: source.KindValidation, Message: "malformed api record", Err: err}
	}
	return api, name, nil
}
