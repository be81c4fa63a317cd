// Package source defines the upstream catalog collaborator boundary:
// a raw JSON fetch plus narrow existence probes, with typed error
// classification. Implementations cover the two HTTP catalogs and the
// locally-imported custom catalog.
package source

import (
	"context"
	"encoding/json"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
)

// Well-known catalog paths served by every source.
const (
	PathProviders = "providers.json"
	PathList      = "list.json"
	PathMetrics   = "metrics.json"
)

// ProviderPath returns the catalog path of one provider's API map.
func ProviderPath(provider string) string {
	return provider + ".json"
}

// ServicesPath returns the catalog path of one provider's service list.
func ServicesPath(provider string) string {
	return provider + "/services.json"
}

// Source is the collaborator interface the orchestrator depends on.
// How a source is reached (HTTP, local file) is an implementation
// concern; the orchestrator only sees raw JSON and probes.
type Source interface {
	// Name identifies the source in logs and merge tagging.
	Name() catalog.SourceName

	// FetchRaw retrieves the raw JSON document at a catalog path.
	FetchRaw(ctx context.Context, path string) (json.RawMessage, error)

	// HasProvider is a cheap existence probe for a provider.
	HasProvider(ctx context.Context, provider string) (bool, error)

	// HasAPI is a cheap existence probe for an API identifier.
	HasAPI(ctx context.Context, id string) (bool, error)
}

// FetchJSON fetches a catalog path and decodes it into out.
func FetchJSON(ctx context.Context, s Source, path string, out any) error {
	raw, err := s.FetchRaw(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindValidation, Message: "malformed document at " + path, Err: err}
	}
	return nil
}
