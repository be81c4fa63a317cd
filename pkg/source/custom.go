package source

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
)

// ManifestFile is the index of a locally-imported custom catalog:
// a JSON object mapping API identifier to its catalog record.
const ManifestFile = "manifest.json"

// CustomClient is a Source backed by a local spec directory written by
// the import tooling. The directory's manifest is read on demand, so an
// import visible on disk is visible to the next call without restarts.
type CustomClient struct {
	dir    string
	logger zerolog.Logger
}

// NewCustomClient creates a custom catalog source over dir. A missing
// directory is valid: the catalog is simply empty until an import.
func NewCustomClient(dir string, logger zerolog.Logger) *CustomClient {
	return &CustomClient{
		dir:    dir,
		logger: logger.With().Str("source", string(catalog.SourceCustom)).Logger(),
	}
}

// Name implements Source.
func (c *CustomClient) Name() catalog.SourceName { return catalog.SourceCustom }

// FetchRaw implements Source, synthesizing the well-known catalog
// documents from the manifest.
func (c *CustomClient) FetchRaw(ctx context.Context, path string) (json.RawMessage, error) {
	apis, err := c.loadManifest()
	if err != nil {
		return nil, err
	}

	path = strings.TrimLeft(path, "/")
	switch {
	case path == PathProviders:
		return marshalDoc(catalog.ProviderList{Data: providersOf(apis)})

	case path == PathList:
		return marshalDoc(apis)

	case path == PathMetrics:
		return marshalDoc(metricsOf(apis))

	case strings.HasSuffix(path, "/services.json"):
		provider := strings.TrimSuffix(path, "/services.json")
		return marshalDoc(catalog.ServiceList{Data: servicesOf(apis, provider)})

	case strings.HasSuffix(path, ".json"):
		provider := strings.TrimSuffix(path, ".json")
		filtered := providerAPIs(apis, provider)
		if len(filtered) == 0 {
			return nil, NewNotFound("provider " + provider)
		}
		return marshalDoc(catalog.ProviderAPIs{APIs: filtered})

	default:
		// Spec payloads imported alongside the manifest.
		return c.readSpecFile(path)
	}
}

// HasProvider implements Source against the manifest only.
func (c *CustomClient) HasProvider(ctx context.Context, provider string) (bool, error) {
	apis, err := c.loadManifest()
	if err != nil {
		return false, err
	}
	return len(providerAPIs(apis, provider)) > 0, nil
}

// HasAPI implements Source against the manifest only.
func (c *CustomClient) HasAPI(ctx context.Context, id string) (bool, error) {
	apis, err := c.loadManifest()
	if err != nil {
		return false, err
	}
	_, ok := apis[id]
	return ok, nil
}

// loadManifest reads the manifest fresh. A missing manifest is an empty
// catalog; a corrupt one is a validation error (the import tooling owns
// fixing it).
func (c *CustomClient) loadManifest() (catalog.APIList, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return catalog.APIList{}, nil
		}
		return nil, &Error{Kind: KindUnknown, Message: "read manifest", Err: err}
	}

	var apis catalog.APIList
	if err := json.Unmarshal(data, &apis); err != nil {
		c.logger.Warn().Err(err).Msg("Custom manifest corrupt")
		return nil, &Error{Kind: KindValidation, Message: "corrupt manifest", Err: err}
	}
	return apis, nil
}

// readSpecFile serves an imported spec document relative to the
// catalog directory. Path traversal outside the directory is rejected.
func (c *CustomClient) readSpecFile(path string) (json.RawMessage, error) {
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, NewValidation("invalid spec path " + path)
	}

	data, err := os.ReadFile(filepath.Join(c.dir, clean))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewNotFound("spec " + path)
		}
		return nil, &Error{Kind: KindUnknown, Message: "read spec", Err: err}
	}
	return data, nil
}

func providersOf(apis catalog.APIList) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for id, api := range apis {
		name := api.PreferredVersion().Info.Provider
		if name == "" {
			name, _ = catalog.SplitAPIID(id)
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func servicesOf(apis catalog.APIList, provider string) []string {
	out := make([]string, 0)
	for id := range providerAPIs(apis, provider) {
		if _, service := catalog.SplitAPIID(id); service != "" {
			out = append(out, service)
		}
	}
	sort.Strings(out)
	return out
}

func providerAPIs(apis catalog.APIList, provider string) map[string]catalog.API {
	out := make(map[string]catalog.API)
	for id, api := range apis {
		p, _ := catalog.SplitAPIID(id)
		if p == provider || api.PreferredVersion().Info.Provider == provider {
			out[id] = api
		}
	}
	return out
}

func metricsOf(apis catalog.APIList) catalog.Metrics {
	specs := 0
	for _, api := range apis {
		specs += len(api.Versions)
	}
	return catalog.Metrics{
		NumAPIs:      len(apis),
		NumSpecs:     specs,
		NumProviders: len(providersOf(apis)),
	}
}

func marshalDoc(doc any) (json.RawMessage, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: "encode document", Err: err}
	}
	return data, nil
}
