package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/pagination"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/source"
)

// httpMethods are the operation keys recognized inside an OpenAPI path
// item. Everything else (parameters, servers, extensions) is skipped.
var httpMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

type operationObject struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	OperationID string   `json:"operationId"`
	Tags        []string `json:"tags"`
	Deprecated  bool     `json:"deprecated"`
}

// GetEndpoints returns one page of the endpoints extracted from an
// API's preferred-version spec, ordered by path then method.
func (a *Aggregator) GetEndpoints(ctx context.Context, id string, page, limit int) (catalog.EndpointPage, error) {
	page, limit = pagination.Validate(page, limit)
	key := fmt.Sprintf("api:endpoints:%s:%d:%d", id, page, limit)
	return cachedAs(ctx, a, key, ttlEndpoints, func(ctx context.Context) (catalog.EndpointPage, error) {
		endpoints, err := a.allEndpoints(ctx, id)
		if err != nil {
			return catalog.EndpointPage{}, err
		}
		start, end := pageBounds(len(endpoints), page, limit)
		return catalog.EndpointPage{
			Endpoints:  endpoints[start:end],
			Pagination: catalog.NewPageInfo(page, limit, len(endpoints)),
		}, nil
	})
}

// GetEndpointDetails returns one operation matched by method and path.
func (a *Aggregator) GetEndpointDetails(ctx context.Context, id, method, path string) (catalog.Endpoint, error) {
	endpoints, err := a.allEndpoints(ctx, id)
	if err != nil {
		return catalog.Endpoint{}, err
	}

	m := strings.ToUpper(strings.TrimSpace(method))
	for _, ep := range endpoints {
		if ep.Method == m && ep.Path == path {
			return ep, nil
		}
	}
	return catalog.Endpoint{}, source.NewNotFound(fmt.Sprintf("endpoint %s %s of %s", m, path, id))
}

// allEndpoints extracts and caches the full endpoint list of one API.
func (a *Aggregator) allEndpoints(ctx context.Context, id string) ([]catalog.Endpoint, error) {
	key := "api:endpoints:" + id
	return cachedAs(ctx, a, key, ttlEndpoints, func(ctx context.Context) ([]catalog.Endpoint, error) {
		doc, err := a.GetOpenAPISpec(ctx, id)
		if err != nil {
			return nil, err
		}
		return extractEndpoints(doc)
	})
}

// extractEndpoints flattens an OpenAPI document's paths into endpoint
// rows. Path items that are not operation objects are tolerated.
func extractEndpoints(doc json.RawMessage) ([]catalog.Endpoint, error) {
	var spec struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(doc, &spec); err != nil {
		return nil, &source.Error{
			Kind: source.KindValidation, Message: "malformed OpenAPI document", Err: err}
	}

	endpoints := make([]catalog.Endpoint, 0, len(spec.Paths))
	for path, item := range spec.Paths {
		for _, method := range httpMethods {
			rawOp, ok := item[method]
			if !ok {
				continue
			}
			var op operationObject
			if err := json.Unmarshal(rawOp, &op); err != nil {
				continue
			}
			endpoints = append(endpoints, catalog.Endpoint{
				Method:      strings.ToUpper(method),
				Path:        path,
				Summary:     op.Summary,
				Description: op.Description,
				OperationID: op.OperationID,
				Tags:        op.Tags,
				Deprecated:  op.Deprecated,
			})
		}
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].Method < endpoints[j].Method
	})
	return endpoints, nil
}

// pageBounds clamps a [start, end) window onto n items.
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
