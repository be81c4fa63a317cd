package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawveg/openapi-directory-mcp-sub002/internal/testutil"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/cache"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/directory"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/source"
)

// setupTestAggregator wires an aggregator against two mock upstreams
// and an empty custom directory.
func setupTestAggregator(t *testing.T) (*directory.Aggregator, *testutil.MockDirectory) {
	t.Helper()

	mock := testutil.NewMockDirectory()
	t.Cleanup(mock.Close)

	newSource := func(name catalog.SourceName) source.Source {
		src, err := source.NewHTTPClient(source.HTTPConfig{
			Name:       name,
			BaseURL:    mock.URL(),
			Timeout:    2 * time.Second,
			MaxRetries: 1,
		}, zerolog.Nop())
		require.NoError(t, err)
		return src
	}

	agg, err := directory.New(directory.Config{
		Primary:   newSource(catalog.SourcePrimary),
		Secondary: newSource(catalog.SourceSecondary),
		Custom:    source.NewCustomClient(t.TempDir(), zerolog.Nop()),
		Cache:     cache.New(cache.Config{Name: "proxy-test"}, zerolog.Nop()),
	}, zerolog.Nop())
	require.NoError(t, err)

	return agg, mock
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestProvidersEndpoint(t *testing.T) {
	agg, mock := setupTestAggregator(t)
	mock.SetJSON("/providers.json", `{"data":["a.com","b.com"]}`)

	req := httptest.NewRequest(http.MethodGet, "/v2/providers", nil)
	w := httptest.NewRecorder()
	providersHandler(agg)(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var doc catalog.ProviderList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, []string{"a.com", "b.com"}, doc.Data)
}

func TestListEndpoint_PaginationParams(t *testing.T) {
	agg, mock := setupTestAggregator(t)
	mock.SetJSON("/list.json",
		`{"a.com":{"preferred":"1","versions":{}},"b.com":{"preferred":"1","versions":{}},"c.com":{"preferred":"1","versions":{}}}`)

	req := httptest.NewRequest(http.MethodGet, "/v2/list?page=2&limit=2", nil)
	w := httptest.NewRecorder()
	listHandler(agg)(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var page catalog.ListPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Pagination.Page)
	assert.Equal(t, 3, page.Pagination.Total)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "c.com", page.Results[0].ID)
}

func TestInvalidateEndpoint_RequiresPost(t *testing.T) {
	agg, _ := setupTestAggregator(t)

	req := httptest.NewRequest(http.MethodGet, "/v2/invalidate", nil)
	w := httptest.NewRecorder()
	invalidateHandler(agg)(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v2/list?page=3&limit=abc", nil)

	assert.Equal(t, 3, queryInt(req, "page", 1))
	assert.Equal(t, 20, queryInt(req, "limit", 20), "unparsable values fall back")
	assert.Equal(t, 1, queryInt(req, "missing", 1))
}
