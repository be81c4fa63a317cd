package directory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/cache"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/ratelimit"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/source"
)

// fakeSource is an in-memory Source with scripted documents and probes.
type fakeSource struct {
	name catalog.SourceName

	mu        sync.Mutex
	docs      map[string]string
	failPaths map[string]error
	providers map[string]bool
	apis      map[string]bool
	fetched   []string
}

func newFakeSource(name catalog.SourceName) *fakeSource {
	return &fakeSource{
		name:      name,
		docs:      make(map[string]string),
		failPaths: make(map[string]error),
		providers: make(map[string]bool),
		apis:      make(map[string]bool),
	}
}

func (f *fakeSource) Name() catalog.SourceName { return f.name }

func (f *fakeSource) FetchRaw(ctx context.Context, path string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, path)
	if err, ok := f.failPaths[path]; ok {
		return nil, err
	}
	doc, ok := f.docs[path]
	if !ok {
		return nil, source.NewNotFound(path)
	}
	return json.RawMessage(doc), nil
}

func (f *fakeSource) HasProvider(ctx context.Context, provider string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.providers[provider], nil
}

func (f *fakeSource) HasAPI(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apis[id], nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func (f *fakeSource) setDoc(path, doc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[path] = doc
}

// generous window so tests never block on admission
func testLimiter(name string) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{Name: name, MaxRequests: 10000, Window: time.Minute}, zerolog.Nop())
}

func newTestAggregator(t *testing.T, p, s, c *fakeSource) *Aggregator {
	t.Helper()
	agg, err := New(Config{
		Primary:          p,
		Secondary:        s,
		Custom:           c,
		Cache:            cache.New(cache.Config{Name: "aggregator-test", DefaultTTL: time.Hour}, zerolog.Nop()),
		PrimaryLimiter:   testLimiter("p"),
		SecondaryLimiter: testLimiter("s"),
		CustomLimiter:    testLimiter("c"),
	}, zerolog.Nop())
	require.NoError(t, err)
	return agg
}

func emptySources() (*fakeSource, *fakeSource, *fakeSource) {
	return newFakeSource(catalog.SourcePrimary),
		newFakeSource(catalog.SourceSecondary),
		newFakeSource(catalog.SourceCustom)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	p, s, _ := emptySources()
	_, err := New(Config{Primary: p, Secondary: s}, zerolog.Nop())
	assert.Error(t, err)
}

func TestGetProviders_MergesAllSources(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("providers.json", `{"data":["b.com"]}`)
	s.setDoc("providers.json", `{"data":["a.com"]}`)
	c.setDoc("providers.json", `{"data":["c.com"]}`)
	agg := newTestAggregator(t, p, s, c)

	providers, err := agg.GetProviders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, providers)
}

func TestGetProviders_ServedFromCache(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("providers.json", `{"data":["a.com"]}`)
	agg := newTestAggregator(t, p, s, c)
	ctx := context.Background()

	_, err := agg.GetProviders(ctx)
	require.NoError(t, err)
	before := p.fetchCount()

	_, err = agg.GetProviders(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, p.fetchCount(), "second call must not refetch")
}

func TestGetProviders_DegradesFailedSource(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("providers.json", `{"data":["a.com"]}`)
	s.failPaths["providers.json"] = errors.New("secondary down")
	c.setDoc("providers.json", `{"data":["c.com"]}`)
	agg := newTestAggregator(t, p, s, c)

	providers, err := agg.GetProviders(context.Background())
	require.NoError(t, err, "one source failing must not fail the aggregate")
	assert.Equal(t, []string{"a.com", "c.com"}, providers)
}

func TestGetProvider_CustomWinsWithoutTouchingPrimary(t *testing.T) {
	p, s, c := emptySources()
	c.providers["internal.com"] = true
	c.setDoc("internal.com.json", `{"apis":{"internal.com":{"preferred":"1.0","versions":{}}}}`)
	p.setDoc("internal.com.json", `{"apis":{}}`)
	agg := newTestAggregator(t, p, s, c)

	doc, err := agg.GetProvider(context.Background(), "internal.com")
	require.NoError(t, err)
	assert.Contains(t, doc.APIs, "internal.com")
	assert.Zero(t, p.fetchCount(), "primary must not be consulted when custom hits")
	assert.Zero(t, s.fetchCount())
}

func TestGetProvider_FailedStageFallsThrough(t *testing.T) {
	p, s, c := emptySources()
	c.providers["stripe.com"] = true
	c.failPaths["stripe.com.json"] = errors.New("custom read error")
	p.setDoc("stripe.com.json", `{"apis":{"stripe.com":{"preferred":"v1","versions":{}}}}`)
	agg := newTestAggregator(t, p, s, c)

	doc, err := agg.GetProvider(context.Background(), "stripe.com")
	require.NoError(t, err, "a failed probe-positive stage falls to the next source")
	assert.Contains(t, doc.APIs, "stripe.com")
	assert.Equal(t, 1, p.fetchCount())
}

func TestGetProvider_AllSourcesExhausted(t *testing.T) {
	p, s, c := emptySources()
	agg := newTestAggregator(t, p, s, c)

	_, err := agg.GetProvider(context.Background(), "unknown.com")
	require.Error(t, err)
	assert.True(t, source.IsNotFound(err))
}

func TestGetServices(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("amazonaws.com/services.json", `{"data":["ec2","s3"]}`)
	agg := newTestAggregator(t, p, s, c)

	services, err := agg.GetServices(context.Background(), "amazonaws.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"ec2", "s3"}, services)
}

func TestGetAPI_SelectsRecordFromProviderDocument(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("stripe.com.json",
		`{"apis":{"stripe.com":{"preferred":"2020-08-27","versions":{"2020-08-27":{"info":{"title":"Stripe"}}}}}}`)
	agg := newTestAggregator(t, p, s, c)

	api, err := agg.GetAPI(context.Background(), "stripe.com")
	require.NoError(t, err)
	assert.Equal(t, "2020-08-27", api.Preferred)
	assert.Equal(t, "Stripe", api.PreferredVersion().Info.Title)
}

func TestGetServiceAPI(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("amazonaws.com.json",
		`{"apis":{"amazonaws.com:ec2":{"preferred":"2016-11-15","versions":{"2016-11-15":{"info":{"title":"EC2"}}}}}}`)
	agg := newTestAggregator(t, p, s, c)

	api, err := agg.GetServiceAPI(context.Background(), "amazonaws.com", "ec2")
	require.NoError(t, err)
	assert.Equal(t, "EC2", api.PreferredVersion().Info.Title)
}

func TestGetAPI_MissingIdentifierIsNotFound(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("stripe.com.json", `{"apis":{"stripe.com":{"preferred":"v1","versions":{}}}}`)
	agg := newTestAggregator(t, p, s, c)

	_, err := agg.GetAPI(context.Background(), "stripe.com:billing")
	require.Error(t, err)
	assert.True(t, source.IsNotFound(err))
}

func TestGetOpenAPISpec_FetchedFromWinningSource(t *testing.T) {
	p, s, c := emptySources()
	c.apis["internal.com"] = true
	c.setDoc("internal.com.json",
		`{"apis":{"internal.com":{"preferred":"1.0","versions":{"1.0":{"swaggerUrl":"specs/internal.json","info":{}}}}}}`)
	c.setDoc("specs/internal.json", `{"openapi":"3.0.0","paths":{}}`)
	agg := newTestAggregator(t, p, s, c)

	raw, err := agg.GetOpenAPISpec(context.Background(), "internal.com")
	require.NoError(t, err)
	assert.JSONEq(t, `{"openapi":"3.0.0","paths":{}}`, string(raw))
	assert.Zero(t, p.fetchCount())
}

func TestListAPIs_CustomOverridesConflicts(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("list.json", `{"x.com":{"preferred":"1","versions":{"1":{"info":{"title":"Primary X"}}}},"y.com":{"preferred":"1","versions":{}}}`)
	s.setDoc("list.json", `{"x.com":{"preferred":"2","versions":{"2":{"info":{"title":"Secondary X"}}}}}`)
	c.setDoc("list.json", `{"x.com":{"preferred":"3","versions":{"3":{"info":{"title":"Custom X"}}}}}`)
	agg := newTestAggregator(t, p, s, c)

	apis, err := agg.ListAPIs(context.Background())
	require.NoError(t, err)
	assert.Len(t, apis, 2)
	assert.Equal(t, "3", apis["x.com"].Preferred, "custom wins all conflicts")
}

func TestListAPIs_TotalSourceOutageDegrades(t *testing.T) {
	p, s, c := emptySources()
	p.failPaths["list.json"] = errors.New("primary down")
	s.failPaths["list.json"] = errors.New("secondary down")
	c.setDoc("list.json", `{"internal.com":{"preferred":"1","versions":{}}}`)
	agg := newTestAggregator(t, p, s, c)

	apis, err := agg.ListAPIs(context.Background())
	require.NoError(t, err)
	assert.Len(t, apis, 1)
}

func TestListAPIsPaginated_TagsWinningSource(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("list.json", `{"a.com":{"preferred":"1","versions":{}},"b.com":{"preferred":"1","versions":{}}}`)
	s.setDoc("list.json", `{"b.com":{"preferred":"2","versions":{}}}`)
	c.setDoc("list.json", `{"c.com":{"preferred":"1","versions":{}}}`)
	agg := newTestAggregator(t, p, s, c)

	page, err := agg.ListAPIsPaginated(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	assert.Equal(t, catalog.SourcePrimary, page.Results[0].Source)
	assert.Equal(t, catalog.SourceSecondary, page.Results[1].Source)
	assert.Equal(t, catalog.SourceCustom, page.Results[2].Source)
	assert.Equal(t, 3, page.Pagination.Total)
}

func TestSearchAPIs_CustomEntriesTagged(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("list.json", `{"stripe.com":{"preferred":"1","versions":{"1":{"info":{"x-providerName":"stripe.com"}}}}}`)
	s.setDoc("list.json", `{}`)
	c.setDoc("list.json", `{"stripe.com:internal":{"preferred":"1","versions":{"1":{"info":{"x-providerName":"stripe.com"}}}}}`)
	agg := newTestAggregator(t, p, s, c)

	page, err := agg.SearchAPIs(context.Background(), "stripe.com", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Results, 2)

	bySource := make(map[string]catalog.SourceName)
	for _, r := range page.Results {
		bySource[r.ID] = r.Source
	}
	assert.Equal(t, catalog.SourceCustom, bySource["stripe.com:internal"])
	assert.Equal(t, catalog.SourcePrimary, bySource["stripe.com"])
}

func TestGetMetrics_OverlapCorrected(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("list.json", `{"a.com":{"preferred":"1","versions":{}},"b.com":{"preferred":"1","versions":{}}}`)
	s.setDoc("list.json", `{"b.com":{"preferred":"1","versions":{}},"d.com":{"preferred":"1","versions":{}}}`)
	c.setDoc("list.json", `{}`)
	p.setDoc("metrics.json", `{"numSpecs":2,"numAPIs":2,"numEndpoints":20}`)
	s.setDoc("metrics.json", `{"numSpecs":2,"numAPIs":2,"numEndpoints":10}`)
	agg := newTestAggregator(t, p, s, c)

	m, err := agg.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumAPIs, "2 + 2 with 1 shared identifier")
	assert.GreaterOrEqual(t, m.NumEndpoints, 0)
}

func TestGetPopularAPIs(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("list.json", `{
		"low.com":{"preferred":"1","versions":{"1":{"info":{"x-popularity":1}}}},
		"high.com":{"preferred":"1","versions":{"1":{"info":{"x-popularity":9}}}},
		"mid.com":{"preferred":"1","versions":{"1":{"info":{"x-popularity":5}}}}}`)
	agg := newTestAggregator(t, p, s, c)

	top, err := agg.GetPopularAPIs(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "high.com", top[0].ID)
	assert.Equal(t, "mid.com", top[1].ID)
}

func TestGetRecentlyUpdatedAPIs(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("list.json", `{
		"old.com":{"preferred":"1","versions":{"1":{"updated":"2020-01-01T00:00:00Z","info":{}}}},
		"new.com":{"preferred":"1","versions":{"1":{"updated":"2024-06-01T00:00:00Z","info":{}}}}}`)
	agg := newTestAggregator(t, p, s, c)

	recent, err := agg.GetRecentlyUpdatedAPIs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new.com", recent[0].ID)
}

func TestGetDirectorySummary(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("list.json", `{
		"a.com":{"added":"2024-01-01T00:00:00Z","preferred":"1","versions":{"1":{"info":{"x-apisguru-categories":["cloud"]}}}},
		"a.com:svc":{"added":"2024-03-01T00:00:00Z","preferred":"1","versions":{"1":{"info":{"x-apisguru-categories":["cloud","iam"]}}}}}`)
	agg := newTestAggregator(t, p, s, c)

	sum, err := agg.GetDirectorySummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalAPIs)
	assert.Equal(t, 1, sum.TotalProviders)
	assert.Equal(t, 2, sum.Categories["cloud"])
	require.NotEmpty(t, sum.RecentlyAdded)
	assert.Equal(t, "a.com:svc", sum.RecentlyAdded[0].ID, "newest addition first")
}

func TestSecondaryCatalog_PagedListing(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("list.json", `{}`)
	c.setDoc("list.json", `{}`)
	s.setDoc("list.json?page=1&limit=10",
		`{"results":[{"id":"a.com","api":{"preferred":"1","versions":{}}},{"id":"b.com","api":{"preferred":"1","versions":{}}}],"total":2}`)
	s.setDoc("list.json?page=1&limit=2",
		`{"results":[{"id":"a.com","api":{"preferred":"1","versions":{}}},{"id":"b.com","api":{"preferred":"1","versions":{}}}],"total":2}`)
	agg := newTestAggregator(t, p, s, c)

	apis, err := agg.ListAPIs(context.Background())
	require.NoError(t, err)
	assert.Len(t, apis, 2)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.NotContains(t, s.fetched, "list.json", "paged endpoint must be preferred")
}

func TestInvalidateCustomCatalog_RewarmsAggregates(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("providers.json", `{"data":["a.com"]}`)
	p.setDoc("list.json", `{}`)
	p.setDoc("metrics.json", `{"numSpecs":0,"numAPIs":0,"numEndpoints":0}`)
	s.setDoc("list.json", `{}`)
	c.setDoc("providers.json", `{"data":[]}`)
	c.setDoc("list.json", `{}`)
	agg := newTestAggregator(t, p, s, c)
	ctx := context.Background()

	providers, err := agg.GetProviders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com"}, providers)

	// An import lands a new custom provider.
	c.setDoc("providers.json", `{"data":["imported.com"]}`)
	agg.InvalidateCustomCatalog(ctx)

	fetchesAfterRewarm := c.fetchCount()
	providers, err = agg.GetProviders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "imported.com"}, providers)
	assert.Equal(t, fetchesAfterRewarm, c.fetchCount(), "re-warm must leave a hot cache behind")
}

func TestGetEndpoints(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("stripe.com.json",
		`{"apis":{"stripe.com":{"preferred":"v1","versions":{"v1":{"swaggerUrl":"specs/stripe.json","info":{}}}}}}`)
	p.setDoc("specs/stripe.json", `{
		"openapi":"3.0.0",
		"paths":{
			"/charges":{
				"get":{"summary":"List charges","operationId":"listCharges","tags":["charges"]},
				"post":{"summary":"Create charge","operationId":"createCharge"},
				"parameters":[{"name":"x","in":"query"}]
			},
			"/balance":{"get":{"summary":"Balance","deprecated":true}}
		}}`)
	agg := newTestAggregator(t, p, s, c)

	page, err := agg.GetEndpoints(context.Background(), "stripe.com", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Endpoints, 3)
	assert.Equal(t, "/balance", page.Endpoints[0].Path)
	assert.True(t, page.Endpoints[0].Deprecated)
	assert.Equal(t, "GET", page.Endpoints[1].Method)
	assert.Equal(t, "POST", page.Endpoints[2].Method)
	assert.Equal(t, 3, page.Pagination.Total)
}

func TestGetEndpointDetails(t *testing.T) {
	p, s, c := emptySources()
	p.setDoc("stripe.com.json",
		`{"apis":{"stripe.com":{"preferred":"v1","versions":{"v1":{"swaggerUrl":"specs/stripe.json","info":{}}}}}}`)
	p.setDoc("specs/stripe.json",
		`{"paths":{"/charges":{"post":{"summary":"Create charge","operationId":"createCharge"}}}}`)
	agg := newTestAggregator(t, p, s, c)
	ctx := context.Background()

	ep, err := agg.GetEndpointDetails(ctx, "stripe.com", "post", "/charges")
	require.NoError(t, err)
	assert.Equal(t, "createCharge", ep.OperationID)

	_, err = agg.GetEndpointDetails(ctx, "stripe.com", "delete", "/charges")
	assert.True(t, source.IsNotFound(err))
}
