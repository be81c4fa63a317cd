package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxRetries  = 3
	maxBodySize        = 32 << 20 // 32 MiB catalog documents
)

// HTTPConfig holds an HTTP catalog client's configuration.
type HTTPConfig struct {
	// Name identifies the source (primary or secondary).
	Name catalog.SourceName

	// BaseURL is the catalog root, e.g. "https://api.apis.guru/v2".
	BaseURL string

	// Timeout bounds a single request attempt.
	Timeout time.Duration

	// MaxRetries bounds retry attempts on retryable failures.
	MaxRetries int

	// UserAgent is sent on every request.
	UserAgent string
}

// HTTPClient is a Source backed by an APIs.guru-shaped HTTP catalog.
// Retryable failures (network, timeout, 5xx) are retried with bounded
// exponential backoff; not-found and validation failures never are.
type HTTPClient struct {
	name       catalog.SourceName
	baseURL    string
	userAgent  string
	maxRetries uint64
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPClient creates an HTTP catalog source.
func NewHTTPClient(cfg HTTPConfig, logger zerolog.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &HTTPClient{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		maxRetries: uint64(cfg.MaxRetries),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("source", string(cfg.Name)).Logger(),
	}, nil
}

// Name implements Source.
func (c *HTTPClient) Name() catalog.SourceName { return c.name }

// FetchRaw implements Source. Absolute URLs pass through unchanged so
// spec documents referenced by swaggerUrl can be fetched directly.
func (c *HTTPClient) FetchRaw(ctx context.Context, path string) (json.RawMessage, error) {
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	var body json.RawMessage
	operation := func() error {
		start := time.Now()
		raw, err := c.get(ctx, url)
		fetchDuration.WithLabelValues(string(c.name)).Observe(time.Since(start).Seconds())
		if err != nil {
			fetchErrors.WithLabelValues(string(c.name), string(Kind(err))).Inc()
			if !retryable(Kind(err)) {
				return backoff.Permanent(err)
			}
			c.logger.Warn().Err(err).Str("url", url).Msg("Fetch attempt failed, will retry")
			return err
		}
		body = raw
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	fetchTotal.WithLabelValues(string(c.name)).Inc()
	return body, nil
}

// get performs one HTTP attempt and classifies any failure.
func (c *HTTPClient) get(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: classifyTransport(err), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Kind: classifyTransport(err), Message: "read response body", Err: err}
	}
	return body, nil
}

// HasProvider implements Source. A 404 answers "no"; only transport or
// server failures are errors.
func (c *HTTPClient) HasProvider(ctx context.Context, provider string) (bool, error) {
	return c.exists(ctx, ProviderPath(provider))
}

// HasAPI implements Source. The probe loads the provider's API map and
// checks identifier membership.
func (c *HTTPClient) HasAPI(ctx context.Context, id string) (bool, error) {
	provider, _ := catalog.SplitAPIID(id)
	ok, err := c.exists(ctx, ProviderPath(provider))
	if err != nil || !ok {
		return false, err
	}

	var apis catalog.ProviderAPIs
	if err := FetchJSON(ctx, c, ProviderPath(provider), &apis); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	_, found := apis.APIs[id]
	return found, nil
}

// exists issues a single HEAD-style probe without retries.
func (c *HTTPClient) exists(ctx context.Context, path string) (bool, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, &Error{Kind: KindValidation, Message: "build request", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &Error{Kind: classifyTransport(err), Message: "probe failed", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	// Some hosts reject HEAD; treat method errors as "unknown but present".
	case resp.StatusCode == http.StatusMethodNotAllowed:
		return true, nil
	default:
		return false, &Error{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}
}
