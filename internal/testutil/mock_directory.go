// Package testutil provides testing utilities for the directory engine.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mock catalog endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockDirectory is a configurable mock upstream catalog server.
type MockDirectory struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount int
	PathCounts   map[string]int
	LastHeader   http.Header
}

// NewMockDirectory creates a mock catalog server. Paths without a
// configured handler answer 404.
func NewMockDirectory() *MockDirectory {
	mock := &MockDirectory{
		handlers:   make(map[string]http.HandlerFunc),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDirectory) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDirectory) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockDirectory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.LastHeader = nil
}

// Requests returns how many times a path was hit.
func (m *MockDirectory) Requests(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// SetHandler sets a custom handler for a specific path.
func (m *MockDirectory) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockDirectory) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp.Body))
	})
}

// SetJSON configures a 200 JSON response for a path.
func (m *MockDirectory) SetJSON(path, body string) {
	m.SetResponse(path, MockResponse{StatusCode: http.StatusOK, Body: body})
}

// FailTimes configures a path to answer with status for the first n
// requests, then delegate to a JSON body. Used for retry tests.
func (m *MockDirectory) FailTimes(path string, n, status int, body string) {
	var mu sync.Mutex
	failures := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		failures++
		shouldFail := failures <= n
		mu.Unlock()

		if shouldFail {
			http.Error(w, http.StatusText(status), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}
