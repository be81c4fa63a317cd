// Command directory-proxy serves the aggregated API directory over
// HTTP: merged provider lists, catalog listings, search, and metrics,
// backed by the three-source aggregator and a persistent cache.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/rawveg/openapi-directory-mcp-sub002/internal/config"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/cache"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/directory"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/logging"
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/source"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	store := cache.NewPersistent(cache.PersistentConfig{
		Name:          "directory",
		Dir:           cfg.CacheDir,
		FlushInterval: cfg.CacheFlushInterval,
		Disabled:      !cfg.CacheEnabled,
	}, logger)
	defer store.Destroy()

	primary, err := source.NewHTTPClient(source.HTTPConfig{
		Name:      catalog.SourcePrimary,
		BaseURL:   cfg.PrimaryBaseURL,
		UserAgent: cfg.UserAgent,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Primary source setup failed")
	}
	secondary, err := source.NewHTTPClient(source.HTTPConfig{
		Name:      catalog.SourceSecondary,
		BaseURL:   cfg.SecondaryBaseURL,
		UserAgent: cfg.UserAgent,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Secondary source setup failed")
	}
	custom := source.NewCustomClient(cfg.CustomDir, logger)

	agg, err := directory.New(directory.Config{
		Primary:   primary,
		Secondary: secondary,
		Custom:    custom,
		Cache:     store.Store,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Aggregator setup failed")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/providers", providersHandler(agg))
	mux.HandleFunc("/v2/list", listHandler(agg))
	mux.HandleFunc("/v2/search", searchHandler(agg))
	mux.HandleFunc("/v2/metrics", metricsHandler(agg))
	mux.HandleFunc("/v2/invalidate", invalidateHandler(agg))
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Directory proxy listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func providersHandler(agg *directory.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := agg.GetProviders(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, catalog.ProviderList{Data: providers})
	}
}

func listHandler(agg *directory.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 0)
		result, err := agg.ListAPIsPaginated(r.Context(), page, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

func searchHandler(agg *directory.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 0)
		result, err := agg.SearchAPIs(r.Context(), query, page, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

func metricsHandler(agg *directory.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := agg.GetMetrics(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, m)
	}
}

func invalidateHandler(agg *directory.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		agg.InvalidateCustomCatalog(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Response encoding failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if source.IsNotFound(err) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
