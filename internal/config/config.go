// Package config loads process configuration from the environment.
// Every key lives under the OPENAPI_DIRECTORY prefix, so e.g.
// primary.base_url is set via OPENAPI_DIRECTORY_PRIMARY_BASE_URL.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default upstream catalogs.
const (
	DefaultPrimaryBaseURL   = "https://api.apis.guru/v2"
	DefaultSecondaryBaseURL = "https://api.openapidirectory.com/v2"
)

// Config is the full process configuration.
type Config struct {
	// Port is the HTTP listen port of the proxy daemon.
	Port int

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogPretty switches from JSON to console output.
	LogPretty bool

	// CacheDir is where persistent snapshots and the custom catalog live.
	CacheDir string

	// CacheEnabled turns the whole cache layer into a no-op when false.
	CacheEnabled bool

	// CacheFlushInterval is the persistent store's maintenance period.
	CacheFlushInterval time.Duration

	// PrimaryBaseURL is the catalog of record.
	PrimaryBaseURL string

	// SecondaryBaseURL is the enhanced secondary catalog.
	SecondaryBaseURL string

	// CustomDir is the locally-imported custom spec directory.
	CustomDir string

	// UserAgent is sent on every upstream request.
	UserAgent string
}

// Load reads the configuration from the environment, applying defaults
// for every unset key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPENAPI_DIRECTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.flush_interval", "10m")
	v.SetDefault("primary.base_url", DefaultPrimaryBaseURL)
	v.SetDefault("secondary.base_url", DefaultSecondaryBaseURL)
	v.SetDefault("custom.dir", "")
	v.SetDefault("user_agent", "openapi-directory-proxy/1.0")

	cfg := &Config{
		Port:               v.GetInt("port"),
		LogLevel:           v.GetString("log.level"),
		LogPretty:          v.GetBool("log.pretty"),
		CacheDir:           v.GetString("cache.dir"),
		CacheEnabled:       v.GetBool("cache.enabled"),
		CacheFlushInterval: v.GetDuration("cache.flush_interval"),
		PrimaryBaseURL:     v.GetString("primary.base_url"),
		SecondaryBaseURL:   v.GetString("secondary.base_url"),
		CustomDir:          v.GetString("custom.dir"),
		UserAgent:          v.GetString("user_agent"),
	}

	if cfg.CustomDir == "" {
		cfg.CustomDir = filepath.Join(cfg.CacheDir, "custom")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.PrimaryBaseURL == "" {
		return nil, fmt.Errorf("primary.base_url must not be empty")
	}
	return cfg, nil
}

// defaultCacheDir resolves the per-user cache directory, falling back
// to a temp path when the platform gives us none.
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "openapi-directory")
}
