// Package config defines process configuration and loading.
//
// Conventions:
// - Defaults come from New; Load layers an optional YAML file and env vars.
// - External errors are wrapped via this package's sentinels.
package config

import (
	"github.com/okian/cfstat/internal/domain/aggregate"
)

// Cache backend names accepted in CacheBackend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// APIBaseURL points at the judge API root.
	APIBaseURL string `koanf:"api_base_url"`

	// PageSize sets how many submissions each API page requests.
	PageSize int `koanf:"page_size"`

	// RequestTimeoutSec bounds each individual API call.
	RequestTimeoutSec int `koanf:"request_timeout_sec"`

	// WorkerCeiling caps concurrent account fetches.
	WorkerCeiling int `koanf:"worker_ceiling"`

	// FloorDate is the earliest counted submission date (YYYY-MM-DD, UTC)
	// in incremental mode.
	FloorDate string `koanf:"floor_date"`

	// CacheBackend selects the account cache store: file, sqlite or redis.
	CacheBackend string `koanf:"cache_backend"`
	// CacheDir is the file backend's directory.
	CacheDir string `koanf:"cache_dir"`
	// CacheDBPath is the sqlite backend's database path.
	CacheDBPath string `koanf:"cache_db_path"`
	// Redis backend settings.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// MetricsAddr is the /metrics listen address; empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// Handles lists account handles to summarize. HandlesFile optionally
	// names a file with one handle per line, appended to Handles.
	Handles     []string `koanf:"handles"`
	HandlesFile string   `koanf:"handles_file"`

	// Persons groups handles by owner for person-level aggregation. When
	// set, Handles is ignored and every person's accounts are processed.
	Persons []aggregate.Person `koanf:"persons"`

	// WindowStart and WindowEnd select bounded-window mode when both are
	// set (inclusive YYYY-MM-DD dates); otherwise incremental mode runs.
	WindowStart string `koanf:"window_start"`
	WindowEnd   string `koanf:"window_end"`

	// CSVPath, when set, additionally writes the report as CSV.
	CSVPath string `koanf:"csv_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		APIBaseURL:        "https://codeforces.com/api",
		PageSize:          1000,
		RequestTimeoutSec: 30,
		WorkerCeiling:     6,
		FloorDate:         "2025-11-01",
		CacheBackend:      BackendFile,
		CacheDir:          ".cfstat-cache",
		CacheDBPath:       ".cfstat-cache/cache.db",
		RedisAddr:         "localhost:6379",
		MetricsAddr:       "",
	}
}
