// Package config loads service settings from the environment and engine
// tuning from a TOML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings of `tg serve`.
type Config struct {
	DatabaseURL string // TASKGRAPH_DATABASE_URL (required)
	GRPCAddr    string // TASKGRAPH_GRPC_ADDR (default ":9090")
	HTTPAddr    string // TASKGRAPH_HTTP_ADDR (default ":8080")
	NATSURL     string // TASKGRAPH_NATS_URL (optional, empty = no events)
	AuthToken   string // TASKGRAPH_AUTH_TOKEN (optional, empty = auth disabled)

	LogLevel  string // TASKGRAPH_LOG_LEVEL (default "info")
	LogFormat string // TASKGRAPH_LOG_FORMAT (default "text"; "json")

	TuningFile        string        // TASKGRAPH_TUNING_FILE (optional TOML; empty = built-in defaults)
	RecomputeDebounce time.Duration // TASKGRAPH_RECOMPUTE_DEBOUNCE (default 500ms)
	ReportCacheSize   int           // TASKGRAPH_REPORT_CACHE_SIZE (default 128)
	ProjectID         string        // TASKGRAPH_PROJECT (project the refresher and sync track; empty = all)

	Sync SyncConfig
}

// SyncConfig selects the JSONL export destinations.
type SyncConfig struct {
	Interval   time.Duration // TASKGRAPH_SYNC_INTERVAL (default 3m; 0 = disabled)
	S3Bucket   string        // TASKGRAPH_SYNC_S3_BUCKET (enables S3 when set)
	S3Endpoint string        // TASKGRAPH_SYNC_S3_ENDPOINT (MinIO and other custom endpoints)
	S3Region   string        // TASKGRAPH_SYNC_S3_REGION (default "us-east-1")
	S3Key      string        // TASKGRAPH_SYNC_S3_KEY (default "taskgraph/backup.jsonl")
	GitRepo    string        // TASKGRAPH_SYNC_GIT_REPO (enables git when set; path to a clone)
	GitFile    string        // TASKGRAPH_SYNC_GIT_FILE (default "taskgraph.jsonl")
	GitBranch  string        // TASKGRAPH_SYNC_GIT_BRANCH (default "main")
}

// Enabled reports whether exports run: a positive interval and at least
// one destination.
func (s SyncConfig) Enabled() bool {
	return s.Interval > 0 && (s.S3Bucket != "" || s.GitRepo != "")
}

// Load reads the configuration from the environment. A .env file in the
// working directory, if present, fills in variables that are not already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		DatabaseURL: os.Getenv("TASKGRAPH_DATABASE_URL"),
		GRPCAddr:    envOrDefault("TASKGRAPH_GRPC_ADDR", ":9090"),
		HTTPAddr:    envOrDefault("TASKGRAPH_HTTP_ADDR", ":8080"),
		NATSURL:     os.Getenv("TASKGRAPH_NATS_URL"),
		AuthToken:   os.Getenv("TASKGRAPH_AUTH_TOKEN"),
		LogLevel:    envOrDefault("TASKGRAPH_LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("TASKGRAPH_LOG_FORMAT", "text"),
		TuningFile:  os.Getenv("TASKGRAPH_TUNING_FILE"),
		ProjectID:   os.Getenv("TASKGRAPH_PROJECT"),
		Sync: SyncConfig{
			S3Bucket:   os.Getenv("TASKGRAPH_SYNC_S3_BUCKET"),
			S3Endpoint: os.Getenv("TASKGRAPH_SYNC_S3_ENDPOINT"),
			S3Region:   envOrDefault("TASKGRAPH_SYNC_S3_REGION", "us-east-1"),
			S3Key:      envOrDefault("TASKGRAPH_SYNC_S3_KEY", "taskgraph/backup.jsonl"),
			GitRepo:    os.Getenv("TASKGRAPH_SYNC_GIT_REPO"),
			GitFile:    envOrDefault("TASKGRAPH_SYNC_GIT_FILE", "taskgraph.jsonl"),
			GitBranch:  envOrDefault("TASKGRAPH_SYNC_GIT_BRANCH", "main"),
		},
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("TASKGRAPH_DATABASE_URL is required")
	}

	var err error
	if c.Sync.Interval, err = envDuration("TASKGRAPH_SYNC_INTERVAL", "3m"); err != nil {
		return nil, err
	}
	if c.RecomputeDebounce, err = envDuration("TASKGRAPH_RECOMPUTE_DEBOUNCE", "500ms"); err != nil {
		return nil, err
	}
	if c.ReportCacheSize, err = envPositiveInt("TASKGRAPH_REPORT_CACHE_SIZE", "128"); err != nil {
		return nil, err
	}
	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func envPositiveInt(key, fallback string) (int, error) {
	v := envOrDefault(key, fallback)
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: must be a positive integer, got %q", key, v)
	}
	return n, nil
}
