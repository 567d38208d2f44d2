package api

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	ShutdownTimeout time.Duration
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"

	MaxBodyBytes int64 // request body cap in bytes (default: 10 MiB)
	CASRetries   int   // compare-and-swap retry budget (default: 5)

	RateLimitPush  int // POST/DELETE /records per device per minute (default: 60)
	RateLimitPull  int // /records/all and /records/pending per device per minute (default: 120)
	RateLimitOther int // everything else per device per minute (default: 300)
}

// LoadConfig reads configuration from the environment with sensible defaults.
// A .env file in the working directory is loaded first when present.
func LoadConfig() Config {
	godotenv.Load()

	cfg := Config{
		ListenAddr:      ":8080",
		DBPath:          "./data/showsync.db",
		ShutdownTimeout: 30 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",

		MaxBodyBytes: 10 << 20,
		CASRetries:   5,

		RateLimitPush:  60,
		RateLimitPull:  120,
		RateLimitOther: 300,
	}

	if v := os.Getenv("SHOWSYNC_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SHOWSYNC_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SHOWSYNC_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("SHOWSYNC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("SHOWSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SHOWSYNC_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("SHOWSYNC_CAS_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CASRetries = n
		}
	}
	if v := os.Getenv("SHOWSYNC_RATE_LIMIT_PUSH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitPush = n
		}
	}
	if v := os.Getenv("SHOWSYNC_RATE_LIMIT_PULL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitPull = n
		}
	}
	if v := os.Getenv("SHOWSYNC_RATE_LIMIT_OTHER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitOther = n
		}
	}

	return cfg
}
