/*
Package config loads application settings from the environment.

PURPOSE:
  One Settings struct for the whole engine, loaded from environment
  variables with development-friendly defaults. A .env file in the working
  directory is loaded first when present, so local runs don't need exported
  variables.

VARIABLES:
  VERITRAIL_ENVIRONMENT        development | staging | production
  VERITRAIL_PORT               HTTP port (default 8080)
  VERITRAIL_DATA_DIR           Root for ledger, index, and uploads (default ./data)
  VERITRAIL_LEDGER_PATH        Ledger file (default <data>/ledger.jsonl)
  VERITRAIL_INDEX_PATH         Lookup index db, empty disables (default <data>/ledger-index.db)
  VERITRAIL_UPLOAD_DIR         Document storage root (default <data>/uploads)
  VERITRAIL_MAX_UPLOAD_SIZE    Bytes (default 10485760)
  VERITRAIL_ALLOWED_EXTENSIONS Comma-separated upload extensions (default .pdf,.png,.jpg,.jpeg,.csv)
  VERITRAIL_CORS_ORIGINS       Comma-separated allowed origins
  VERITRAIL_CACHE_SIZE         Lookup cache capacity (default 1024)
  VERITRAIL_NEGATIVE_TTL       Not-found cache expiry (default 5s)
  VERITRAIL_INTEGRITY_INTERVAL Background audit interval, 0 disables (default 1h)
  VERITRAIL_LOG_LEVEL          debug | info | warn | error
*/
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds every tunable of the engine.
type Settings struct {
	AppName     string
	Version     string
	Environment string

	Port int

	DataDir    string
	LedgerPath string
	IndexPath  string
	UploadDir  string

	MaxUploadSize     int64
	AllowedExtensions []string
	CORSOrigins       []string

	CacheSize   int
	NegativeTTL time.Duration

	IntegrityInterval time.Duration

	LogLevel slog.Level
}

// Load reads settings from the environment, after best-effort loading a
// .env file from the working directory.
func Load() (*Settings, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	dataDir := envStr("VERITRAIL_DATA_DIR", "./data")

	s := &Settings{
		AppName:           "veritrail-ledger-engine",
		Version:           "0.1.0",
		Environment:       envStr("VERITRAIL_ENVIRONMENT", "development"),
		Port:              envInt("VERITRAIL_PORT", 8080),
		DataDir:           dataDir,
		LedgerPath:        envStr("VERITRAIL_LEDGER_PATH", filepath.Join(dataDir, "ledger.jsonl")),
		IndexPath:         envStr("VERITRAIL_INDEX_PATH", filepath.Join(dataDir, "ledger-index.db")),
		UploadDir:         envStr("VERITRAIL_UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
		MaxUploadSize:     int64(envInt("VERITRAIL_MAX_UPLOAD_SIZE", 10*1024*1024)),
		AllowedExtensions: envList("VERITRAIL_ALLOWED_EXTENSIONS", []string{".pdf", ".png", ".jpg", ".jpeg", ".csv"}),
		CORSOrigins:       envList("VERITRAIL_CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		CacheSize:         envInt("VERITRAIL_CACHE_SIZE", 1024),
		NegativeTTL:       envDuration("VERITRAIL_NEGATIVE_TTL", 5*time.Second),
		IntegrityInterval: envDuration("VERITRAIL_INTEGRITY_INTERVAL", time.Hour),
		LogLevel:          parseLevel(envStr("VERITRAIL_LOG_LEVEL", "info")),
	}

	switch s.Environment {
	case "development", "staging", "production":
	default:
		return nil, fmt.Errorf("invalid VERITRAIL_ENVIRONMENT %q", s.Environment)
	}

	// Browsers send the Origin header without a trailing slash.
	for i, origin := range s.CORSOrigins {
		s.CORSOrigins[i] = strings.TrimRight(origin, "/")
	}
	return s, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
