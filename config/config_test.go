package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritrail/ledger-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "veritrail-ledger-engine", s.AppName)
	assert.Equal(t, "development", s.Environment)
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, "./data", s.DataDir)
	assert.Contains(t, s.LedgerPath, "ledger.jsonl")
	assert.Equal(t, int64(10*1024*1024), s.MaxUploadSize)
	assert.Equal(t, []string{".pdf", ".png", ".jpg", ".jpeg", ".csv"}, s.AllowedExtensions)
	assert.Equal(t, 1024, s.CacheSize)
	assert.Equal(t, 5*time.Second, s.NegativeTTL)
	assert.Equal(t, time.Hour, s.IntegrityInterval)
	assert.Equal(t, slog.LevelInfo, s.LogLevel)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("VERITRAIL_ENVIRONMENT", "production")
	t.Setenv("VERITRAIL_PORT", "9090")
	t.Setenv("VERITRAIL_MAX_UPLOAD_SIZE", "1048576")
	t.Setenv("VERITRAIL_NEGATIVE_TTL", "30s")
	t.Setenv("VERITRAIL_INTEGRITY_INTERVAL", "15m")
	t.Setenv("VERITRAIL_LOG_LEVEL", "debug")

	s, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "production", s.Environment)
	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, int64(1048576), s.MaxUploadSize)
	assert.Equal(t, 30*time.Second, s.NegativeTTL)
	assert.Equal(t, 15*time.Minute, s.IntegrityInterval)
	assert.Equal(t, slog.LevelDebug, s.LogLevel)
}

func TestLoad_RejectsUnknownEnvironment(t *testing.T) {
	t.Setenv("VERITRAIL_ENVIRONMENT", "prod")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_TrimsTrailingSlashFromOrigins(t *testing.T) {
	t.Setenv("VERITRAIL_CORS_ORIGINS", "https://verify.example.com/, http://localhost:3000")

	s, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://verify.example.com", "http://localhost:3000"}, s.CORSOrigins)
}

func TestLoad_CustomPathsFollowDataDir(t *testing.T) {
	t.Setenv("VERITRAIL_DATA_DIR", "/var/lib/veritrail")

	s, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/veritrail/ledger.jsonl", s.LedgerPath)
	assert.Equal(t, "/var/lib/veritrail/ledger-index.db", s.IndexPath)
	assert.Equal(t, "/var/lib/veritrail/uploads", s.UploadDir)
}
