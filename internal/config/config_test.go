package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"LISTEN_ADDR", "ENV", "LOG_LEVEL", "STORE_DRIVER", "DB_PATH", "MONGO_URI",
	"MONGO_DATABASE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "JWT_SECRET",
	"TOKEN_TTL", "BALANCE_CACHE_TTL", "STORE_MAX_RETRIES", "AUDIT_SCHEDULE",
	"CORS_ALLOWED_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// clearEnv blanks every key so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "./data/groupledger.db", cfg.DBPath)
	assert.Equal(t, "groupledger", cfg.MongoDatabase)
	assert.Equal(t, 5, cfg.StoreMaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.BalanceCacheTTL)
	assert.Equal(t, "@every 1h", cfg.AuditSchedule)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.IsProduction())
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("ENV", "production")
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("BALANCE_CACHE_TTL", "30s")
	t.Setenv("STORE_MAX_RETRIES", "9")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.BalanceCacheTTL)
	assert.Equal(t, 9, cfg.StoreMaxRetries)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 1e-9)
	assert.Equal(t, 5, cfg.RateLimitBurst)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKEN_TTL", "forever")
	t.Setenv("REDIS_DB", "one")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_TTL")
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nLISTEN_ADDR=:7000\n"), 0o600))
	t.Setenv("LISTEN_ADDR", ":7100")
	// godotenv skips keys that exist, even empty ones. Setenv first so the
	// original value is restored after the test.
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, ":7100", cfg.ListenAddr, "environment wins over the file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:             "development",
			StoreDriver:     DriverSQLite,
			DBPath:          "test.db",
			StoreMaxRetries: 5,
			JWTSecret:       "secret",
			TokenTTL:        time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT_SECRET is required"},
		{name: "short secret in production", mutate: func(c *Config) { c.Env = "production" }, wantErr: "at least 32 bytes"},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "postgres" }, wantErr: "STORE_DRIVER"},
		{name: "mongo without uri", mutate: func(c *Config) { c.StoreDriver = DriverMongo }, wantErr: "MONGO_URI"},
		{name: "zero retries", mutate: func(c *Config) { c.StoreMaxRetries = 0 }, wantErr: "STORE_MAX_RETRIES"},
		{name: "negative burst", mutate: func(c *Config) { c.RateLimitBurst = -1 }, wantErr: "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, (&Config{LogLevel: in}).SlogLevel(), in)
	}
}
