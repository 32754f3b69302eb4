package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishasvintus/access_mirror/internal/apperr"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "mirror")
	t.Setenv("DB_NAME", "mirror")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
	assert.Equal(t, 500*time.Millisecond, cfg.GitHub.RequestInterval)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 5, cfg.Sync.BatchSize)
	assert.Equal(t, time.Second, cfg.Sync.DefaultDelay)
	assert.Equal(t, time.Second, cfg.Sync.WarningDelay)
	assert.Equal(t, time.Second, cfg.Sync.CriticalDelay)
	assert.Equal(t, 1, cfg.Sync.Concurrency)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "host=localhost port=5432 user=mirror password= dbname=mirror sslmode=disable", cfg.Database.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SYNC_MAX_RETRIES", "5")
	t.Setenv("SYNC_BATCH_SIZE", "3")
	t.Setenv("RATE_LIMIT_WARNING_DELAY", "2")
	t.Setenv("RATE_LIMIT_CRITICAL_DELAY", "1500ms")
	t.Setenv("SYNC_GROUPS", "acme, globex ,,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 3, cfg.Sync.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Sync.WarningDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Sync.CriticalDelay)
	assert.Equal(t, []string{"acme", "globex"}, cfg.Sync.Groups)
}

func TestLoad_MissingTokenIsConfigurationError(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GITHUB_TOKEN", "  ")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric retries", key: "SYNC_MAX_RETRIES", value: "many"},
		{name: "zero retries", key: "SYNC_MAX_RETRIES", value: "0"},
		{name: "bad duration", key: "RATE_LIMIT_DEFAULT_DELAY", value: "soon"},
		{name: "batch too large", key: "SYNC_BATCH_SIZE", value: "500"},
		{name: "bad log format", key: "LOG_FORMAT", value: "xml"},
		{name: "bad api url", key: "GITHUB_API_URL", value: "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
		})
	}
}
