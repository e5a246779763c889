package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load([]string{})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, time.Second, cfg.SendInterval)
	assert.Equal(t, "file", cfg.LedgerBackend)
	assert.Equal(t, "./data/processed-entries.json", cfg.LedgerPath)
	assert.Equal(t, "Distro-Newsletter-Mode/1.0", cfg.UserAgent)
	assert.Empty(t, cfg.FeedURLs)
	assert.Same(t, cfg, Get())
}

func TestLoadFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load([]string{
		"--api-endpoint", "https://api.example.com/ingest",
		"--api-key", "secret",
		"--feed-urls", " https://a.example.com/feed.xml , ,https://b.example.com/feed.xml",
		"--ledger-backend", "redis",
		"--send-interval", "250ms",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/ingest", cfg.APIEndpoint)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, []string{"https://a.example.com/feed.xml", "https://b.example.com/feed.xml"}, cfg.FeedURLs)
	assert.Equal(t, "redis", cfg.LedgerBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.SendInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CRON_SCHEDULE", "0 * * * *")
	t.Setenv("LEDGER_BACKEND", "sqlite")
	t.Setenv("LEDGER_PATH", "ledger.db")

	cfg, err := load([]string{})
	require.NoError(t, err)

	assert.Equal(t, "0 * * * *", cfg.Schedule)
	assert.Equal(t, "sqlite", cfg.LedgerBackend)
	assert.Equal(t, "ledger.db", cfg.LedgerPath)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{"unknown backend", []string{"--ledger-backend", "memcached"}},
		{"postgres without url", []string{"--ledger-backend", "postgres"}},
		{"endpoint not a url", []string{"--api-endpoint", "not a url"}},
		{"zero fetch timeout", []string{"--fetch-timeout", "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(tt.args)
			assert.Error(t, err)
		})
	}
}
