package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  base_url: "https://blog.example.com"
store:
  driver: memory
scheduler:
  start_page: 408
  max_page: 723
  listing_interval: 2s
  on_failure: retry
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://blog.example.com", cfg.Site.BaseURL)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 408, cfg.Scheduler.StartPage)
	assert.Equal(t, 723, cfg.Scheduler.MaxPage)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.ListingInterval)
	assert.Equal(t, "retry", cfg.Scheduler.OnFailure)
	// untouched defaults survive
	assert.Equal(t, 15, cfg.Scheduler.PageLimit)
	assert.Equal(t, 3*time.Second, cfg.Scheduler.DetailBackoff)
	assert.Equal(t, 5*time.Second, cfg.Fetcher.SettleDelay)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
site:
  base_url: "https://blog.example.com"
`)
	t.Setenv("MONGO_URI", "mongodb://db:27017/")
	t.Setenv("CORS_ORIGINS", "https://front.example.com")
	t.Setenv("DEBUG", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db:27017/", cfg.Mongo.MongoURI())
	assert.Equal(t, "https://front.example.com", cfg.CORSOrigins)
	assert.True(t, cfg.Debug)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Site.BaseURL = "https://blog.example.com"
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.Site.BaseURL = "" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }},
		{"limit above cap", func(c *Config) { c.Scheduler.PageLimit = 16 }},
		{"bad failure policy", func(c *Config) { c.Scheduler.OnFailure = "ignore" }},
		{"bad fetcher mode", func(c *Config) { c.Fetcher.Mode = "curl" }},
		{"zero insert attempts", func(c *Config) { c.Scheduler.InsertAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMongoURIFromHost(t *testing.T) {
	m := MongoConfig{Host: "mongo:27017"}
	assert.Equal(t, "mongodb://mongo:27017", m.MongoURI())
}
