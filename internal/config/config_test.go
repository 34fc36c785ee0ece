package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://alkoteka.com", cfg.Crawler.BaseURL)
	assert.Equal(t, "65e2983b-d801-11eb-80d3-00155d03900a", cfg.Crawler.CityUUID)
	assert.Equal(t, 20, cfg.Crawler.PerPage)
	assert.Equal(t, []string{"slaboalkogolnye-napitki-2", "bezalkogolnye-napitki-1", "aksessuary-2"}, cfg.Crawler.Categories)
	assert.Equal(t, 8, cfg.Crawler.Workers)
	assert.Equal(t, []string{SinkJSONL}, cfg.Output.Sinks)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, 2, cfg.RetryPolicy().MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryPolicy().BaseDelay)

	opts := cfg.NormalizeOptions()
	assert.Equal(t, []string{"obem"}, opts.VolumeFilters)
	assert.Equal(t, "__description", opts.DescriptionKey)
	assert.Equal(t, "vendor code", opts.VendorCodeKey)
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
crawler:
  city_uuid: 4a70f9e0-46ae-11e7-83ff-00155d026416
  per_page: 50
  categories: [vino-1]
  workers: 3
  category_concurrency: 2
http:
  timeout_seconds: 30
  rate_limit_rps: 5
normalize:
  strip_description_html: true
output:
  sinks: [jsonl, sqlite, memory]
  jsonl_path: out/items.jsonl
  sqlite:
    path: out/items.db
server:
  port: 9090
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "4a70f9e0-46ae-11e7-83ff-00155d026416", cfg.Crawler.CityUUID)
	assert.Equal(t, 50, cfg.Crawler.PerPage)
	assert.Equal(t, []string{"vino-1"}, cfg.Crawler.Categories)
	assert.Equal(t, 3, cfg.Crawler.Workers)
	assert.Equal(t, 2, cfg.Crawler.CategoryConcurrency)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.InDelta(t, 5.0, cfg.HTTP.RateLimitRPS, 0.0001)
	assert.True(t, cfg.NormalizeOptions().StripDescriptionHTML)
	assert.Equal(t, []string{SinkJSONL, SinkSQLite, SinkMemory}, cfg.Output.Sinks)
	assert.Equal(t, "out/items.db", cfg.Output.SQLite.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_CRAWLER_WORKERS", "12")
	t.Setenv("CATALOG_CRAWLER_CATEGORIES", "vino-1, pivo-2")
	t.Setenv("CATALOG_OUTPUT_SINKS", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Crawler.Workers)
	assert.Equal(t, []string{"vino-1", "pivo-2"}, cfg.Crawler.Categories)
	assert.Equal(t, []string{SinkMemory}, cfg.Output.Sinks)
}

func TestLoadRussianProfile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "alkoteka-ru.yaml"))
	require.NoError(t, err)

	opts := cfg.NormalizeOptions()
	assert.Equal(t, "Описание", opts.DescriptionTitle)
	assert.Equal(t, "Артикул", opts.VendorCodeKey)
	assert.Equal(t, "Страна производитель", opts.CountryKey)
	assert.Equal(t, "__description", opts.DescriptionKey)
	assert.True(t, opts.StripDescriptionHTML)
	assert.Equal(t, []string{"obem"}, opts.VolumeFilters)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func validConfig() Config {
	return Config{
		Crawler: CrawlerConfig{
			BaseURL:    "https://shop.test",
			CityUUID:   "city",
			PerPage:    20,
			Categories: []string{"beer"},
			Workers:    2,
		},
		HTTP:   HTTPConfig{TimeoutSeconds: 5},
		Output: OutputConfig{Sinks: []string{SinkMemory}},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty city", mutate: func(c *Config) { c.Crawler.CityUUID = " " }, wantErr: "city_uuid"},
		{name: "bad run id", mutate: func(c *Config) { c.Crawler.RunID = "nightly" }, wantErr: "run_id"},
		{name: "pinned run id", mutate: func(c *Config) { c.Crawler.RunID = "0190b6a4-7c4e-7b3a-9f2e-2f1d3c4b5a69" }},
		{name: "zero page size", mutate: func(c *Config) { c.Crawler.PerPage = 0 }, wantErr: "per_page"},
		{name: "no categories", mutate: func(c *Config) { c.Crawler.Categories = nil }, wantErr: "categories"},
		{name: "zero workers", mutate: func(c *Config) { c.Crawler.Workers = 0 }, wantErr: "workers"},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, wantErr: "timeout_seconds"},
		{name: "negative retries", mutate: func(c *Config) { c.HTTP.MaxRetries = -1 }, wantErr: "max_retries"},
		{name: "no sinks", mutate: func(c *Config) { c.Output.Sinks = nil }, wantErr: "at least one sink"},
		{name: "unknown sink", mutate: func(c *Config) { c.Output.Sinks = []string{"kafka"} }, wantErr: "unknown output sink"},
		{name: "duplicate sink", mutate: func(c *Config) { c.Output.Sinks = []string{SinkMemory, SinkMemory} }, wantErr: "twice"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Output.Sinks = []string{SinkPostgres} }, wantErr: "dsn"},
		{name: "pubsub without topic", mutate: func(c *Config) {
			c.Output.Sinks = []string{SinkPubSub}
			c.Output.PubSub.ProjectID = "p"
		}, wantErr: "topic"},
		{name: "gcs without bucket", mutate: func(c *Config) {
			c.Output.Sinks = []string{SinkBlob}
			c.Output.Blob.Backend = "gcs"
		}, wantErr: "bucket"},
		{name: "unknown blob backend", mutate: func(c *Config) {
			c.Output.Sinks = []string{SinkBlob}
			c.Output.Blob.Backend = "s3"
		}, wantErr: "backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
