// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-crawler/internal/fetcher/retry"
	"github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/normalize"
)

// EnvPrefix namespaces environment overrides, e.g. CATALOG_CRAWLER_WORKERS.
const EnvPrefix = "CATALOG"

// Sink kinds accepted by output.sinks.
const (
	SinkJSONL    = "jsonl"
	SinkBlob     = "blob"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkPubSub   = "pubsub"
	SinkMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Output    OutputConfig    `mapstructure:"output"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// CrawlerConfig governs the catalog API and the crawl pipeline.
type CrawlerConfig struct {
	// RunID pins the run identifier; empty generates a UUIDv7.
	RunID               string   `mapstructure:"run_id"`
	BaseURL             string   `mapstructure:"base_url"`
	CityUUID            string   `mapstructure:"city_uuid"`
	PerPage             int      `mapstructure:"per_page"`
	Categories          []string `mapstructure:"categories"`
	Workers             int      `mapstructure:"workers"`
	QueueDepth          int      `mapstructure:"queue_depth"`
	CategoryConcurrency int      `mapstructure:"category_concurrency"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxRetries     int     `mapstructure:"max_retries"`
	BackoffMs      int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs   int     `mapstructure:"backoff_max_ms"`
}

// NormalizeConfig names the filter codes and metadata keys used when merging
// listing and detail payloads.
type NormalizeConfig struct {
	VolumeFilters        []string `mapstructure:"volume_filters"`
	CategoryFilters      []string `mapstructure:"category_filters"`
	ColorFilters         []string `mapstructure:"color_filters"`
	DescriptionTitle     string   `mapstructure:"description_title"`
	DescriptionKey       string   `mapstructure:"description_key"`
	VendorCodeKey        string   `mapstructure:"vendor_code_key"`
	CountryKey           string   `mapstructure:"country_key"`
	StripDescriptionHTML bool     `mapstructure:"strip_description_html"`
}

// OutputConfig selects and configures record sinks.
type OutputConfig struct {
	Sinks     []string       `mapstructure:"sinks"`
	JSONLPath string         `mapstructure:"jsonl_path"`
	Blob      BlobConfig     `mapstructure:"blob"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
	SQLite    SQLiteConfig   `mapstructure:"sqlite"`
	PubSub    PubSubConfig   `mapstructure:"pubsub"`
}

// BlobConfig configures the per-record object sink.
type BlobConfig struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PostgresConfig configures the Postgres sink.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SQLiteConfig configures the SQLite sink.
type SQLiteConfig struct {
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds the topic records are announced on.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the status HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Output.Sinks = splitList(cfg.Output.Sinks)
	cfg.Crawler.Categories = splitList(cfg.Crawler.Categories)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	norm := normalize.DefaultOptions()

	v.SetDefault("crawler.run_id", "")
	v.SetDefault("crawler.base_url", "https://alkoteka.com")
	v.SetDefault("crawler.city_uuid", "65e2983b-d801-11eb-80d3-00155d03900a")
	v.SetDefault("crawler.per_page", 20)
	v.SetDefault("crawler.categories", []string{
		"slaboalkogolnye-napitki-2",
		"bezalkogolnye-napitki-1",
		"aksessuary-2",
	})
	v.SetDefault("crawler.workers", 8)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.category_concurrency", 0)
	v.SetDefault("http.user_agent", "catalog-crawler/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("normalize.volume_filters", norm.VolumeFilters)
	v.SetDefault("normalize.category_filters", norm.CategoryFilters)
	v.SetDefault("normalize.color_filters", norm.ColorFilters)
	v.SetDefault("normalize.description_title", norm.DescriptionTitle)
	v.SetDefault("normalize.description_key", norm.DescriptionKey)
	v.SetDefault("normalize.vendor_code_key", norm.VendorCodeKey)
	v.SetDefault("normalize.country_key", norm.CountryKey)
	v.SetDefault("normalize.strip_description_html", norm.StripDescriptionHTML)
	v.SetDefault("output.sinks", []string{SinkJSONL})
	v.SetDefault("output.jsonl_path", "data/products.jsonl")
	v.SetDefault("output.blob.backend", "local")
	v.SetDefault("output.blob.base_dir", "data/blobs")
	v.SetDefault("output.blob.prefix", "products")
	v.SetDefault("output.postgres.table", "products")
	v.SetDefault("output.sqlite.path", "data/products.db")
	v.SetDefault("output.sqlite.table", "products")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "catalog-crawler")
}

// splitList expands comma-separated entries, which is how list values arrive
// from environment variables.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawler.BaseURL) == "" {
		return fmt.Errorf("crawler.base_url is required")
	}
	if strings.TrimSpace(c.Crawler.CityUUID) == "" {
		return fmt.Errorf("crawler.city_uuid is required")
	}
	if c.Crawler.RunID != "" && !uuid.Valid(c.Crawler.RunID) {
		return fmt.Errorf("crawler.run_id must be a UUID")
	}
	if c.Crawler.PerPage <= 0 {
		return fmt.Errorf("crawler.per_page must be > 0")
	}
	if len(c.Crawler.Categories) == 0 {
		return fmt.Errorf("crawler.categories must not be empty")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.QueueDepth < 0 {
		return fmt.Errorf("crawler.queue_depth must be >= 0")
	}
	if c.Crawler.CategoryConcurrency < 0 {
		return fmt.Errorf("crawler.category_concurrency must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must be >= 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Server.Port < 0 {
		return fmt.Errorf("server.port must be >= 0")
	}
	if len(c.Output.Sinks) == 0 {
		return fmt.Errorf("output.sinks must name at least one sink")
	}
	seen := make(map[string]bool, len(c.Output.Sinks))
	for _, kind := range c.Output.Sinks {
		if seen[kind] {
			return fmt.Errorf("output.sinks lists %q twice", kind)
		}
		seen[kind] = true
		if err := c.Output.validateSink(kind); err != nil {
			return err
		}
	}
	return nil
}

func (o OutputConfig) validateSink(kind string) error {
	switch kind {
	case SinkJSONL:
		if o.JSONLPath == "" {
			return fmt.Errorf("output.jsonl_path is required for the jsonl sink")
		}
	case SinkBlob:
		switch o.Blob.Backend {
		case "local":
			if o.Blob.BaseDir == "" {
				return fmt.Errorf("output.blob.base_dir is required for the local blob backend")
			}
		case "gcs":
			if o.Blob.Bucket == "" {
				return fmt.Errorf("output.blob.bucket is required for the gcs blob backend")
			}
		default:
			return fmt.Errorf("unknown output.blob.backend %q", o.Blob.Backend)
		}
	case SinkPostgres:
		if o.Postgres.DSN == "" {
			return fmt.Errorf("output.postgres.dsn is required for the postgres sink")
		}
	case SinkSQLite:
		if o.SQLite.Path == "" {
			return fmt.Errorf("output.sqlite.path is required for the sqlite sink")
		}
	case SinkPubSub:
		if o.PubSub.ProjectID == "" || o.PubSub.Topic == "" {
			return fmt.Errorf("output.pubsub.project_id and output.pubsub.topic are required for the pubsub sink")
		}
	case SinkMemory:
	default:
		return fmt.Errorf("unknown output sink %q", kind)
	}
	return nil
}

// FetchTimeout converts http.timeout_seconds into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryPolicy maps the http retry knobs onto a fetch retry policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries: c.HTTP.MaxRetries,
		BaseDelay:  time.Duration(c.HTTP.BackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
	}
}

// NormalizeOptions maps the normalize section onto normalizer options.
func (c Config) NormalizeOptions() normalize.Options {
	n := c.Normalize
	return normalize.Options{
		VolumeFilters:        n.VolumeFilters,
		CategoryFilters:      n.CategoryFilters,
		ColorFilters:         n.ColorFilters,
		DescriptionTitle:     n.DescriptionTitle,
		DescriptionKey:       n.DescriptionKey,
		VendorCodeKey:        n.VendorCodeKey,
		CountryKey:           n.CountryKey,
		StripDescriptionHTML: n.StripDescriptionHTML,
	}
}
