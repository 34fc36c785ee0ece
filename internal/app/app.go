// Package app builds every crawl component from configuration and owns their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/api"
	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/dedup"
	"github.com/JakeFAU/catalog-crawler/internal/detail"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/listing"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/normalize"
	"github.com/JakeFAU/catalog-crawler/internal/orchestrator"
	"github.com/JakeFAU/catalog-crawler/internal/output"
	blobsink "github.com/JakeFAU/catalog-crawler/internal/output/blob"
	"github.com/JakeFAU/catalog-crawler/internal/output/jsonl"
	memorysink "github.com/JakeFAU/catalog-crawler/internal/output/memory"
	pgsink "github.com/JakeFAU/catalog-crawler/internal/output/postgres"
	pubsubsink "github.com/JakeFAU/catalog-crawler/internal/output/pubsub"
	sqlitesink "github.com/JakeFAU/catalog-crawler/internal/output/sqlite"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/catalog-crawler/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/telemetry"
)

// Version is stamped into the tracer resource; overridden at link time.
var Version = "dev"

type buildOptions struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	fetcher    crawler.Fetcher
	clock      crawler.Clock
}

// Option customizes Build.
type Option func(*buildOptions)

// WithLogger replaces the logger built from cfg.Logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = l }
}

// WithRegisterer registers run collectors somewhere other than the default registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *buildOptions) { o.registerer = r }
}

// WithFetcher replaces the colly fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(o *buildOptions) { o.fetcher = f }
}

// WithClock replaces the system clock.
func WithClock(c crawler.Clock) Option {
	return func(o *buildOptions) { o.clock = c }
}

// App holds the components of one crawl run.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string

	claims       *dedup.Set
	stats        *progresssinks.StatsSink
	hub          *progress.Hub
	sink         *output.Multi
	memory       *memorysink.Sink
	orchestrator *orchestrator.Orchestrator
	server       *api.Server

	closers        []func(context.Context) error
	tracerShutdown telemetry.ShutdownFunc
	closeOnce      sync.Once
}

// Build constructs every dependency described by cfg. On error, anything
// already opened is released.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (_ *App, err error) {
	bo := buildOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&bo)
	}
	if bo.logger == nil {
		bo.logger, err = logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
	}
	if bo.clock == nil {
		bo.clock = system.New()
	}

	runID := cfg.Crawler.RunID
	if runID == "" {
		if runID, err = uuid.New().NewID(); err != nil {
			return nil, fmt.Errorf("run id: %w", err)
		}
	}

	a := &App{cfg: cfg, runID: runID, logger: logging.ForRun(bo.logger, runID)}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.tracerShutdown, err = telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	if err = a.setupProgress(bo.registerer); err != nil {
		return nil, err
	}
	if err = a.setupSinks(ctx); err != nil {
		return nil, err
	}

	fetcher := bo.fetcher
	if fetcher == nil {
		fetcher = a.newFetcher()
	}
	endpoints := crawler.Endpoints{
		BaseURL:  cfg.Crawler.BaseURL,
		CityUUID: cfg.Crawler.CityUUID,
		PerPage:  cfg.Crawler.PerPage,
	}
	a.claims = dedup.New()
	paginator := listing.New(fetcher, a.claims, bo.clock, endpoints,
		listing.WithEmitter(a.hub),
		listing.WithLogger(a.logger.Named("listing")),
		listing.WithRunID(runID),
	)
	enricher := detail.New(fetcher, endpoints, normalize.New(cfg.NormalizeOptions()), a.logger.Named("detail"))
	a.orchestrator = orchestrator.New(orchestrator.Config{
		RunID:               runID,
		Categories:          cfg.Crawler.Categories,
		Workers:             cfg.Crawler.Workers,
		QueueDepth:          cfg.Crawler.QueueDepth,
		CategoryConcurrency: cfg.Crawler.CategoryConcurrency,
	}, paginator, enricher, a.sink, bo.clock, a.hub, bo.logger.Named("orchestrator"))

	if cfg.Server.Port > 0 {
		a.server = api.NewServer(a.stats, a.logger.Named("api"))
	}

	a.logger.Info("application built",
		zap.String("base_url", cfg.Crawler.BaseURL),
		zap.Strings("categories", cfg.Crawler.Categories),
		zap.Strings("sinks", a.sink.Names()),
		zap.Int("workers", cfg.Crawler.Workers),
		zap.Int("server_port", cfg.Server.Port),
	)
	return a, nil
}

func (a *App) newFetcher() *collyfetcher.Fetcher {
	opts := []collyfetcher.Option{
		collyfetcher.WithLogger(a.logger.Named("fetcher")),
		collyfetcher.WithRetry(a.cfg.RetryPolicy()),
	}
	limiter := ratelimit.New(ratelimit.Config{RPS: a.cfg.HTTP.RateLimitRPS, Burst: a.cfg.HTTP.RateLimitBurst})
	if limiter.Enabled() {
		opts = append(opts, collyfetcher.WithLimiter(limiter))
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.HTTP.UserAgent,
		RespectRobots: a.cfg.HTTP.RespectRobots,
		Timeout:       a.cfg.FetchTimeout(),
	}, opts...)
}

func (a *App) setupProgress(reg prometheus.Registerer) error {
	a.stats = progresssinks.NewStatsSink()
	sinkList := []progress.Sink{
		a.stats,
		progresssinks.NewLogSink(a.logger.Named("progress")),
	}
	if reg != nil {
		promSink, err := progresssinks.NewPrometheusSink(reg)
		if err != nil {
			return fmt.Errorf("progress metrics init failed: %w", err)
		}
		sinkList = append(sinkList, promSink)
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress_hub")}, sinkList...)
	a.closers = append(a.closers, a.hub.Close)
	return nil
}

func (a *App) setupSinks(ctx context.Context) error {
	var named []output.Named
	for _, kind := range a.cfg.Output.Sinks {
		sink, err := a.openSink(ctx, kind)
		if err != nil {
			for _, n := range named {
				_ = n.Sink.Close(ctx)
			}
			return fmt.Errorf("%s sink init failed: %w", kind, err)
		}
		a.logger.Info("record sink ready", zap.String("sink", kind))
		named = append(named, output.Named{Name: kind, Sink: sink})
	}
	a.sink = output.NewMulti(a.logger.Named("output"), named...)
	a.closers = append(a.closers, a.sink.Close)
	return nil
}

func (a *App) openSink(ctx context.Context, kind string) (crawler.RecordSink, error) {
	out := a.cfg.Output
	switch kind {
	case config.SinkJSONL:
		return jsonl.New(out.JSONLPath)
	case config.SinkMemory:
		a.memory = memorysink.New()
		return a.memory, nil
	case config.SinkPostgres:
		return pgsink.New(ctx, pgsink.Config{
			DSN:      out.Postgres.DSN,
			Table:    out.Postgres.Table,
			RunID:    a.runID,
			MaxConns: out.Postgres.MaxConns,
		})
	case config.SinkSQLite:
		return sqlitesink.New(ctx, sqlitesink.Config{Path: out.SQLite.Path, Table: out.SQLite.Table, RunID: a.runID})
	case config.SinkPubSub:
		pub, err := gcppublisher.Open(ctx, out.PubSub.ProjectID, out.PubSub.Topic)
		if err != nil {
			return nil, err
		}
		return pubsubsink.New(pub, a.runID, a.logger.Named("pubsub"))
	case config.SinkBlob:
		store, err := a.openBlobStore(ctx)
		if err != nil {
			return nil, err
		}
		return blobsink.New(store, blobsink.Config{Prefix: out.Blob.Prefix, RunID: a.runID}, a.logger.Named("blob"))
	default:
		return nil, fmt.Errorf("unknown sink kind %q", kind)
	}
}

func (a *App) openBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	blob := a.cfg.Output.Blob
	switch blob.Backend {
	case "gcs":
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: blob.Bucket})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		return store, nil
	case "local":
		return localstorage.New(localstorage.Config{BaseDir: blob.BaseDir})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", blob.Backend)
	}
}

// RunID returns the identifier stamped on this run's output.
func (a *App) RunID() string {
	return a.runID
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Stats returns the current run summary.
func (a *App) Stats() progresssinks.Snapshot {
	return a.stats.Snapshot()
}

// Records returns what the memory sink holds, or nil when it is not configured.
func (a *App) Records() []crawler.CanonicalRecord {
	if a.memory == nil {
		return nil
	}
	return a.memory.Records()
}

// Run crawls every configured category. The status server, when enabled,
// serves for the duration of the run.
func (a *App) Run(ctx context.Context) (orchestrator.Result, error) {
	serverErr := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if a.server != nil {
		a.server.SetReady(true)
		go func() {
			serverErr <- a.server.ListenAndServe(serverCtx, fmt.Sprintf(":%d", a.cfg.Server.Port))
		}()
	} else {
		serverErr <- nil
	}

	result, err := a.orchestrator.Run(ctx)

	if a.server != nil {
		a.server.SetReady(false)
	}
	stopServer()
	if serr := <-serverErr; serr != nil {
		a.logger.Warn("status server stopped with error", zap.Error(serr))
	}

	a.logger.Info("crawl finished",
		zap.Int("claimed", a.claims.Len()),
		zap.Strings("aborted_categories", result.Aborted()),
		zap.Duration("duration", result.Duration),
		zap.Error(err),
	)
	return result, err
}

// Close releases resources in reverse order of acquisition. Sinks close
// before the progress hub flushes. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if a.tracerShutdown != nil {
			if err := a.tracerShutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
			}
		}
		_ = a.logger.Sync()
	})
	return errors.Join(errs...)
}
