// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/fetcher/retry"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	Headers       http.Header
}

// Waiter throttles fetches; *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements crawler.Fetcher using the Colly collector. It is safe
// for concurrent use.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       Waiter
	retry         retry.Policy
	transport     http.RoundTripper
	tracer        trace.Tracer
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter throttles every fetch through w.
func WithLimiter(w Waiter) Option {
	return func(f *Fetcher) { f.limiter = w }
}

// WithRetry repeats transient failures according to p.
func WithRetry(p retry.Policy) Option {
	return func(f *Fetcher) { f.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithTransport replaces the HTTP transport, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.transport = rt }
}

// New builds a Fetcher. The transport and timeout live on the shared
// collector backend, so they are set once here and never per request.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	f := &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		tracer:        otel.Tracer("github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.transport == nil {
		f.transport = newHTTPTransport()
	}
	if cfg.RespectRobots {
		f.transport = newRobotsGate(f.transport, f.logger)
	}
	c.WithTransport(f.transport)
	return f
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// Fetch performs an HTTP GET and returns the body of a 2xx response.
// Other statuses surface as *crawler.StatusError; every non-cancellation
// failure matches crawler.ErrTransport. Transient failures are retried per
// the configured retry policy.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := f.fetchOnce(ctx, url, attempt)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, colly.ErrRobotsTxtBlocked) || !f.retry.ShouldRetry(err, attempt) {
			return nil, err
		}
		f.logger.Debug("retrying fetch", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		if werr := f.retry.Wait(ctx, attempt); werr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, werr)
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, attempt int) ([]byte, error) {
	ctx, span := f.tracer.Start(ctx, "catalog.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("url.full", url),
			attribute.String("catalog.resource", metrics.ResourceKind(url)),
			attribute.Int("catalog.attempt", attempt),
		))
	defer span.End()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limit wait")
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
	}

	start := time.Now()
	var result fetchResult
	collector := f.buildCollector(ctx, &result)
	err := f.runCollector(ctx, collector, url, &result)
	dur := time.Since(start)

	status := strconv.Itoa(result.status)
	if err != nil && result.status == 0 {
		status = "error"
	}
	metrics.ObserveFetch(url, status, len(result.body), dur)
	span.SetAttributes(attribute.Int("http.response.status_code", result.status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.Debug("fetch failed", zap.String("url", url), zap.Int("status", result.status),
			zap.Duration("dur", dur), zap.Error(err))
		return nil, err
	}
	f.logger.Debug("fetched", zap.String("url", url), zap.Int("status", result.status),
		zap.Int("bytes", len(result.body)), zap.Duration("dur", dur))
	return result.body, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, result *fetchResult) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
		}
		result.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, result *fetchResult) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if ctx.Err() != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
		}
		if result.status != 0 && (result.status < 200 || result.status > 299) {
			return &crawler.StatusError{URL: url, StatusCode: result.status}
		}
		if err == nil {
			err = result.err
		}
		if err != nil {
			if errors.Is(err, colly.ErrRobotsTxtBlocked) {
				return fmt.Errorf("%w: %s disallowed by robots.txt: %w", crawler.ErrTransport, url, err)
			}
			return fmt.Errorf("%w: colly visit %s: %w", crawler.ErrTransport, url, err)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	for key, values := range f.cfg.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
