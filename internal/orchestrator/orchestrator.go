// Package orchestrator runs one crawl: a paginator per seed category feeding a
// pool of detail workers through a bounded queue.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/listing"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
	"github.com/JakeFAU/catalog-crawler/internal/queue/memory"
	"github.com/JakeFAU/catalog-crawler/internal/worker"
)

// Paginator walks one category; *listing.Paginator satisfies it.
type Paginator interface {
	Run(ctx context.Context, category string, emit listing.EmitFunc) (int, error)
}

// Config is fixed for the lifetime of a run.
type Config struct {
	RunID      string
	Categories []string
	Workers    int
	QueueDepth int
	// CategoryConcurrency caps concurrently paginating categories; 0 runs all at once.
	CategoryConcurrency int
}

// CategoryResult summarizes one category's pagination.
type CategoryResult struct {
	Pages int
	Err   error
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Categories map[string]CategoryResult
	Duration   time.Duration
}

// Aborted lists the categories that stopped on a failed page, sorted.
func (r Result) Aborted() []string {
	var out []string
	for name, cat := range r.Categories {
		if cat.Err != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Orchestrator owns the seed categories and wires paginators to workers.
type Orchestrator struct {
	cfg       Config
	paginator Paginator
	enricher  crawler.Enricher
	sink      crawler.RecordSink
	clock     crawler.Clock
	events    progress.Emitter
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	cfg Config,
	paginator Paginator,
	enricher crawler.Enricher,
	sink crawler.RecordSink,
	clock crawler.Clock,
	events progress.Emitter,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueDepth < 0 {
		cfg.QueueDepth = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Categories = append([]string(nil), cfg.Categories...)
	return &Orchestrator{
		cfg:       cfg,
		paginator: paginator,
		enricher:  enricher,
		sink:      sink,
		clock:     clock,
		events:    progress.OrNop(events),
		logger:    logger.With(zap.String("run_id", cfg.RunID)),
	}
}

// Run crawls every seed category and returns once all paginators are
// exhausted or aborted and every claimed product has been enriched. A failed
// category or product never fails the run; cancellation does.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	start := o.clock.Now()
	result := Result{RunID: o.cfg.RunID, Categories: make(map[string]CategoryResult, len(o.cfg.Categories))}
	var mu sync.Mutex

	o.logger.Info("crawl started",
		zap.Strings("categories", o.cfg.Categories),
		zap.Int("workers", o.cfg.Workers))
	o.events.Emit(progress.Event{RunID: o.cfg.RunID, TS: start, Stage: progress.StageRunStart})

	queue := memory.NewQueue(o.cfg.QueueDepth)

	workers, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < o.cfg.Workers; i++ {
		w := worker.New(i, queue, o.enricher, o.sink, o.clock, o.events, o.logger)
		workers.Go(func() error { return w.Run(workerCtx) })
	}

	paginators, pageCtx := errgroup.WithContext(workerCtx)
	if o.cfg.CategoryConcurrency > 0 {
		paginators.SetLimit(o.cfg.CategoryConcurrency)
	}
	enqueue := func(ctx context.Context, summary crawler.ProductSummary) error {
		return queue.Enqueue(ctx, crawler.QueueItem{RunID: o.cfg.RunID, Summary: summary})
	}
	for _, category := range o.cfg.Categories {
		paginators.Go(func() error {
			pages, err := o.paginator.Run(pageCtx, category, enqueue)
			mu.Lock()
			result.Categories[category] = CategoryResult{Pages: pages, Err: abortCause(err)}
			mu.Unlock()
			if err == nil || listing.IsAbort(err) {
				return nil
			}
			return err
		})
	}

	pageErr := paginators.Wait()
	queue.Close()
	workerErr := workers.Wait()

	result.Duration = o.clock.Now().Sub(start)
	if result.Duration < 0 {
		result.Duration = 0
	}
	o.events.Emit(progress.Event{
		RunID: o.cfg.RunID, TS: o.clock.Now(), Stage: progress.StageRunDone, Dur: result.Duration,
	})

	if err := ctx.Err(); err != nil {
		o.logger.Warn("crawl canceled", zap.Duration("dur", result.Duration))
		return result, fmt.Errorf("crawl run %s: %w", o.cfg.RunID, err)
	}
	if err := errors.Join(pageErr, workerErr); err != nil {
		return result, fmt.Errorf("crawl run %s: %w", o.cfg.RunID, err)
	}
	o.logger.Info("crawl finished",
		zap.Duration("dur", result.Duration),
		zap.Strings("aborted_categories", result.Aborted()))
	return result, nil
}

func abortCause(err error) error {
	if listing.IsAbort(err) {
		return err
	}
	return nil
}
