// Package worker implements the detail-enrichment loop that drains the work
// queue into the record sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// Worker consumes queue items, enriches them, and writes the records.
type Worker struct {
	id       int
	queue    crawler.Queue
	enricher crawler.Enricher
	sink     crawler.RecordSink
	clock    crawler.Clock
	events   progress.Emitter
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	id int,
	queue crawler.Queue,
	enricher crawler.Enricher,
	sink crawler.RecordSink,
	clock crawler.Clock,
	events progress.Emitter,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:       id,
		queue:    queue,
		enricher: enricher,
		sink:     sink,
		clock:    clock,
		events:   progress.OrNop(events),
		logger:   logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming queue items until the queue is closed and drained
// (returns nil) or the context finishes (returns the context error).
func (w *Worker) Run(ctx context.Context) error {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, crawler.ErrQueueClosed) {
				w.logger.Debug("queue drained")
				return nil
			}
			if ctx.Err() != nil {
				return fmt.Errorf("worker %d: %w", w.id, ctx.Err())
			}
			return fmt.Errorf("worker %d dequeue: %w", w.id, err)
		}
		if l, ok := w.queue.(interface{ Len() int }); ok {
			metrics.SetQueueDepth(l.Len())
		}
		w.process(ctx, item)
	}
}

// process handles one claimed product. Failures are logged and reported but
// never returned; the product's claim stays in place.
func (w *Worker) process(ctx context.Context, item crawler.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	summary := item.Summary
	start := w.clock.Now()
	fields := []zap.Field{
		zap.String("run_id", item.RunID),
		zap.String("category", summary.Category),
		zap.String("slug", summary.Slug),
		zap.Int("page", summary.Page),
	}

	record, err := w.enricher.Enrich(ctx, summary)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("detail enrichment failed, product dropped", append(fields, zap.Error(err))...)
		w.emit(item, progress.StageDetailFailed, err.Error(), start)
		return
	}

	if err := w.sink.Write(ctx, record); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("record sink write failed", append(fields, zap.Error(err))...)
		w.emit(item, progress.StageSinkFailed, err.Error(), start)
		return
	}
	w.logger.Debug("record written", fields...)
	w.emit(item, progress.StageRecordWritten, "", start)
}

func (w *Worker) emit(item crawler.QueueItem, stage progress.Stage, note string, start time.Time) {
	now := w.clock.Now()
	dur := now.Sub(start)
	if dur < 0 {
		dur = 0
	}
	w.events.Emit(progress.Event{
		RunID:    item.RunID,
		TS:       now,
		Stage:    stage,
		Category: item.Summary.Category,
		Page:     item.Summary.Page,
		Slug:     item.Summary.Slug,
		URL:      item.Summary.URL,
		Dur:      dur,
		Note:     note,
	})
}
