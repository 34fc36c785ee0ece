package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// PrometheusSink exports pipeline counters derived from progress events.
type PrometheusSink struct {
	pages      *prometheus.CounterVec
	entries    *prometheus.CounterVec
	claims     *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	records    prometheus.Counter
	drops      *prometheus.CounterVec
	categories *prometheus.CounterVec
	runtime    prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_listing_pages_total",
			Help: "Listing pages fetched, labeled by category.",
		}, []string{"category"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_listing_entries_total",
			Help: "Listing entries seen, labeled by category.",
		}, []string{"category"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_products_claimed_total",
			Help: "Products claimed for detail enrichment, labeled by category.",
		}, []string{"category"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_products_duplicate_total",
			Help: "Listing entries skipped because their slug was already claimed.",
		}, []string{"category"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_records_written_total",
			Help: "Canonical records handed to the output sink.",
		}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_products_dropped_total",
			Help: "Products or entries lost, labeled by reason.",
		}, []string{"reason"}),
		categories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_categories_finished_total",
			Help: "Categories that stopped paginating, labeled by outcome.",
		}, []string{"outcome"}),
		runtime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_run_duration_seconds",
			Help:    "Wall time per crawl run.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.pages,
		s.entries,
		s.claims,
		s.duplicates,
		s.records,
		s.drops,
		s.categories,
		s.runtime,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StagePageFetched:
		s.pages.WithLabelValues(evt.Category).Inc()
		s.entries.WithLabelValues(evt.Category).Add(float64(evt.Count))
	case progress.StageProductClaimed:
		s.claims.WithLabelValues(evt.Category).Inc()
	case progress.StageProductDuplicate:
		s.duplicates.WithLabelValues(evt.Category).Inc()
	case progress.StageRecordWritten:
		s.records.Inc()
	case progress.StageEntrySkipped:
		s.drops.WithLabelValues("no_slug").Inc()
	case progress.StageDetailFailed:
		s.drops.WithLabelValues("detail").Inc()
	case progress.StageSinkFailed:
		s.drops.WithLabelValues("sink").Inc()
	case progress.StageCategoryExhausted:
		s.categories.WithLabelValues("exhausted").Inc()
	case progress.StageCategoryAborted:
		s.categories.WithLabelValues("aborted").Inc()
	case progress.StageRunDone:
		if evt.Dur > 0 {
			s.runtime.Observe(evt.Dur.Seconds())
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
