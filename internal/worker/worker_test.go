package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
	"github.com/JakeFAU/catalog-crawler/internal/queue/memory"
)

type fakeEnricher struct {
	fail map[string]error
}

func (f *fakeEnricher) Enrich(_ context.Context, s crawler.ProductSummary) (crawler.CanonicalRecord, error) {
	if err, ok := f.fail[s.Slug]; ok {
		return crawler.CanonicalRecord{}, err
	}
	return crawler.CanonicalRecord{URL: s.URL, Title: s.Name}, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []crawler.CanonicalRecord
	err     error
}

func (s *fakeSink) Write(_ context.Context, rec crawler.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) Close(context.Context) error { return nil }

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) byStage(stage progress.Stage) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

func enqueue(t *testing.T, q *memory.Queue, slugs ...string) {
	t.Helper()
	for _, slug := range slugs {
		require.NoError(t, q.Enqueue(context.Background(), crawler.QueueItem{
			RunID: "run-1",
			Summary: crawler.ProductSummary{
				Slug:     slug,
				Category: "wine",
				Page:     1,
				Name:     "Product " + slug,
				URL:      "https://shop.test/product/wine/" + slug,
			},
		}))
	}
}

func TestWorkerDrainsQueueIntoSink(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(8)
	enqueue(t, q, "a", "b", "c")
	q.Close()

	sink := &fakeSink{}
	rec := &recorder{}
	w := New(1, q, &fakeEnricher{}, sink, fakeClock{time.Unix(10, 0)}, rec, zap.NewNop())

	require.NoError(t, w.Run(context.Background()))
	require.Len(t, sink.records, 3)
	assert.Equal(t, "Product a", sink.records[0].Title)
	written := rec.byStage(progress.StageRecordWritten)
	require.Len(t, written, 3)
	for _, evt := range written {
		assert.NoError(t, evt.Validate())
		assert.Equal(t, "run-1", evt.RunID)
	}
}

func TestWorkerReportsDetailFailureAndContinues(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(8)
	enqueue(t, q, "a", "broken", "c")
	q.Close()

	core, logs := observer.New(zap.WarnLevel)
	sink := &fakeSink{}
	rec := &recorder{}
	enricher := &fakeEnricher{fail: map[string]error{
		"broken": &crawler.StatusError{URL: "x", StatusCode: 500},
	}}
	w := New(1, q, enricher, sink, fakeClock{time.Unix(10, 0)}, rec, zap.New(core))

	require.NoError(t, w.Run(context.Background()))
	assert.Len(t, sink.records, 2)
	failed := rec.byStage(progress.StageDetailFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].Slug)
	assert.True(t, failed[0].IsDrop())

	entries := logs.FilterMessage("detail enrichment failed, product dropped").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0].ContextMap()["slug"])
}

func TestWorkerReportsSinkFailure(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	enqueue(t, q, "a")
	q.Close()

	rec := &recorder{}
	w := New(1, q, &fakeEnricher{}, &fakeSink{err: errors.New("disk full")}, fakeClock{time.Unix(10, 0)}, rec, nil)
	require.NoError(t, w.Run(context.Background()))
	require.Len(t, rec.byStage(progress.StageSinkFailed), 1)
	assert.Empty(t, rec.byStage(progress.StageRecordWritten))
}

func TestWorkerStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	w := New(1, q, &fakeEnricher{}, &fakeSink{}, fakeClock{time.Unix(10, 0)}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
