package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

func TestPrometheusSinkCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{TS: now, Stage: progress.StagePageFetched, Category: "c1", Page: 1, Count: 3},
		{TS: now, Stage: progress.StageProductClaimed, Category: "c1", Slug: "a"},
		{TS: now, Stage: progress.StageProductDuplicate, Category: "c1", Slug: "a"},
		{TS: now, Stage: progress.StageDetailFailed, Category: "c1", Slug: "b"},
		{TS: now, Stage: progress.StageRecordWritten, Category: "c1", Slug: "a"},
		{TS: now, Stage: progress.StageCategoryExhausted, Category: "c1", Page: 2},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 1, testutil.ToFloat64(sink.pages.WithLabelValues("c1")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(sink.entries.WithLabelValues("c1")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.claims.WithLabelValues("c1")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.duplicates.WithLabelValues("c1")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.drops.WithLabelValues("detail")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.records), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.categories.WithLabelValues("exhausted")), 0)
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
