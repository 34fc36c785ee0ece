package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

func newSink(t *testing.T) (*Sink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	sink, err := New(context.Background(), Config{Path: path, RunID: "run-1"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close(context.Background()) })
	return sink, path
}

func record(slug, title string) crawler.CanonicalRecord {
	return crawler.CanonicalRecord{
		Timestamp: 1700000000,
		RPC:       "48213",
		URL:       "https://shop.test/product/beer/" + slug,
		Title:     title,
	}
}

func TestWriteInsertsAndUpserts(t *testing.T) {
	ctx := context.Background()
	sink, path := newSink(t)

	require.NoError(t, sink.Write(ctx, record("peroni-1", "Peroni")))
	require.NoError(t, sink.Write(ctx, record("heineken-2", "Heineken")))
	require.NoError(t, sink.Write(ctx, record("peroni-1", "Peroni, 0.5L")))

	n, err := sink.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var title, runID string
	require.NoError(t, db.QueryRow("SELECT title, run_id FROM products WHERE slug = ?", "peroni-1").Scan(&title, &runID))
	require.Equal(t, "Peroni, 0.5L", title)
	require.Equal(t, "run-1", runID)
}

func TestWriteRejectsRecordWithoutSlug(t *testing.T) {
	sink, _ := newSink(t)
	err := sink.Write(context.Background(), crawler.CanonicalRecord{URL: ""})
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x.db"), Table: "drop table"})
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	sink, _ := newSink(t)
	require.NoError(t, sink.Close(context.Background()))
	require.NoError(t, sink.Close(context.Background()))
}
