package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/output"
)

func record() crawler.CanonicalRecord {
	return crawler.CanonicalRecord{
		Timestamp: 1700000000,
		RPC:       "48213",
		URL:       "https://shop.test/product/beer/peroni-1",
		Title:     "Peroni, 0.5L",
	}
}

func TestWriteUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewWithPool(mock, "products", "run-1")
	require.NoError(t, err)

	row, err := output.NewRow(record(), "run-1")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO products \(slug,run_id,rpc,url,title,record,record_hash,discovered_at\)`).
		WithArgs(row.Values()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Write(context.Background(), record()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewWithPool(mock, "", "run-1")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO products").WillReturnError(errors.New("connection reset"))
	err = sink.Write(context.Background(), record())
	require.ErrorContains(t, err, "upsert peroni-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewWithPool(mock, "catalog_products", "run-1")
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS catalog_products").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, sink.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "products", "run-1")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "bad-name", "run-1")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
