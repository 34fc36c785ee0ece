// Package sqlite stores canonical records in a local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/output"
)

// Config controls the SQLite database used for record rows.
type Config struct {
	Path  string
	Table string
	RunID string
}

// Sink upserts records into a SQLite table.
type Sink struct {
	db      *sql.DB
	table   string
	runID   string
	builder sq.StatementBuilderType

	mu     sync.Mutex
	closed bool
}

// New opens the database at cfg.Path and ensures the table exists.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("output.sqlite.path is required")
	}
	table := cfg.Table
	if table == "" {
		table = "products"
	}
	if err := output.ValidateTable(table); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s := &Sink{
		db:      db,
		table:   table,
		runID:   cfg.RunID,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the records table if it does not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	slug          TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	rpc           TEXT NOT NULL,
	url           TEXT NOT NULL,
	title         TEXT NOT NULL,
	record        TEXT NOT NULL,
	record_hash   TEXT NOT NULL,
	discovered_at TIMESTAMP NOT NULL,
	written_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Write implements crawler.RecordSink.
func (s *Sink) Write(ctx context.Context, record crawler.CanonicalRecord) error {
	row, err := output.NewRow(record, s.runID)
	if err != nil {
		return err
	}
	query, args, err := output.UpsertSQL(s.builder, s.table, row)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", row.Slug, err)
	}
	return nil
}

// Count returns the number of stored rows.
func (s *Sink) Count(ctx context.Context) (int, error) {
	query, args, err := s.builder.Select("COUNT(*)").From(s.table).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

// Close closes the database handle. Subsequent calls are no-ops.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
