package output

import (
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateTable rejects table names that are not plain identifiers.
func ValidateTable(table string) error {
	if !validTableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// Row is the relational shape shared by the SQL sinks.
type Row struct {
	Slug         string
	RunID        string
	RPC          string
	URL          string
	Title        string
	Record       string
	RecordHash   string
	DiscoveredAt time.Time
}

var rowColumns = []string{"slug", "run_id", "rpc", "url", "title", "record", "record_hash", "discovered_at"}

// NewRow encodes record and fingerprints it.
func NewRow(record crawler.CanonicalRecord, runID string) (Row, error) {
	slug := record.Slug()
	if slug == "" {
		return Row{}, fmt.Errorf("record %q has no slug", record.URL)
	}
	data, digest, err := sha256.New().HashJSON(record)
	if err != nil {
		return Row{}, fmt.Errorf("encode record %s: %w", slug, err)
	}
	return Row{
		Slug:         slug,
		RunID:        runID,
		RPC:          record.RPC,
		URL:          record.URL,
		Title:        record.Title,
		Record:       string(data),
		RecordHash:   digest,
		DiscoveredAt: time.Unix(record.Timestamp, 0).UTC(),
	}, nil
}

// Values returns the row in column order.
func (r Row) Values() []any {
	return []any{r.Slug, r.RunID, r.RPC, r.URL, r.Title, r.Record, r.RecordHash, r.DiscoveredAt}
}

// UpsertSQL builds an insert keyed by slug. An existing row is only
// rewritten when the record hash changed.
func UpsertSQL(builder sq.StatementBuilderType, table string, row Row) (string, []any, error) {
	query, args, err := builder.
		Insert(table).
		Columns(rowColumns...).
		Values(row.Values()...).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (slug) DO UPDATE SET run_id = excluded.run_id, rpc = excluded.rpc, "+
				"url = excluded.url, title = excluded.title, record = excluded.record, "+
				"record_hash = excluded.record_hash, discovered_at = excluded.discovered_at, "+
				"written_at = CURRENT_TIMESTAMP WHERE %s.record_hash <> excluded.record_hash", table)).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build upsert: %w", err)
	}
	return query, args, nil
}
