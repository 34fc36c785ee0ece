package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a URL and returns its body. Implementations own transport,
// headers, and any retry policy; non-success statuses surface as errors
// matching ErrTransport.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Claimer grants exclusive ownership of a slug for detail enrichment.
type Claimer interface {
	TryClaim(slug string) bool
}

// Enricher turns a claimed summary into a canonical record.
type Enricher interface {
	Enrich(ctx context.Context, summary ProductSummary) (CanonicalRecord, error)
}

// RecordSink receives finished records. Write may be called concurrently.
type RecordSink interface {
	Write(ctx context.Context, record CanonicalRecord) error
	Close(ctx context.Context) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes payloads to a message topic.
type Publisher interface {
	Publish(ctx context.Context, payload []byte, attrs map[string]string) (string, error)
}

// Queue hands claimed summaries from paginators to enrichment workers.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
	Close()
}

// Hasher computes digests for stored records.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// QueueItem wraps a claimed summary waiting for enrichment.
type QueueItem struct {
	RunID   string
	Summary ProductSummary
}
