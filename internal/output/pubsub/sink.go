// Package pubsub announces each canonical record on a message topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Attribute keys set on every published record.
const (
	AttrSlug  = "slug"
	AttrRunID = "run_id"
	AttrRPC   = "rpc"
)

// Sink publishes JSON-encoded records.
type Sink struct {
	publisher crawler.Publisher
	runID     string
	logger    *zap.Logger
}

// New constructs a Sink. If publisher also has a Close() error method it is
// called when the sink closes.
func New(publisher crawler.Publisher, runID string, logger *zap.Logger) (*Sink, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{publisher: publisher, runID: runID, logger: logger}, nil
}

// Write implements crawler.RecordSink.
func (s *Sink) Write(ctx context.Context, record crawler.CanonicalRecord) error {
	slug := record.Slug()
	if slug == "" {
		return fmt.Errorf("record %q has no slug", record.URL)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", slug, err)
	}
	id, err := s.publisher.Publish(ctx, data, map[string]string{
		AttrSlug:  slug,
		AttrRunID: s.runID,
		AttrRPC:   record.RPC,
	})
	if err != nil {
		return fmt.Errorf("publish record %s: %w", slug, err)
	}
	s.logger.Debug("record published", zap.String("slug", slug), zap.String("message_id", id))
	return nil
}

// Close implements crawler.RecordSink.
func (s *Sink) Close(context.Context) error {
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
