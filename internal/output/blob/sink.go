// Package blob stores each canonical record as its own JSON object in a blob
// store (local filesystem, GCS, or memory).
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

const contentType = "application/json"

// Config controls object naming.
type Config struct {
	Prefix string
	RunID  string
}

// Sink writes {prefix}/{run_id}/{slug}.json objects.
type Sink struct {
	store  crawler.BlobStore
	cfg    Config
	logger *zap.Logger
}

// New constructs a Sink.
func New(store crawler.BlobStore, cfg Config, logger *zap.Logger) (*Sink, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{store: store, cfg: cfg, logger: logger}, nil
}

// ObjectPath returns the object key for a slug.
func (s *Sink) ObjectPath(slug string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	name := slug + ".json"
	if prefix == "" {
		return path.Join(s.cfg.RunID, name)
	}
	return path.Join(prefix, s.cfg.RunID, name)
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
	uri, err := s.store.PutObject(ctx, s.ObjectPath(slug), contentType, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("put record %s: %w", slug, err)
	}
	s.logger.Debug("record stored", zap.String("slug", slug), zap.String("uri", uri))
	return nil
}

// Close implements crawler.RecordSink.
func (s *Sink) Close(context.Context) error {
	return nil
}
