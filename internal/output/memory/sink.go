// Package memory keeps records in process, for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Sink stores records in write order.
type Sink struct {
	mu      sync.RWMutex
	records []crawler.CanonicalRecord
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{}
}

// Write implements crawler.RecordSink.
func (s *Sink) Write(_ context.Context, record crawler.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of everything written so far.
func (s *Sink) Records() []crawler.CanonicalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.CanonicalRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Close implements crawler.RecordSink.
func (s *Sink) Close(context.Context) error {
	return nil
}
