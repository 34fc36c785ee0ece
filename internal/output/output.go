// Package output fans canonical records out to one or more record sinks.
package output

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// Named is a sink with a stable name for logs and metrics.
type Named struct {
	Name string
	Sink crawler.RecordSink
}

// Multi writes every record to each sink. One failing sink does not stop
// the others; the joined error is returned.
type Multi struct {
	sinks  []Named
	logger *zap.Logger
}

// NewMulti builds a Multi over sinks.
func NewMulti(logger *zap.Logger, sinks ...Named) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{sinks: sinks, logger: logger}
}

// Names returns the configured sink names in order.
func (m *Multi) Names() []string {
	out := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		out = append(out, s.Name)
	}
	return out
}

// Write implements crawler.RecordSink.
func (m *Multi) Write(ctx context.Context, record crawler.CanonicalRecord) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Sink.Write(ctx, record)
		metrics.ObserveSinkWrite(s.Name, err)
		if err != nil {
			m.logger.Warn("sink write failed",
				zap.String("sink", s.Name), zap.String("slug", record.Slug()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
