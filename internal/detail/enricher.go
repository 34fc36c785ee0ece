// Package detail fetches a product's detail resource and merges it with the
// listing summary.
package detail

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Normalizer merges a summary with its detail payload.
type Normalizer interface {
	Normalize(summary crawler.ProductSummary, detail crawler.ProductDetail) crawler.CanonicalRecord
}

// Enricher performs exactly one detail fetch per call. It never touches the
// dedup claim; a failed product stays claimed.
type Enricher struct {
	fetcher    crawler.Fetcher
	endpoints  crawler.Endpoints
	normalizer Normalizer
	logger     *zap.Logger
}

// New constructs an Enricher.
func New(fetcher crawler.Fetcher, endpoints crawler.Endpoints, normalizer Normalizer, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		fetcher:    fetcher,
		endpoints:  endpoints,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Enrich fetches the detail resource for summary.Slug and returns the
// normalized record.
func (e *Enricher) Enrich(ctx context.Context, summary crawler.ProductSummary) (crawler.CanonicalRecord, error) {
	url := e.endpoints.DetailURL(summary.Slug)
	body, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return crawler.CanonicalRecord{}, fmt.Errorf("fetch detail %s: %w", summary.Slug, err)
	}
	detail, err := Parse(body)
	if err != nil {
		return crawler.CanonicalRecord{}, fmt.Errorf("detail %s: %w", summary.Slug, err)
	}
	e.logger.Debug("detail fetched",
		zap.String("slug", summary.Slug),
		zap.Int("description_blocks", len(detail.DescriptionBlocks)),
		zap.Int("text_blocks", len(detail.TextBlocks)))
	return e.normalizer.Normalize(summary, detail), nil
}

// Parse decodes a detail response body. A missing or null results object is
// a malformed payload.
func Parse(body []byte) (crawler.ProductDetail, error) {
	var resp crawler.DetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return crawler.ProductDetail{}, fmt.Errorf("%w: decode detail: %w", crawler.ErrMalformedPayload, err)
	}
	if resp.Results == nil {
		return crawler.ProductDetail{}, fmt.Errorf("%w: detail has no results object", crawler.ErrMalformedPayload)
	}
	return *resp.Results, nil
}
