// Package listing walks a category's paged listing endpoint and yields each
// newly claimed product once.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// EmitFunc receives each summary that won its claim. A non-nil error stops
// pagination for the category.
type EmitFunc func(ctx context.Context, summary crawler.ProductSummary) error

// Paginator requests listing pages 1, 2, 3... for one category until a page
// comes back with no results.
type Paginator struct {
	fetcher   crawler.Fetcher
	claimer   crawler.Claimer
	clock     crawler.Clock
	endpoints crawler.Endpoints
	events    progress.Emitter
	logger    *zap.Logger
	runID     string
}

// Option customizes a Paginator.
type Option func(*Paginator)

// WithEmitter routes progress events to e.
func WithEmitter(e progress.Emitter) Option {
	return func(p *Paginator) { p.events = progress.OrNop(e) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Paginator) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRunID stamps events with the run identifier.
func WithRunID(id string) Option {
	return func(p *Paginator) { p.runID = id }
}

// New constructs a Paginator.
func New(fetcher crawler.Fetcher, claimer crawler.Claimer, clock crawler.Clock, endpoints crawler.Endpoints, opts ...Option) *Paginator {
	p := &Paginator{
		fetcher:   fetcher,
		claimer:   claimer,
		clock:     clock,
		endpoints: endpoints,
		events:    progress.Nop{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run paginates category until exhaustion and returns the number of pages
// fetched, including the terminating empty page. Fetch and decode failures
// abort the category with an error matching crawler.ErrTransport or
// crawler.ErrMalformedPayload.
func (p *Paginator) Run(ctx context.Context, category string, emit EmitFunc) (int, error) {
	logger := p.logger.With(zap.String("category", category))
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return page - 1, fmt.Errorf("paginate %s: %w", category, err)
		}
		url := p.endpoints.ListingURL(category, page)
		start := p.clock.Now()
		entries, err := p.fetchPage(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return page - 1, fmt.Errorf("paginate %s: %w", category, ctx.Err())
			}
			logger.Error("listing page failed, aborting category",
				zap.Int("page", page), zap.String("url", url), zap.Error(err))
			p.emit(progress.Event{
				Stage: progress.StageCategoryAborted, Category: category,
				Page: page, URL: url, Note: err.Error(),
			})
			return page, fmt.Errorf("category %s page %d: %w", category, page, err)
		}
		p.emit(progress.Event{
			Stage: progress.StagePageFetched, Category: category, Page: page,
			URL: url, Count: len(entries), Dur: p.clock.Now().Sub(start),
		})
		if len(entries) == 0 {
			logger.Info("category exhausted", zap.Int("pages", page))
			p.emit(progress.Event{Stage: progress.StageCategoryExhausted, Category: category, Page: page})
			return page, nil
		}
		if err := p.claimPage(ctx, logger, category, page, entries, emit); err != nil {
			return page, err
		}
	}
}

func (p *Paginator) fetchPage(ctx context.Context, url string) ([]json.RawMessage, error) {
	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	var resp crawler.ListingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode listing %s: %w", crawler.ErrMalformedPayload, url, err)
	}
	return resp.Results, nil
}

// claimPage walks every entry of a page. Undecodable entries and duplicates
// are skipped one by one; they never end the page or the category.
func (p *Paginator) claimPage(
	ctx context.Context,
	logger *zap.Logger,
	category string,
	page int,
	entries []json.RawMessage,
	emit EmitFunc,
) error {
	for i, raw := range entries {
		entry, err := crawler.DecodeListingEntry(raw)
		if err != nil {
			logger.Warn("listing entry malformed, skipped",
				zap.Int("page", page), zap.Int("index", i), zap.Error(err))
			p.emit(progress.Event{
				Stage: progress.StageEntrySkipped, Category: category, Page: page,
				Note: fmt.Sprintf("entry %d: %v", i, err),
			})
			continue
		}
		slug := crawler.SlugFromURL(entry.ProductURL)
		if slug == "" {
			logger.Warn("listing entry has no slug",
				zap.Int("page", page), zap.Int("index", i), zap.String("uuid", entry.UUID))
			p.emit(progress.Event{
				Stage: progress.StageEntrySkipped, Category: category, Page: page,
				Note: fmt.Sprintf("entry %d (uuid %q) has no product_url slug", i, entry.UUID),
			})
			continue
		}
		if !p.claimer.TryClaim(slug) {
			p.emit(progress.Event{Stage: progress.StageProductDuplicate, Category: category, Page: page, Slug: slug})
			continue
		}
		summary := crawler.NewProductSummary(entry, slug, category, page, p.clock.Now())
		p.emit(progress.Event{
			Stage: progress.StageProductClaimed, Category: category, Page: page,
			Slug: slug, URL: entry.ProductURL,
		})
		if err := emit(ctx, summary); err != nil {
			return fmt.Errorf("emit %s: %w", slug, err)
		}
	}
	return nil
}

func (p *Paginator) emit(evt progress.Event) {
	evt.RunID = p.runID
	evt.TS = p.clock.Now()
	p.events.Emit(evt)
}

// IsAbort reports whether err ended a category on a bad page rather than on
// cancellation.
func IsAbort(err error) bool {
	return err != nil && crawler.IsDropCause(err) && !errors.Is(err, context.Canceled)
}
