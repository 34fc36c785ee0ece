package detail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/normalize"
)

var endpoints = crawler.Endpoints{BaseURL: "https://shop.test", CityUUID: "city-1", PerPage: 20}

type stubFetcher struct {
	body  []byte
	err   error
	calls []string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	s.calls = append(s.calls, url)
	return s.body, s.err
}

const detailBody = `{
  "success": true,
  "results": {
    "vendor_code": 48213,
    "country_name": "Italy",
    "description_blocks": [
      {"title": "Strength", "type": "range", "min": 4, "max": 6, "unit": "%"},
      {"title": "Style", "type": "select", "values": [{"name": "Lager"}, {"name": null}]}
    ],
    "text_blocks": [{"title": "Description", "content": "Crisp."}]
  }
}`

func summary() crawler.ProductSummary {
	return crawler.ProductSummary{
		Slug:         "peroni-1",
		Name:         "Peroni",
		URL:          "https://shop.test/product/beer/peroni-1",
		VendorCode:   "48213",
		DiscoveredAt: time.Unix(1700000000, 0),
		InStock:      true,
	}
}

func TestEnrichBuildsRecord(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{body: []byte(detailBody)}
	e := New(f, endpoints, normalize.New(normalize.DefaultOptions()), nil)

	rec, err := e.Enrich(context.Background(), summary())
	require.NoError(t, err)
	require.Equal(t, []string{endpoints.DetailURL("peroni-1")}, f.calls)
	assert.Equal(t, "Peroni", rec.Title)
	strength, _ := rec.Metadata.Get("Strength")
	assert.Equal(t, "4–6%", strength)
	style, _ := rec.Metadata.Get("Style")
	assert.Equal(t, "Lager", style)
	vc, _ := rec.Metadata.Get("vendor code")
	assert.Equal(t, "48213", vc)
	country, _ := rec.Metadata.Get("country")
	assert.Equal(t, "Italy", country)
}

func TestEnrichPropagatesTransportError(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{err: &crawler.StatusError{URL: "x", StatusCode: 404}}
	_, err := New(f, endpoints, normalize.New(normalize.DefaultOptions()), nil).Enrich(context.Background(), summary())
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrTransport)
	var statusErr *crawler.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 404, statusErr.StatusCode)
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json":     `<html>`,
		"no results":   `{"success": true}`,
		"null results": `{"results": null}`,
		"wrong shape":  `{"results": []}`,
	} {
		_, err := Parse([]byte(body))
		assert.ErrorIs(t, err, crawler.ErrMalformedPayload, name)
	}
}
