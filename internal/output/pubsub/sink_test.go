package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/publisher/memory"
)

func TestSinkPublishesRecordWithAttributes(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink, err := New(pub, "run-1", nil)
	require.NoError(t, err)

	rec := crawler.CanonicalRecord{RPC: "48213", URL: "https://shop.test/product/beer/peroni-1", Title: "Peroni"}
	require.NoError(t, sink.Write(context.Background(), rec))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]string{AttrSlug: "peroni-1", AttrRunID: "run-1", AttrRPC: "48213"}, msgs[0].Attributes)
	var decoded crawler.CanonicalRecord
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &decoded))
	assert.Equal(t, "Peroni", decoded.Title)
	require.NoError(t, sink.Close(context.Background()))
}

func TestSinkWrapsPublishError(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	pub.FailWith(errors.New("deadline exceeded"))
	sink, err := New(pub, "run-1", nil)
	require.NoError(t, err)

	err = sink.Write(context.Background(), crawler.CanonicalRecord{URL: "https://shop.test/product/x/a-1"})
	require.ErrorContains(t, err, "publish record a-1")
}

func TestSinkRequiresSlugAndPublisher(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "run-1", nil)
	require.Error(t, err)

	sink, err := New(memory.New(), "run-1", nil)
	require.NoError(t, err)
	require.Error(t, sink.Write(context.Background(), crawler.CanonicalRecord{}))
}

type closingPublisher struct {
	*memory.Publisher
	closed bool
}

func (c *closingPublisher) Close() error {
	c.closed = true
	return nil
}

func TestSinkClosesPublisher(t *testing.T) {
	t.Parallel()

	pub := &closingPublisher{Publisher: memory.New()}
	sink, err := New(pub, "run-1", nil)
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))
	assert.True(t, pub.closed)
}
