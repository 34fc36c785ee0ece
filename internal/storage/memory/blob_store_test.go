package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "run/slug.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://run/slug.json", uri)

	payload[0] = 'C'
	stored, ok := store.Get("run/slug.json")
	require.True(t, ok)
	assert.Equal(t, "content", string(stored))
	assert.Equal(t, "application/json", store.ContentType("run/slug.json"))
	assert.Equal(t, []string{"run/slug.json"}, store.Paths())

	_, ok = store.Get("missing")
	assert.False(t, ok)
}
