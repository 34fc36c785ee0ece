package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

func item(slug string) crawler.QueueItem {
	return crawler.QueueItem{RunID: "run-1", Summary: crawler.ProductSummary{Slug: slug}}
}

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan crawler.QueueItem, 1)
	errCh := make(chan error, 1)

	go func() {
		got, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- got
	}()

	require.NoError(t, q.Enqueue(context.Background(), item("a")))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		assert.Equal(t, "a", got.Summary.Slug)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueDrainsAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	require.NoError(t, q.Enqueue(context.Background(), item("a")))
	require.NoError(t, q.Enqueue(context.Background(), item("b")))
	assert.Equal(t, 2, q.Len())
	q.Close()
	q.Close()

	err := q.Enqueue(context.Background(), item("c"))
	require.ErrorIs(t, err, crawler.ErrQueueClosed)

	for _, want := range []string{"a", "b"} {
		got, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got.Summary.Slug)
	}
	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, crawler.ErrQueueClosed)
}

func TestQueueContextCancellation(t *testing.T) {
	t.Parallel()

	q := NewQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, item("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = q.Dequeue(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQueueCloseWaitsForBlockedProducer(t *testing.T) {
	t.Parallel()

	q := NewQueue(0)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = q.Enqueue(ctx, item("a"))
	}()
	time.Sleep(10 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a producer was blocked")
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	wg.Wait()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after producer gave up")
	}
}
