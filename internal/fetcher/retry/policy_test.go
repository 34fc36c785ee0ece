package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 2}
	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "nil", err: nil, attempt: 1, want: false},
		{name: "503", err: &crawler.StatusError{URL: "u", StatusCode: 503}, attempt: 1, want: true},
		{name: "429 wrapped", err: fmt.Errorf("fetch: %w", &crawler.StatusError{StatusCode: 429}), attempt: 2, want: true},
		{name: "404", err: &crawler.StatusError{StatusCode: 404}, attempt: 1, want: false},
		{name: "budget spent", err: &crawler.StatusError{StatusCode: 503}, attempt: 3, want: false},
		{name: "net timeout", err: fmt.Errorf("%w: %w", crawler.ErrTransport, timeoutErr{}), attempt: 1, want: true},
		{name: "transport", err: fmt.Errorf("dial: %w", crawler.ErrTransport), attempt: 1, want: true},
		{name: "malformed", err: crawler.ErrMalformedPayload, attempt: 1, want: false},
		{name: "canceled", err: fmt.Errorf("fetch: %w", context.Canceled), attempt: 1, want: false},
		{name: "other", err: errors.New("boom"), attempt: 1, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.ShouldRetry(tt.err, tt.attempt))
		})
	}
}

func TestZeroPolicyNeverRetries(t *testing.T) {
	t.Parallel()

	var p Policy
	assert.False(t, p.ShouldRetry(&crawler.StatusError{StatusCode: 503}, 1))
	assert.Zero(t, p.Backoff(1))
}

func TestBackoffIsBounded(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	for attempt := 1; attempt <= 5; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 1, BaseDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Wait(ctx, 1), context.Canceled)
}
