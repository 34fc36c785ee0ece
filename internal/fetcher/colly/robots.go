package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/fetcher/retry"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

const allowAllRobots = "User-agent: *\nAllow: /"

// robotsProbeRetry bounds how long a slow robots.txt host may hold up the
// first listing request.
var robotsProbeRetry = retry.Policy{MaxRetries: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: time.Second}

// robotsGate sits under the collector when robots.txt is honored. Catalog
// requests pass straight through; the robots.txt probe is retried on
// timeouts and, if the host never answers, treated as allow-all.
type robotsGate struct {
	base   http.RoundTripper
	retry  retry.Policy
	logger *zap.Logger
}

func newRobotsGate(base http.RoundTripper, logger *zap.Logger) *robotsGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &robotsGate{base: base, retry: robotsProbeRetry, logger: logger}
}

func (g *robotsGate) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots gate: nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		resp, err := g.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("catalog roundtrip: %w", err)
		}
		return resp, nil
	}
	return g.probe(req)
}

func (g *robotsGate) probe(req *http.Request) (*http.Response, error) {
	start := time.Now()
	for attempt := 1; ; attempt++ {
		resp, err := g.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if !isProbeTimeout(err) {
			return nil, fmt.Errorf("%w: robots.txt probe %s: %w", crawler.ErrTransport, req.URL.Host, err)
		}
		if attempt > g.retry.MaxRetries {
			g.logger.Warn("robots.txt probe timed out, crawling as allow-all",
				zap.String("host", req.URL.Host), zap.Int("attempts", attempt))
			metrics.ObserveFetch(req.URL.String(), "robots_allow_all", 0, time.Since(start))
			return allowAllResponse(req), nil
		}
		if werr := g.retry.Wait(req.Context(), attempt); werr != nil {
			return nil, fmt.Errorf("robots.txt probe %s: %w", req.URL.Host, werr)
		}
	}
}

func allowAllResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        http.Header{"Content-Type": []string{"text/plain"}},
		Request:       req,
	}
}

func isProbeTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
