// Package api hosts the operator HTTP server for a running crawl. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the live run summary, and
//     GET /v1/status/categories/{category} for a single category.
package api
