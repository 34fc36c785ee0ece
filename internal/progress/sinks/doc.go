// Package sinks contains progress.Sink implementations: structured logs,
// Prometheus counters, and an in-memory run summary.
package sinks
