// Package crawler defines the domain types, collaborator interfaces, and error
// taxonomy shared by the catalog crawl pipeline: listing summaries, detail
// records, the canonical output record, and the fetch/sink/dedup contracts the
// paginator, enricher, and orchestrator are built on.
package crawler
