// Package progress carries the crawl run's report side channel: structured
// events for every page, claim, drop, and write, batched by a Hub and fanned
// out to sinks so undercoverage is visible to operators.
package progress
