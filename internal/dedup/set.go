// Package dedup tracks product slugs claimed for detail enrichment within one
// crawl run.
package dedup

import (
	"sort"
	"sync"
)

// Set is a concurrency-safe claim registry. Claims are permanent for the
// lifetime of the Set; there is no release.
type Set struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{claimed: make(map[string]struct{})}
}

// TryClaim records slug and returns true on the first call for that slug, and
// false on every later call. The check and insert happen under one lock.
func (s *Set) TryClaim(slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claimed[slug]; ok {
		return false
	}
	s.claimed[slug] = struct{}{}
	return true
}

// Contains reports whether slug has been claimed.
func (s *Set) Contains(slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claimed[slug]
	return ok
}

// Len returns the number of claimed slugs.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claimed)
}

// Claimed returns the claimed slugs in sorted order.
func (s *Set) Claimed() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.claimed))
	for slug := range s.claimed {
		out = append(out, slug)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}
