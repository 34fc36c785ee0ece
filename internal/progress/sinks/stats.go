package sinks

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// CategoryStats aggregates one category's progress.
type CategoryStats struct {
	Pages      int    `json:"pages"`
	Entries    int    `json:"entries"`
	Claimed    int    `json:"claimed"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
}

// Snapshot is a point-in-time copy of a run's aggregated progress.
type Snapshot struct {
	RunID         string                   `json:"run_id"`
	Running       bool                     `json:"running"`
	Written       int                      `json:"records_written"`
	DetailFailed  int                      `json:"detail_failed"`
	SinkFailed    int                      `json:"sink_failed"`
	Categories    map[string]CategoryStats `json:"categories"`
	DroppedSlugs  []string                 `json:"dropped_slugs,omitempty"`
	DurationMilli int64                    `json:"duration_ms,omitempty"`
}

// Category states reported in CategoryStats.State.
const (
	StatePaginating = "paginating"
	StateExhausted  = "exhausted"
	StateAborted    = "aborted"
)

// StatsSink keeps an in-memory summary of the run for the CLI report and the
// status endpoint.
type StatsSink struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatsSink returns an empty StatsSink.
func NewStatsSink() *StatsSink {
	return &StatsSink{snap: Snapshot{Categories: map[string]CategoryStats{}}}
}

// Consume folds the batch into the summary.
func (s *StatsSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatsSink) apply(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.snap.RunID = evt.RunID
		s.snap.Running = true
	case progress.StageRunDone:
		s.snap.Running = false
		s.snap.DurationMilli = evt.Dur.Milliseconds()
	case progress.StageRecordWritten:
		s.snap.Written++
	case progress.StageDetailFailed:
		s.snap.DetailFailed++
		s.snap.DroppedSlugs = append(s.snap.DroppedSlugs, evt.Slug)
	case progress.StageSinkFailed:
		s.snap.SinkFailed++
		s.snap.DroppedSlugs = append(s.snap.DroppedSlugs, evt.Slug)
	}
	if evt.Category == "" {
		return
	}
	cat := s.snap.Categories[evt.Category]
	if cat.State == "" {
		cat.State = StatePaginating
	}
	switch evt.Stage {
	case progress.StagePageFetched:
		cat.Pages++
		cat.Entries += evt.Count
	case progress.StageProductClaimed:
		cat.Claimed++
	case progress.StageProductDuplicate:
		cat.Duplicates++
	case progress.StageEntrySkipped:
		cat.Skipped++
	case progress.StageCategoryExhausted:
		cat.State = StateExhausted
	case progress.StageCategoryAborted:
		cat.State = StateAborted
		cat.Error = evt.Note
	}
	s.snap.Categories[evt.Category] = cat
}

// Snapshot returns a copy of the current summary.
func (s *StatsSink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.Categories = make(map[string]CategoryStats, len(s.snap.Categories))
	for k, v := range s.snap.Categories {
		out.Categories[k] = v
	}
	out.DroppedSlugs = append([]string(nil), s.snap.DroppedSlugs...)
	sort.Strings(out.DroppedSlugs)
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *StatsSink) Close(context.Context) error {
	return nil
}
