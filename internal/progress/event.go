package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart          Stage = "RUN_START"
	StageRunDone           Stage = "RUN_DONE"
	StagePageFetched       Stage = "PAGE_FETCHED"
	StageCategoryExhausted Stage = "CATEGORY_EXHAUSTED"
	StageCategoryAborted   Stage = "CATEGORY_ABORTED"
	StageProductClaimed    Stage = "PRODUCT_CLAIMED"
	StageProductDuplicate  Stage = "PRODUCT_DUPLICATE"
	StageEntrySkipped      Stage = "ENTRY_SKIPPED"
	StageRecordWritten     Stage = "RECORD_WRITTEN"
	StageDetailFailed      Stage = "DETAIL_FAILED"
	StageSinkFailed        Stage = "SINK_FAILED"
)

// Event captures a single component of crawl progress.
type Event struct {
	RunID    string
	TS       time.Time
	Stage    Stage
	Category string
	Page     int
	Slug     string
	URL      string
	// Count carries the number of entries on a fetched page.
	Count int
	Dur   time.Duration
	// Note carries error text for failure stages.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StagePageFetched, StageCategoryExhausted, StageCategoryAborted, StageEntrySkipped:
		if e.Category == "" {
			return fmt.Errorf("%s requires category", e.Stage)
		}
	case StageProductClaimed, StageProductDuplicate, StageRecordWritten, StageDetailFailed, StageSinkFailed:
		if e.Slug == "" {
			return fmt.Errorf("%s requires slug", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// IsDrop reports whether the event marks lost coverage.
func (e Event) IsDrop() bool {
	switch e.Stage {
	case StageCategoryAborted, StageEntrySkipped, StageDetailFailed, StageSinkFailed:
		return true
	default:
		return false
	}
}
