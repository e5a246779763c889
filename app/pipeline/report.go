package pipeline

import (
	"time"

	"github.com/google/uuid"
)

type FeedStatus string

const (
	FeedSucceeded FeedStatus = "succeeded"
	FeedFailed    FeedStatus = "failed"
)

// Stage names the step a failed feed stopped at.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageParse Stage = "parse"
)

type EntryFailure struct {
	Title       string `json:"title"`
	Fingerprint string `json:"fingerprint"`
	Error       string `json:"error"`
}

type FeedReport struct {
	URL         string         `json:"url"`
	Label       string         `json:"label"`
	Status      FeedStatus     `json:"status"`
	Stage       Stage          `json:"stage,omitempty"`
	Error       string         `json:"error,omitempty"`
	Total       int            `json:"total"`
	Delivered   int            `json:"delivered"`
	Skipped     int            `json:"skipped"`
	Filtered    int            `json:"filtered"`
	Failed      int            `json:"failed"`
	Failures    []EntryFailure `json:"failures,omitempty"`
	Interrupted bool           `json:"interrupted,omitempty"`
	Duration    time.Duration  `json:"-"`
	DurationMs  int64          `json:"durationMs"`
}

func (r *FeedReport) fail(stage Stage, err error) {
	r.Status = FeedFailed
	r.Stage = stage
	r.Error = err.Error()
}

func (r *FeedReport) finish(startedAt time.Time) {
	r.Duration = time.Since(startedAt)
	r.DurationMs = r.Duration.Milliseconds()
}

// CycleReport summarizes one pass over all enabled sources.
type CycleReport struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	Feeds       []*FeedReport `json:"feeds"`
	Delivered   int           `json:"delivered"`
	Skipped     int           `json:"skipped"`
	Filtered    int           `json:"filtered"`
	Failed      int           `json:"failed"`
	FailedFeeds int           `json:"failedFeeds"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

func newCycleReport() *CycleReport {
	return &CycleReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Feeds:     []*FeedReport{},
	}
}

func (r *CycleReport) add(feed *FeedReport) {
	r.Feeds = append(r.Feeds, feed)
	r.Delivered += feed.Delivered
	r.Skipped += feed.Skipped
	r.Filtered += feed.Filtered
	r.Failed += feed.Failed
	if feed.Status == FeedFailed {
		r.FailedFeeds++
	}
	if feed.Interrupted {
		r.Interrupted = true
	}
}

func (r *CycleReport) finish() {
	r.FinishedAt = time.Now().UTC()
}
