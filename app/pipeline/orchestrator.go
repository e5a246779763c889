package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/newsletter-relay/app/delivery"
	"github.com/lysyi3m/newsletter-relay/app/feed"
	"github.com/lysyi3m/newsletter-relay/app/ledger"
)

var ErrCycleInProgress = errors.New("feed processing is already in progress")

// recordTimeout bounds the ledger write that follows a delivery.
const recordTimeout = 10 * time.Second

type Deliverer interface {
	Deliver(ctx context.Context, record delivery.Record) ([]byte, error)
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeSkipped
	outcomeFiltered
	outcomeFailed
	outcomeInterrupted
)

// Orchestrator runs feeds through fetch, parse, dedup, normalize, deliver and
// record. Only one run is active at a time; a second caller gets ErrCycleInProgress.
type Orchestrator struct {
	sources    *feed.SourceCache
	fetcher    *feed.Fetcher
	parser     *feed.Parser
	filterer   *feed.Filterer
	normalizer *feed.Normalizer
	deliverer  Deliverer
	ledger     ledger.Ledger
	pacer      Pacer

	mu         sync.Mutex
	running    atomic.Bool
	lastReport atomic.Pointer[CycleReport]
}

func NewOrchestrator(sources *feed.SourceCache, fetcher *feed.Fetcher, parser *feed.Parser, filterer *feed.Filterer,
	normalizer *feed.Normalizer, deliverer Deliverer, entries ledger.Ledger, pacer Pacer) *Orchestrator {
	return &Orchestrator{
		sources:    sources,
		fetcher:    fetcher,
		parser:     parser,
		filterer:   filterer,
		normalizer: normalizer,
		deliverer:  deliverer,
		ledger:     entries,
		pacer:      pacer,
	}
}

func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// LastCycle returns the report of the most recent completed cycle, or nil.
func (o *Orchestrator) LastCycle() *CycleReport {
	return o.lastReport.Load()
}

// RunCycle processes every enabled source in order. A failing feed never stops
// the cycle. Cancelling ctx stops the cycle after the entry in flight.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !o.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer o.mu.Unlock()

	o.running.Store(true)
	defer o.running.Store(false)

	if err := o.sources.Run(); err != nil {
		slog.Warn("Failed to reload feed sources, keeping previous", "error", err)
	}

	report := newCycleReport()
	sources := o.sources.GetEnabledSources()

	slog.Info("Cycle started", "id", report.ID, "feeds", len(sources))

	for _, source := range sources {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		report.add(o.processFeed(ctx, source))
	}

	report.finish()
	o.lastReport.Store(report)

	slog.Info("Cycle completed",
		"id", report.ID,
		"duration", report.FinishedAt.Sub(report.StartedAt),
		"feeds", len(report.Feeds),
		"failed_feeds", report.FailedFeeds,
		"delivered", report.Delivered,
		"skipped", report.Skipped,
		"filtered", report.Filtered,
		"failed", report.Failed,
		"interrupted", report.Interrupted)

	return report, nil
}

// ProcessFeed runs a single source outside the regular cycle.
func (o *Orchestrator) ProcessFeed(ctx context.Context, source feed.Source) (*FeedReport, error) {
	if !o.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer o.mu.Unlock()

	o.running.Store(true)
	defer o.running.Store(false)

	return o.processFeed(ctx, source), nil
}

func (o *Orchestrator) processFeed(ctx context.Context, source feed.Source) *FeedReport {
	startedAt := time.Now()
	report := &FeedReport{
		URL:    source.URL,
		Label:  source.Label,
		Status: FeedSucceeded,
	}
	defer report.finish(startedAt)

	data, err := o.fetcher.Run(ctx, source.URL)
	if err != nil {
		report.fail(StageFetch, err)
		slog.Error("Feed fetch failed", "feed", source.Label, "url", source.URL, "error", err)
		return report
	}

	entries, err := o.parser.Run(data)
	if err != nil {
		report.fail(StageParse, err)
		slog.Error("Feed parse failed", "feed", source.Label, "url", source.URL, "error", err)
		return report
	}

	report.Total = len(entries)

	for _, entry := range entries {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		result, err := o.processEntry(ctx, source, entry)
		switch result {
		case outcomeDelivered:
			report.Delivered++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFiltered:
			report.Filtered++
		case outcomeFailed:
			report.Failed++
			report.Failures = append(report.Failures, EntryFailure{
				Title:       entry.Title,
				Fingerprint: entry.Fingerprint(),
				Error:       err.Error(),
			})
		case outcomeInterrupted:
			report.Interrupted = true
		}
		if report.Interrupted {
			break
		}
	}

	slog.Info("Feed processed",
		"feed", source.Label,
		"url", source.URL,
		"duration", time.Since(startedAt),
		"total", report.Total,
		"delivered", report.Delivered,
		"skipped", report.Skipped,
		"filtered", report.Filtered,
		"failed", report.Failed)

	return report
}

func (o *Orchestrator) processEntry(ctx context.Context, source feed.Source, entry feed.Entry) (outcome, error) {
	fingerprint := entry.Fingerprint()

	if excluded, reason := o.filterer.Run(entry, source.Filters); excluded {
		slog.Debug("Entry filtered", "feed", source.Label, "title", entry.Title, "reason", reason)
		return outcomeFiltered, nil
	}

	delivered, err := o.ledger.Contains(ctx, fingerprint)
	if err != nil {
		slog.Error("Ledger lookup failed, entry left for next cycle", "feed", source.Label, "title", entry.Title, "error", err)
		return outcomeFailed, err
	}
	if delivered {
		slog.Debug("Entry already delivered", "feed", source.Label, "fingerprint", fingerprint)
		return outcomeSkipped, nil
	}

	record := o.normalizer.Run(entry, source)

	if err := o.pacer.Wait(ctx); err != nil {
		return outcomeInterrupted, nil
	}

	// Once started, an entry completes even if ctx is cancelled; the
	// client and ledger timeouts bound it.
	entryCtx := context.WithoutCancel(ctx)

	if _, err := o.deliverer.Deliver(entryCtx, record); err != nil {
		slog.Error("Entry delivery failed", "feed", source.Label, "title", record.Title, "fingerprint", fingerprint, "error", err)
		return outcomeFailed, err
	}

	recordCtx, cancel := context.WithTimeout(entryCtx, recordTimeout)
	defer cancel()

	err = o.ledger.Record(recordCtx, fingerprint)
	switch {
	case errors.Is(err, ledger.ErrAlreadyRecorded):
		slog.Warn("Entry was recorded by another worker during delivery", "feed", source.Label, "title", record.Title, "fingerprint", fingerprint)
		return outcomeSkipped, nil
	case err != nil:
		slog.Error("Entry delivered but not recorded, it may be delivered again", "feed", source.Label, "title", record.Title, "fingerprint", fingerprint, "error", err)
		return outcomeFailed, fmt.Errorf("delivered but not recorded: %w", err)
	}

	slog.Info("Entry delivered", "feed", source.Label, "title", record.Title, "fingerprint", fingerprint)
	return outcomeDelivered, nil
}
