package api

import (
	"context"
	"time"

	"github.com/lysyi3m/newsletter-relay/app/delivery"
	"github.com/lysyi3m/newsletter-relay/app/feed"
	"github.com/lysyi3m/newsletter-relay/app/ledger"
	"github.com/lysyi3m/newsletter-relay/app/pipeline"
	"github.com/lysyi3m/newsletter-relay/app/tasks"
)

type ProcessorInterface interface {
	RunCycle(ctx context.Context) (*pipeline.CycleReport, error)
	ProcessFeed(ctx context.Context, source feed.Source) (*pipeline.FeedReport, error)
	IsRunning() bool
	LastCycle() *pipeline.CycleReport
}

type SettingsStore interface {
	Settings() delivery.Settings
	UpdateSettings(settings delivery.Settings)
}

var (
	_ ProcessorInterface = (*pipeline.Orchestrator)(nil)
	_ SettingsStore      = (*delivery.Client)(nil)
)

type Handler struct {
	processor   ProcessorInterface
	sourceCache *feed.SourceCache
	ledger      ledger.Ledger
	settings    SettingsStore
	scheduler   tasks.TaskSchedulerInterface
	version     string
	startedAt   time.Time
}

type processSingleFeedRequest struct {
	FeedURL    string `json:"feedUrl" binding:"required,url"`
	SourceName string `json:"sourceName"`
}

type updateConfigRequest struct {
	Endpoint string  `json:"endpoint" binding:"required,url"`
	APIKey   *string `json:"apiKey"`
}
