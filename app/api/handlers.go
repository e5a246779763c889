package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/newsletter-relay/app/delivery"
	"github.com/lysyi3m/newsletter-relay/app/feed"
	"github.com/lysyi3m/newsletter-relay/app/ledger"
	"github.com/lysyi3m/newsletter-relay/app/pipeline"
	"github.com/lysyi3m/newsletter-relay/app/tasks"
)

func NewHandler(processor ProcessorInterface, sourceCache *feed.SourceCache, entries ledger.Ledger,
	settings SettingsStore, scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		processor:   processor,
		sourceCache: sourceCache,
		ledger:      entries,
		settings:    settings,
		scheduler:   scheduler,
		version:     version,
		startedAt:   time.Now(),
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"version":   h.version,
		"feeds":     h.sourceCache.GetSourceCount(),
		"timestamp": timestamp(),
	}

	count, err := h.ledger.Len(c.Request.Context())
	if err != nil {
		slog.Error("Ledger unavailable", "operation", "health", "error", err)
		health["status"] = "degraded"
		health["ledger"] = gin.H{"error": err.Error()}
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["ledger"] = gin.H{"entries": count}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStatus(c *gin.Context) {
	status := gin.H{
		"status":    "running",
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"running":   h.processor.IsRunning(),
		"lastCycle": h.processor.LastCycle(),
		"timestamp": timestamp(),
	}

	if h.scheduler != nil {
		status["scheduler"] = gin.H{
			"state":    "active",
			"schedule": h.scheduler.Spec(),
			"nextRun":  h.scheduler.NextRun().Format(time.RFC3339),
		}
	} else {
		status["scheduler"] = gin.H{"state": "inactive"}
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) ProcessFeeds(c *gin.Context) {
	slog.Info("Manual feed processing triggered via API")

	report, err := h.processor.RunCycle(c.Request.Context())
	if errors.Is(err, pipeline.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, gin.H{
			"success":   false,
			"error":     err.Error(),
			"timestamp": timestamp(),
		})
		return
	}
	if err != nil {
		slog.Error("Manual feed processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     err.Error(),
			"timestamp": timestamp(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Feed processing completed",
		"processed": report.Delivered,
		"report":    report,
		"timestamp": timestamp(),
	})
}

func (h *Handler) ProcessSingleFeed(c *gin.Context) {
	var req processSingleFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Feed URL is required",
			"details":   err.Error(),
			"timestamp": timestamp(),
		})
		return
	}

	source, ok := h.sourceCache.GetSource(req.FeedURL)
	if !ok {
		source = feed.Source{URL: req.FeedURL, Label: feed.DefaultSourceLabel}
	}
	if name := strings.TrimSpace(req.SourceName); name != "" {
		source.Label = name
	}

	slog.Info("Processing single feed via API", "feed", source.Label, "url", source.URL)

	report, err := h.processor.ProcessFeed(c.Request.Context(), source)
	if errors.Is(err, pipeline.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, gin.H{
			"success":   false,
			"error":     err.Error(),
			"timestamp": timestamp(),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     err.Error(),
			"timestamp": timestamp(),
		})
		return
	}

	response := gin.H{
		"success":    report.Status == pipeline.FeedSucceeded,
		"processed":  report.Delivered,
		"feedUrl":    source.URL,
		"sourceName": source.Label,
		"report":     report,
		"timestamp":  timestamp(),
	}
	if report.Status == pipeline.FeedFailed {
		response["error"] = report.Error
		c.JSON(http.StatusBadGateway, response)
		return
	}

	response["message"] = "Single feed processed successfully"
	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetConfig(c *gin.Context) {
	settings := h.settings.Settings()

	c.JSON(http.StatusOK, gin.H{
		"endpoint": settings.Endpoint,
		"apiKey":   maskKey(settings.APIKey),
	})
}

// UpdateConfig swaps the downstream settings. Deliveries already in flight
// finish with the settings they started with.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "A valid endpoint URL is required",
			"details": err.Error(),
		})
		return
	}

	settings := delivery.Settings{
		Endpoint: req.Endpoint,
		APIKey:   h.settings.Settings().APIKey,
	}
	if req.APIKey != nil {
		settings.APIKey = *req.APIKey
	}

	h.settings.UpdateSettings(settings)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Configuration saved",
		"endpoint": settings.Endpoint,
		"apiKey":   maskKey(settings.APIKey),
	})
}

func maskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}
