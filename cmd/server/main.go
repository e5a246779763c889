package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/newsletter-relay/app/api"
	"github.com/lysyi3m/newsletter-relay/app/cfg"
	"github.com/lysyi3m/newsletter-relay/app/delivery"
	"github.com/lysyi3m/newsletter-relay/app/feed"
	"github.com/lysyi3m/newsletter-relay/app/ledger"
	"github.com/lysyi3m/newsletter-relay/app/pipeline"
	"github.com/lysyi3m/newsletter-relay/app/tasks"
)

const shutdownTimeout = 30 * time.Second

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogging(appCfg)

	if err := run(appCfg); err != nil {
		slog.Error("Newsletter relay stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogging(appCfg *cfg.Cfg) {
	level := slog.LevelInfo
	switch appCfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if appCfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting newsletter relay", "version", appCfg.Version)

	sourceCache := feed.NewSourceCache(appCfg.FeedsFile, appCfg.FeedURLs)
	if err := sourceCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed sources: %w", err)
	}
	if count := sourceCache.GetSourceCount(); count == 0 {
		slog.Warn("No feed sources configured", "feeds_file", appCfg.FeedsFile)
	} else {
		slog.Info("Feed sources loaded", "count", count, "enabled", len(sourceCache.GetEnabledSources()))
	}

	entries, err := ledger.Open(ledger.Options{
		Backend:       appCfg.LedgerBackend,
		Path:          appCfg.LedgerPath,
		RedisAddr:     appCfg.RedisAddr,
		RedisPassword: appCfg.RedisPassword,
		RedisKey:      appCfg.RedisKey,
		DatabaseURL:   appCfg.DatabaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer entries.Close()

	if err := entries.Load(ctx); err != nil {
		slog.Error("Failed to load delivery ledger, continuing without prior state: previously delivered entries may be delivered again",
			"backend", appCfg.LedgerBackend, "error", err)
	}

	httpClient := &http.Client{}

	deliveryClient := delivery.NewClient(httpClient, delivery.Settings{
		Endpoint: appCfg.APIEndpoint,
		APIKey:   appCfg.APIKey,
	}, appCfg.DeliveryTimeout)
	if appCfg.APIEndpoint == "" {
		slog.Warn("Downstream endpoint not configured, deliveries will fail until it is set", "env", "DISTRO_API_ENDPOINT")
	}

	orchestrator := pipeline.NewOrchestrator(
		sourceCache,
		feed.NewFetcher(httpClient, appCfg.UserAgent, appCfg.FetchTimeout, appCfg.MaxFeedBytes),
		feed.NewParser(),
		feed.NewFilterer(),
		feed.NewNormalizer(feed.NewMarkupStripper(), feed.NewNoiseFilter(), feed.NewContentExtractor()),
		deliveryClient,
		entries,
		pipeline.NewRatePacer(appCfg.SendInterval),
	)

	if appCfg.RunOnce {
		return runOnce(ctx, orchestrator)
	}

	scheduler, err := tasks.NewScheduler(appCfg.Schedule, orchestrator)
	if err != nil {
		return err
	}

	handler := api.NewHandler(orchestrator, sourceCache, entries, deliveryClient, scheduler, appCfg.Version)
	httpServer := &http.Server{
		Addr:              ":" + appCfg.Port,
		Handler:           api.NewServer(handler, appCfg.APIAccessKey),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // manual cycles respond when done
		IdleTimeout:       120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start()

		<-gCtx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}

		scheduler.Stop()
		slog.Info("Scheduler stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Newsletter relay shutdown complete")
	return nil
}

func runOnce(ctx context.Context, orchestrator *pipeline.Orchestrator) error {
	report, err := orchestrator.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("failed to run cycle: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
