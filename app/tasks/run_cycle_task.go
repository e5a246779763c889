package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/newsletter-relay/app/pipeline"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.CycleReport, error)
}

type RunCycleTask struct {
	Task
	runner CycleRunner
}

func NewRunCycleTask(trigger Trigger, runner CycleRunner) *RunCycleTask {
	return &RunCycleTask{
		Task:   NewTask(TaskTypeRunCycle, trigger),
		runner: runner,
	}
}

func (t *RunCycleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report, err := t.runner.RunCycle(ctx)
	if errors.Is(err, pipeline.ErrCycleInProgress) {
		slog.Info("Cycle already in progress, task skipped", "id", t.ID, "trigger", string(t.Trigger))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run cycle: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"trigger", string(t.Trigger),
		"cycle", report.ID,
		"duration", t.GetDuration(),
		"delivered", report.Delivered,
		"failed", report.Failed)

	return nil
}
