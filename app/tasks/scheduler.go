package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrWorkerBusy = errors.New("scheduler worker is busy")

// Scheduler runs a cycle at startup and then at every tick of a cron schedule
// evaluated in UTC. It has a single worker: ticks that arrive while a task runs
// are dropped, never queued.
type Scheduler struct {
	spec      string
	schedule  cron.Schedule
	runner    CycleRunner
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
	nextRun   atomic.Pointer[time.Time]
}

func NewScheduler(spec string, runner CycleRunner) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return newScheduler(spec, schedule, runner), nil
}

func newScheduler(spec string, schedule cron.Schedule, runner CycleRunner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		spec:      spec,
		schedule:  schedule,
		runner:    runner,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface),
	}
}

func (s *Scheduler) Start() {
	next := s.schedule.Next(time.Now().UTC())
	s.nextRun.Store(&next)

	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			timer := time.NewTimer(time.Until(next))

			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if err := s.EnqueueTask(NewRunCycleTask(TriggerSchedule, s.runner)); err != nil {
					slog.Warn("Scheduled cycle dropped", "scheduled_at", next, "error", err)
				}
			}

			next = s.schedule.Next(time.Now().UTC())
			s.nextRun.Store(&next)
		}
	}()

	slog.Info("Scheduler started", "schedule", s.spec, "next_run", next)
}

// Stop cancels the scheduler context and waits for the task in flight.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask hands task to the worker if it is idle.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return ErrWorkerBusy
	}
}

func (s *Scheduler) NextRun() time.Time {
	if next := s.nextRun.Load(); next != nil {
		return *next
	}
	return s.schedule.Next(time.Now().UTC())
}

func (s *Scheduler) Spec() string {
	return s.spec
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	s.executeTask(NewRunCycleTask(TriggerStartup, s.runner))

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	if err := task.Execute(s.ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Debug("Task cancelled", "type", string(task.GetType()), "id", task.GetID())
			return
		}
		slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "trigger", string(task.GetTrigger()), "error", err)
	}
}
