package tasks

import "time"

// TaskSchedulerInterface is the scheduler surface used by main and the API.
//
//	scheduler, err := NewScheduler("*/5 * * * *", orchestrator)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	NextRun() time.Time
	Spec() string
}
