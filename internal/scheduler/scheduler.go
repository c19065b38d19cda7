package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs the worker's periodic maintenance jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler. A job never overlaps with its own
// previous run.
func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{scheduler: s}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleInterval schedules a job to run at regular intervals. The first run
// happens one interval after Start.
func (s *Scheduler) ScheduleInterval(tag string, interval time.Duration, job func()) error {
	_, err := s.scheduler.Every(interval).WaitForSchedule().Tag(tag).Do(job)
	return err
}
