// Package scheduler runs background maintenance on the local cache using
// gocron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/yuehan/english-tutor/internal/config"
)

// TaskFunc is a schedulable unit of background work.
type TaskFunc func(ctx context.Context) error

// Scheduler manages cron-scheduled tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
	log       *slog.Logger
	cfg       config.SchedulerConfig
	tasks     map[string]TaskFunc
	mu        sync.Mutex
	running   bool
}

// New creates a scheduler over the given task registry. Task names map to
// cron expressions in the configuration; an empty expression disables the
// task.
func New(log *slog.Logger, cfg config.SchedulerConfig, tasks map[string]TaskFunc) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		log:       log.With("component", "scheduler"),
		cfg:       cfg,
		tasks:     tasks,
	}, nil
}

// Start registers all configured tasks and begins ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduled := 0
	for name, schedule := range s.schedules() {
		if schedule == "" {
			s.log.Info("Skipping disabled task", "task_name", name)
			continue
		}

		taskFunc, ok := s.tasks[name]
		if !ok {
			s.log.Warn("Task configured but not registered, skipping", "task_name", name)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(schedule, true),
			gocron.NewTask(
				func(ctx context.Context, name string) {
					s.log.Info("Running scheduled task", "task_name", name)
					startTime := time.Now()
					if taskErr := taskFunc(ctx); taskErr != nil {
						s.log.Error("Scheduled task failed", "task_name", name, "error", taskErr)
					}
					s.log.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
				},
				context.Background(),
				name,
			),
			gocron.WithName(name),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule task %q (%q): %w", name, schedule, err)
		}

		s.log.Info("Scheduled task", "task_name", name, "schedule", schedule)
		scheduled++
	}

	s.scheduler.Start()
	s.running = true
	s.log.Info("Scheduler started", "tasks_scheduled", scheduled)
	return nil
}

// schedules maps task names to their configured cron expressions.
func (s *Scheduler) schedules() map[string]string {
	return map[string]string{
		TaskMaintenance: s.cfg.Maintenance,
	}
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.scheduler.Shutdown(); err != nil {
		s.log.Error("Error during scheduler shutdown", "error", err)
		s.running = false
		return err
	}

	s.running = false
	s.log.Info("Scheduler stopped")
	return nil
}
