package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/quizbot/internal/bot/tasks"
	"github.com/edgard/quizbot/internal/config"
	"github.com/edgard/quizbot/internal/cycle"
	"github.com/edgard/quizbot/internal/database"
	applog "github.com/edgard/quizbot/internal/logger"
)

// PhaseSource looks up the last recorded run of a task.
type PhaseSource interface {
	LastCycleRun(ctx context.Context, task string) (*database.CycleRun, error)
}

// Scheduler manages scheduled tasks using the gocron library.
// Jobs never overlap: gocron runs at most one job at a time.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	phase     PhaseSource
	clock     clockwork.Clock
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a new scheduler instance using gocron. phase may be nil,
// in which case every task starts according to its own configuration.
func NewScheduler(
	logger *slog.Logger,
	cfg *config.SchedulerConfig,
	taskMap map[string]tasks.ScheduledTaskFunc,
	phase PhaseSource,
	clock clockwork.Clock,
) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(
		gocron.WithLogger(applog.NewGocronLogger(logger)),
		gocron.WithClock(clock),
		gocron.WithLimitConcurrentJobs(1, gocron.LimitModeWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
		phase:     phase,
		clock:     clock,
	}, nil
}

// Start schedules all enabled tasks and starts gocron. Tasks receive ctx, so
// cancelling it aborts an in-flight run. If any enabled, registered task cannot
// be scheduled, nothing is started and the errors are returned.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.logger.Debug("Configuring scheduler jobs...")

	var (
		jobs     []gocron.Job
		schedErr []error
	)
	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
	} else {
		for _, taskName := range slices.Sorted(maps.Keys(s.cfg.Tasks)) {
			job, err := s.schedule(ctx, taskName, s.cfg.Tasks[taskName])
			if err != nil {
				s.logger.Error("Failed to schedule task", "task_name", taskName, "error", err)
				schedErr = append(schedErr, fmt.Errorf("task %s: %w", taskName, err))
				continue
			}
			if job != nil {
				jobs = append(jobs, job)
			}
		}
	}

	// Every enabled, registered task must be scheduled.
	if len(schedErr) > 0 {
		if err := s.scheduler.Shutdown(); err != nil {
			s.logger.Warn("Error releasing scheduler after failed start", "error", err)
		}
		return errors.Join(schedErr...)
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", len(jobs))

	for _, job := range jobs {
		if next, err := job.NextRun(); err == nil {
			s.logger.Info("Next run", "task_name", job.Name(), "at", next)
		}
	}

	return nil
}

// schedule registers one task. Disabled and unregistered tasks are skipped with a nil job.
func (s *Scheduler) schedule(ctx context.Context, taskName string, taskConfig config.TaskConfig) (gocron.Job, error) {
	if !taskConfig.Enabled {
		s.logger.Info("Skipping disabled task", "task_name", taskName)
		return nil, nil
	}

	taskFunc, exists := s.taskMap[taskName]
	if !exists {
		s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
		return nil, nil
	}

	var definition gocron.JobDefinition
	switch {
	case taskConfig.Schedule != "":
		definition = gocron.CronJob(taskConfig.Schedule, true)
	case taskConfig.Interval > 0:
		definition = gocron.DurationJob(taskConfig.Interval)
	default:
		return nil, fmt.Errorf("task is enabled but has no interval or schedule")
	}

	opts := []gocron.JobOption{
		gocron.WithName(taskName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	now := s.clock.Now()
	var last *database.CycleRun
	if s.phase != nil {
		var err error
		if last, err = s.phase.LastCycleRun(ctx, taskName); err != nil {
			s.logger.Warn("Could not read last run, using configured start", "task_name", taskName, "error", err)
		}
	}
	switch at := firstRun(taskConfig, last, now); {
	case at.IsZero():
	case at.After(now):
		opts = append(opts, gocron.WithStartAt(gocron.WithStartDateTime(at)))
		s.logger.Info("Resuming task phase from run ledger", "task_name", taskName, "last_started_at", last.StartedAt, "start_at", at)
	default:
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := s.scheduler.NewJob(
		definition,
		gocron.NewTask(
			func(ctx context.Context, name string) {
				s.logger.Info("Running scheduled task", "task_name", name)
				startTime := s.clock.Now()
				if taskErr := taskFunc(ctx); taskErr != nil {
					s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
				}
				s.logger.Info("Finished scheduled task", "task_name", name, "duration", s.clock.Since(startTime))
			},
			ctx,
			taskName,
		),
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("register job (schedule %q, interval %s): %w", taskConfig.Schedule, taskConfig.Interval, err)
	}

	s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule, "interval", taskConfig.Interval)
	return job, nil
}

// firstRun decides when a task first fires after startup. The zero time leaves
// it to gocron: one interval, or the next cron slot, from now. Interval tasks
// with a recorded run keep the phase of that run.
func firstRun(taskConfig config.TaskConfig, last *database.CycleRun, now time.Time) time.Time {
	if taskConfig.Schedule == "" && last != nil {
		return cycle.NextStart(last.StartedAt, taskConfig.Interval, now)
	}
	if taskConfig.RunOnStart {
		return now
	}
	return time.Time{}
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
