package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Dev-PGVAA/tg-group-bot/internal/bot/tasks"
	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
)

// Scheduler manages scheduled tasks using the gocron library.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a new scheduler instance running in loc.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, loc *time.Location, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithLogger(schedulerLogger{logger.With("component", "gocron")}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// schedulerLogger routes gocron's own logging into slog and tags
// scheduler errors with a short kind.
type schedulerLogger struct {
	*slog.Logger
}

func (l schedulerLogger) Error(msg string, args ...any) {
	l.Logger.Error(msg, tagSchedulerErrors(args)...)
}

func tagSchedulerErrors(args []any) []any {
	out := make([]any, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		out = append(out, args[i])
		err, ok := args[i].(error)
		if !ok {
			continue
		}
		kind := "scheduler"
		switch {
		case errors.Is(err, gocron.ErrJobNotFound):
			kind = "job_not_found"
		case strings.Contains(err.Error(), "shutdown"):
			kind = "shutdown"
		}
		out = append(out, "error_kind", kind)
	}
	return out
}

// jobDefinition turns a task configuration into a gocron definition. A
// cron schedule wins over an interval.
func jobDefinition(tc config.TaskConfig) (gocron.JobDefinition, string, error) {
	switch {
	case tc.Schedule != "":
		return gocron.CronJob(tc.Schedule, true), tc.Schedule, nil
	case tc.Interval > 0:
		return gocron.DurationJob(tc.Interval), "every " + tc.Interval.String(), nil
	default:
		return nil, "", fmt.Errorf("no schedule or interval")
	}
}

// Start schedules and starts all enabled tasks based on the configuration.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
		s.scheduler.Start()
		s.running = true
		return nil
	}

	scheduledCount := 0
	for taskName, taskConfig := range s.cfg.Tasks {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Debug("Task not served by this process, skipping", "task_name", taskName)
			continue
		}

		def, when, err := jobDefinition(taskConfig)
		if err != nil {
			s.logger.Warn("Scheduled task enabled but has no schedule, skipping", "task_name", taskName)
			continue
		}

		_, err = s.scheduler.NewJob(
			def,
			gocron.NewTask(
				func(ctx context.Context, name string) {
					s.logger.Debug("Running scheduled task", "task_name", name)
					startTime := time.Now()
					if taskErr := taskFunc(ctx); taskErr != nil {
						s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
					}
					s.logger.Debug("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
				},
				context.Background(),
				taskName,
			),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", when, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", when)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount)

	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}

	s.logger.Info("Scheduler stopped successfully.")
	return nil
}

// JobCount reports how many jobs are scheduled.
func (s *Scheduler) JobCount() int {
	return len(s.scheduler.Jobs())
}
