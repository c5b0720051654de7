// Package schedule implements the hourly midnight-reset job for recurring
// tasks.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/questkeeper/internal/store"
	"github.com/dukerupert/questkeeper/internal/task"
)

// DefaultTimezone is used for parents with no stored timezone, and as the
// fallback when a stored zone name fails to load.
const DefaultTimezone = "America/New_York"

// Report summarizes one scheduler run.
type Report struct {
	Message              string       `json:"message"`
	UsersProcessed       int          `json:"usersProcessed"`
	UsersAtMidnight      int          `json:"usersAtMidnight"`
	TotalTasksProcessed  int          `json:"totalTasksProcessed"`
	TotalTasksSuccessful int          `json:"totalTasksSuccessful"`
	Results              []UserResult `json:"results"`
}

// UserResult reports the outcome for one parent whose local clock was in
// the midnight hour, or whose task fetch failed.
type UserResult struct {
	UserID          int64    `json:"userId"`
	Timezone        string   `json:"timezone"`
	LocalHour       int      `json:"localHour"`
	TasksProcessed  int      `json:"tasksProcessed"`
	TasksSuccessful int      `json:"tasksSuccessful"`
	Errors          []string `json:"errors,omitempty"`
}

// Scheduler resets each parent's daily and weekly tasks back to assigned at
// that parent's local midnight. It runs once per hour and selects the
// parents whose local hour is 0, so every parent is caught exactly once per
// day regardless of UTC offset. Across a daylight-saving transition a local
// day can have 23 or 25 hours, which can skip or double-fire a parent; that
// matches the observed behavior and is left as-is.
type Scheduler struct {
	mu       sync.RWMutex
	users    *store.UserStore
	tasks    *store.TaskStore
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(users *store.UserStore, tasks *store.TaskStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		users:    users,
		tasks:    tasks,
		logger:   logger,
		interval: time.Hour,
	}
}

// Start begins the hourly loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(time.Now().UTC()); err != nil {
					s.logger.Error("scheduler run failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce evaluates every parent at the given instant and resets recurring
// tasks for those at local midnight. Listing the parents is the only fatal
// failure; per-user and per-task errors are recorded in the report and
// never abort sibling work.
func (s *Scheduler) RunOnce(now time.Time) (*Report, error) {
	parents, err := s.users.ListParents()
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}

	report := &Report{UsersProcessed: len(parents)}

	for _, parent := range parents {
		tz := parent.Timezone
		if tz == "" {
			tz = DefaultTimezone
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			s.logger.Warn("unloadable timezone, using default",
				"user_id", parent.ID, "timezone", tz, "error", err)
			tz = DefaultTimezone
			loc, err = time.LoadLocation(tz)
			if err != nil {
				return nil, fmt.Errorf("load default timezone: %w", err)
			}
		}

		localHour := now.In(loc).Hour()
		if localHour != 0 {
			continue
		}
		report.UsersAtMidnight++

		result := UserResult{UserID: parent.ID, Timezone: tz, LocalHour: localHour}

		tasks, err := s.tasks.ListRecurringByCreator(parent.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("list tasks: %v", err))
			s.logger.Error("scheduler task fetch failed", "user_id", parent.ID, "error", err)
			report.Results = append(report.Results, result)
			continue
		}

		for _, t := range tasks {
			result.TasksProcessed++
			report.TotalTasksProcessed++

			next := task.NextOccurrence(task.Frequency(t.Frequency), now)
			if next == nil {
				result.Errors = append(result.Errors, fmt.Sprintf("task %d: not recurring", t.ID))
				continue
			}

			if err := s.tasks.ResetForSchedule(t.ID, *next, now); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("task %d: %v", t.ID, err))
				s.logger.Error("scheduler task reset failed", "task_id", t.ID, "error", err)
				continue
			}
			result.TasksSuccessful++
			report.TotalTasksSuccessful++
		}

		report.Results = append(report.Results, result)
	}

	report.Message = fmt.Sprintf(
		"evaluated %d parents, %d at midnight, reset %d of %d tasks",
		report.UsersProcessed, report.UsersAtMidnight,
		report.TotalTasksSuccessful, report.TotalTasksProcessed,
	)
	s.logger.Info("scheduler run complete",
		"users_processed", report.UsersProcessed,
		"users_at_midnight", report.UsersAtMidnight,
		"tasks_processed", report.TotalTasksProcessed,
		"tasks_successful", report.TotalTasksSuccessful,
	)
	return report, nil
}
