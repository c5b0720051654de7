package schedule

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/questkeeper/internal/database"
	"github.com/dukerupert/questkeeper/internal/model"
	"github.com/dukerupert/questkeeper/internal/store"
)

type schedTestEnv struct {
	db    *sql.DB
	sched *Scheduler
	users *store.UserStore
	tasks *store.TaskStore
}

func setupSchedTest(t *testing.T) *schedTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	tasks := store.NewTaskStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &schedTestEnv{
		db:    db,
		sched: NewScheduler(users, tasks, logger),
		users: users,
		tasks: tasks,
	}
}

func (env *schedTestEnv) createParent(t *testing.T, name, timezone string) int64 {
	t.Helper()
	parent, err := env.users.Create(name, model.RoleParent, nil, timezone)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	return parent.ID
}

// midnightIn returns a UTC instant that falls inside the midnight hour of
// the named zone on the given date.
func midnightIn(t *testing.T, zone string, year int, month time.Month, day int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	if err != nil {
		t.Fatalf("load location %s: %v", zone, err)
	}
	return time.Date(year, month, day, 0, 30, 0, 0, loc).UTC()
}

func TestRunOnceResetsAtLocalMidnight(t *testing.T) {
	env := setupSchedTest(t)
	parent := env.createParent(t, "Dana", "America/New_York")

	created, err := env.tasks.Create("Dishes", "", 5, "daily", parent, nil, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.tasks.UpdateStatus(created.ID, "completed"); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	now := midnightIn(t, "America/New_York", 2026, time.March, 2)
	report, err := env.sched.RunOnce(now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	if report.UsersProcessed != 1 || report.UsersAtMidnight != 1 {
		t.Errorf("processed=%d at_midnight=%d, want 1 and 1", report.UsersProcessed, report.UsersAtMidnight)
	}
	if report.TotalTasksSuccessful != 1 {
		t.Errorf("tasks_successful = %d, want 1", report.TotalTasksSuccessful)
	}

	got, err := env.tasks.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != "assigned" {
		t.Errorf("status = %q, want assigned", got.Status)
	}
	wantNext := now.Add(24 * time.Hour)
	if got.NextOccurrence == nil || !got.NextOccurrence.Equal(wantNext) {
		t.Errorf("next_occurrence = %v, want %v", got.NextOccurrence, wantNext)
	}
}

func TestRunOnceWeeklyAdvancesSevenDays(t *testing.T) {
	env := setupSchedTest(t)
	parent := env.createParent(t, "Dana", "America/New_York")

	created, err := env.tasks.Create("Trash", "", 10, "weekly", parent, nil, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	now := midnightIn(t, "America/New_York", 2026, time.March, 2)
	if _, err := env.sched.RunOnce(now); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, err := env.tasks.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	wantNext := now.Add(7 * 24 * time.Hour)
	if got.NextOccurrence == nil || !got.NextOccurrence.Equal(wantNext) {
		t.Errorf("next_occurrence = %v, want %v", got.NextOccurrence, wantNext)
	}
}

func TestRunOnceSkipsOutsideMidnightHour(t *testing.T) {
	env := setupSchedTest(t)
	parent := env.createParent(t, "Dana", "America/New_York")

	created, err := env.tasks.Create("Dishes", "", 5, "daily", parent, nil, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.tasks.UpdateStatus(created.ID, "completed"); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	// 13:00 in New York.
	loc, _ := time.LoadLocation("America/New_York")
	now := time.Date(2026, time.March, 2, 13, 0, 0, 0, loc).UTC()

	report, err := env.sched.RunOnce(now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if report.UsersAtMidnight != 0 {
		t.Errorf("users_at_midnight = %d, want 0", report.UsersAtMidnight)
	}

	got, _ := env.tasks.GetByID(created.ID)
	if got.Status != "completed" {
		t.Errorf("status = %q, want completed (untouched)", got.Status)
	}
}

func TestRunOnceIgnoresOneOffTasks(t *testing.T) {
	env := setupSchedTest(t)
	parent := env.createParent(t, "Dana", "America/New_York")

	created, err := env.tasks.Create("Clean garage", "", 20, "once", parent, nil, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.tasks.UpdateStatus(created.ID, "completed"); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	now := midnightIn(t, "America/New_York", 2026, time.March, 2)
	report, err := env.sched.RunOnce(now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if report.TotalTasksProcessed != 0 {
		t.Errorf("tasks_processed = %d, want 0", report.TotalTasksProcessed)
	}

	got, _ := env.tasks.GetByID(created.ID)
	if got.Status != "completed" {
		t.Errorf("status = %q, want completed (untouched)", got.Status)
	}
}

func TestRunOnceSelectsByEachParentsZone(t *testing.T) {
	env := setupSchedTest(t)

	// Midnight in New York is still evening in Los Angeles.
	ny := env.createParent(t, "Dana", "America/New_York")
	la := env.createParent(t, "Sam", "America/Los_Angeles")

	nyTask, err := env.tasks.Create("Dishes", "", 5, "daily", ny, nil, nil)
	if err != nil {
		t.Fatalf("create ny task: %v", err)
	}
	laTask, err := env.tasks.Create("Laundry", "", 5, "daily", la, nil, nil)
	if err != nil {
		t.Fatalf("create la task: %v", err)
	}
	for _, id := range []int64{nyTask.ID, laTask.ID} {
		if _, err := env.tasks.UpdateStatus(id, "pending_approval"); err != nil {
			t.Fatalf("mark pending: %v", err)
		}
	}

	now := midnightIn(t, "America/New_York", 2026, time.March, 2)
	report, err := env.sched.RunOnce(now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	if report.UsersProcessed != 2 {
		t.Errorf("users_processed = %d, want 2", report.UsersProcessed)
	}
	if report.UsersAtMidnight != 1 {
		t.Errorf("users_at_midnight = %d, want 1", report.UsersAtMidnight)
	}

	gotNY, _ := env.tasks.GetByID(nyTask.ID)
	if gotNY.Status != "assigned" {
		t.Errorf("ny status = %q, want assigned", gotNY.Status)
	}
	gotLA, _ := env.tasks.GetByID(laTask.ID)
	if gotLA.Status != "pending_approval" {
		t.Errorf("la status = %q, want pending_approval (untouched)", gotLA.Status)
	}
}

func TestRunOnceFallsBackToDefaultTimezone(t *testing.T) {
	env := setupSchedTest(t)
	parent := env.createParent(t, "Dana", "Mars/Olympus_Mons")

	created, err := env.tasks.Create("Dishes", "", 5, "daily", parent, nil, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.tasks.UpdateStatus(created.ID, "completed"); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	now := midnightIn(t, DefaultTimezone, 2026, time.March, 2)
	report, err := env.sched.RunOnce(now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if report.UsersAtMidnight != 1 {
		t.Errorf("users_at_midnight = %d, want 1", report.UsersAtMidnight)
	}
	if len(report.Results) != 1 || report.Results[0].Timezone != DefaultTimezone {
		t.Errorf("results = %+v, want one entry in %s", report.Results, DefaultTimezone)
	}

	got, _ := env.tasks.GetByID(created.ID)
	if got.Status != "assigned" {
		t.Errorf("status = %q, want assigned", got.Status)
	}
}

func TestRunOnceEmptyTimezoneUsesDefault(t *testing.T) {
	env := setupSchedTest(t)
	env.createParent(t, "Dana", "")

	now := midnightIn(t, DefaultTimezone, 2026, time.March, 2)
	report, err := env.sched.RunOnce(now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if report.UsersAtMidnight != 1 {
		t.Errorf("users_at_midnight = %d, want 1", report.UsersAtMidnight)
	}
}

func TestStartStop(t *testing.T) {
	env := setupSchedTest(t)

	env.sched.Start(context.Background())
	env.sched.Stop()
}
