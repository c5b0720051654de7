package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/questkeeper/internal/database"
	"github.com/dukerupert/questkeeper/internal/model"
)

type taskTestEnv struct {
	db     *sql.DB
	tasks  *TaskStore
	users  *UserStore
	parent int64
	child  int64
}

func setupTaskTest(t *testing.T) *taskTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := NewUserStore(db)
	families := NewFamilyStore(db)

	parent, err := users.Create("Dana", model.RoleParent, nil, "America/New_York")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	fam, err := families.Create("Test Family", parent.ID)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if err := users.SetFamily(parent.ID, fam.ID); err != nil {
		t.Fatalf("set parent family: %v", err)
	}
	child, err := users.Create("Milo", model.RoleChild, &fam.ID, "America/New_York")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	return &taskTestEnv{
		db:     db,
		tasks:  NewTaskStore(db),
		users:  users,
		parent: parent.ID,
		child:  child.ID,
	}
}

func TestTaskCreate(t *testing.T) {
	env := setupTaskTest(t)

	next := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	created, err := env.tasks.Create("Dishes", "Load and run", 5, "daily", env.parent, &env.child, &next)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if created.Status != "assigned" {
		t.Errorf("status = %q, want assigned", created.Status)
	}
	if created.AssignedTo == nil || *created.AssignedTo != env.child {
		t.Errorf("assigned_to = %v, want %d", created.AssignedTo, env.child)
	}
	if created.NextOccurrence == nil || !created.NextOccurrence.Equal(next) {
		t.Errorf("next_occurrence = %v, want %v", created.NextOccurrence, next)
	}
}

func TestTaskApproveCreditsPoints(t *testing.T) {
	env := setupTaskTest(t)

	created, err := env.tasks.Create("Dishes", "", 5, "daily", env.parent, &env.child, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.tasks.UpdateStatus(created.ID, "pending_approval"); err != nil {
		t.Fatalf("mark pending: %v", err)
	}

	approved, err := env.tasks.Approve(created.ID, env.child, created.Points)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != "completed" {
		t.Errorf("status = %q, want completed", approved.Status)
	}

	child, err := env.users.GetByID(env.child)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if child.Points != 5 {
		t.Errorf("points = %d, want 5", child.Points)
	}
}

func TestTaskResetForSchedule(t *testing.T) {
	env := setupTaskTest(t)

	created, err := env.tasks.Create("Dishes", "", 5, "daily", env.parent, &env.child, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	// The reset forces any status back to assigned, including pending
	// approval. Whatever the child did yesterday is discarded.
	if _, err := env.tasks.UpdateStatus(created.ID, "pending_approval"); err != nil {
		t.Fatalf("mark pending: %v", err)
	}

	now := time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)
	next := now.Add(24 * time.Hour)
	if err := env.tasks.ResetForSchedule(created.ID, next, now); err != nil {
		t.Fatalf("reset: %v", err)
	}

	got, err := env.tasks.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != "assigned" {
		t.Errorf("status = %q, want assigned", got.Status)
	}
	if got.NextOccurrence == nil || !got.NextOccurrence.Equal(next) {
		t.Errorf("next_occurrence = %v, want %v", got.NextOccurrence, next)
	}
}

func TestTaskListRecurringByCreator(t *testing.T) {
	env := setupTaskTest(t)

	for _, tc := range []struct {
		title     string
		frequency string
	}{
		{"Dishes", "daily"},
		{"Trash", "weekly"},
		{"Clean garage", "once"},
	} {
		if _, err := env.tasks.Create(tc.title, "", 5, tc.frequency, env.parent, nil, nil); err != nil {
			t.Fatalf("create %s: %v", tc.title, err)
		}
	}

	recurring, err := env.tasks.ListRecurringByCreator(env.parent)
	if err != nil {
		t.Fatalf("list recurring: %v", err)
	}
	if len(recurring) != 2 {
		t.Fatalf("recurring tasks = %d, want 2", len(recurring))
	}
	for _, task := range recurring {
		if task.Frequency != "daily" && task.Frequency != "weekly" {
			t.Errorf("unexpected frequency %q", task.Frequency)
		}
	}
}

func TestTaskDeleteAssigneeSetsNull(t *testing.T) {
	env := setupTaskTest(t)

	created, err := env.tasks.Create("Dishes", "", 5, "daily", env.parent, &env.child, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := env.users.Delete(env.child); err != nil {
		t.Fatalf("delete child: %v", err)
	}

	got, err := env.tasks.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got == nil {
		t.Fatal("task deleted with its assignee")
	}
	if got.AssignedTo != nil {
		t.Errorf("assigned_to = %v, want nil", got.AssignedTo)
	}
}
