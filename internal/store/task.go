package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/questkeeper/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var assignedTo sql.NullInt64
	var nextOccurrence sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &t.Points, &t.Frequency, &t.Status,
		&t.CreatedBy, &assignedTo, &nextOccurrence, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.Int64
	}
	if nextOccurrence.Valid {
		utc := nextOccurrence.Time.UTC()
		t.NextOccurrence = &utc
	}
	return &t, nil
}

const taskCols = `id, title, description, points, frequency, status, created_by, assigned_to, next_occurrence, created_at, updated_at`

func (s *TaskStore) Create(title, description string, points int, frequency string, createdBy int64, assignedTo *int64, nextOccurrence *time.Time) (*model.Task, error) {
	var aTo sql.NullInt64
	if assignedTo != nil {
		aTo = sql.NullInt64{Int64: *assignedTo, Valid: true}
	}
	var next sql.NullTime
	if nextOccurrence != nil {
		next = sql.NullTime{Time: nextOccurrence.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO tasks (title, description, points, frequency, created_by, assigned_to, next_occurrence) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title, description, points, frequency, createdBy, aTo, next,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) ListByCreator(creatorID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE created_by = ? ORDER BY created_at ASC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by creator: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *TaskStore) ListByAssignee(childID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE assigned_to = ? ORDER BY created_at ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by assignee: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListRecurringByCreator returns the creator's daily and weekly tasks, the
// unit the midnight reset operates on. One-off tasks are never included.
func (s *TaskStore) ListRecurringByCreator(creatorID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE created_by = ? AND frequency IN ('daily', 'weekly') ORDER BY id ASC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recurring tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(id int64, title, description string, points int, frequency string, assignedTo *int64, nextOccurrence *time.Time) (*model.Task, error) {
	var aTo sql.NullInt64
	if assignedTo != nil {
		aTo = sql.NullInt64{Int64: *assignedTo, Valid: true}
	}
	var next sql.NullTime
	if nextOccurrence != nil {
		next = sql.NullTime{Time: nextOccurrence.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, points = ?, frequency = ?, assigned_to = ?, next_occurrence = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, points, frequency, aTo, next, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

// UpdateStatus moves a task to the given status without touching anything
// else. Transition legality is the caller's concern.
func (s *TaskStore) UpdateStatus(id int64, status string) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	return s.GetByID(id)
}

// Approve marks the task completed and credits the assignee's points
// balance in a single transaction. This is the only write path that
// increases a points balance.
func (s *TaskStore) Approve(id, assigneeID int64, points int) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE tasks SET status = 'completed', updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	); err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE users SET points = points + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		points, assigneeID,
	); err != nil {
		return nil, fmt.Errorf("credit points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	return s.GetByID(id)
}

// ResetForSchedule applies the scheduler's forced transition: any status
// back to assigned, with a fresh next occurrence. The prior status is
// deliberately not checked.
func (s *TaskStore) ResetForSchedule(id int64, nextOccurrence, now time.Time) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = 'assigned', next_occurrence = ?, updated_at = ? WHERE id = ?`,
		nextOccurrence.UTC(), now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("reset task: %w", err)
	}
	return nil
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
