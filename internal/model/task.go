package model

import "time"

// Task is a chore a parent manages. Daily and weekly tasks are reset to
// assigned at the parent's local midnight; one-off tasks stay completed.
type Task struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Points         int        `json:"points"`
	Frequency      string     `json:"frequency"`
	Status         string     `json:"status"`
	CreatedBy      int64      `json:"created_by"`
	AssignedTo     *int64     `json:"assigned_to"`
	NextOccurrence *time.Time `json:"next_occurrence"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
