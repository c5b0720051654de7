package task

import "time"

type Status string

const (
	StatusAssigned        Status = "assigned"
	StatusPendingApproval Status = "pending_approval"
	StatusCompleted       Status = "completed"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyOnce   Frequency = "once"
)

// ValidStatus reports whether s is a known task status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusAssigned, StatusPendingApproval, StatusCompleted:
		return true
	}
	return false
}

// ValidFrequency reports whether f is a known task frequency.
func ValidFrequency(f string) bool {
	switch Frequency(f) {
	case FrequencyDaily, FrequencyWeekly, FrequencyOnce:
		return true
	}
	return false
}

// Recurring reports whether tasks with this frequency are subject to the
// midnight reset.
func Recurring(f Frequency) bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// CanComplete reports whether a child may mark the task as done, moving it
// to pending_approval.
func CanComplete(from Status) bool {
	return from == StatusAssigned
}

// CanReview reports whether a parent may approve or reject the task.
// Approval moves it to completed and credits the assignee; rejection moves
// it back to assigned.
func CanReview(from Status) bool {
	return from == StatusPendingApproval
}

// NextOccurrence returns the next due instant for a recurring task reset at
// now: 24 hours out for daily, 7 days for weekly. One-off tasks have no next
// occurrence.
func NextOccurrence(f Frequency, now time.Time) *time.Time {
	var next time.Time
	switch f {
	case FrequencyDaily:
		next = now.Add(24 * time.Hour)
	case FrequencyWeekly:
		next = now.Add(7 * 24 * time.Hour)
	default:
		return nil
	}
	return &next
}
