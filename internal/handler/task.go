package handler

import (
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/questkeeper/internal/auth"
	"github.com/dukerupert/questkeeper/internal/model"
	"github.com/dukerupert/questkeeper/internal/store"
	"github.com/dukerupert/questkeeper/internal/task"
	"github.com/dukerupert/questkeeper/internal/websocket"
)

type TaskHandler struct {
	store  *store.TaskStore
	users  *store.UserStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewTaskHandler(s *store.TaskStore, users *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{store: s, users: users, hub: hub, logger: logger}
}

// getFamilyTask loads the task and verifies it belongs to the caller's
// family via its creator. Writes the error response and returns nil when
// the task is unusable.
func (h *TaskHandler) getFamilyTask(w http.ResponseWriter, r *http.Request, id int64) *model.Task {
	t, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return nil
	}
	if t == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return nil
	}
	creator, err := h.users.GetByID(t.CreatedBy)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return nil
	}
	if creator == nil || creator.FamilyID == nil || *creator.FamilyID != auth.FamilyID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return nil
	}
	return t
}

func (h *TaskHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Frequency   string `json:"frequency"`
	AssignedTo  *int64 `json:"assigned_to"`
}

func (req *taskRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.Points < 0 {
		return "points must be >= 0"
	}
	if !task.ValidFrequency(req.Frequency) {
		return "frequency must be daily, weekly, or once"
	}
	return ""
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	next := task.NextOccurrence(task.Frequency(req.Frequency), time.Now().UTC())
	created, err := h.store.Create(req.Title, req.Description, req.Points, req.Frequency, auth.UserID(r.Context()), req.AssignedTo, next)
	if err != nil {
		log.Printf("failed to create task: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create task"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "created", created.ID, nil))

	writeJSON(w, http.StatusCreated, created)
}

// List returns the caller's tasks: a parent sees the tasks they created, a
// child the tasks assigned to them.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		tasks []model.Task
		err   error
	)
	if auth.IsParent(r.Context()) {
		tasks, err = h.store.ListByCreator(auth.UserID(r.Context()))
	} else {
		tasks, err = h.store.ListByAssignee(auth.UserID(r.Context()))
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing := h.getFamilyTask(w, r, id)
	if existing == nil {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	next := existing.NextOccurrence
	if req.Frequency != existing.Frequency {
		next = task.NextOccurrence(task.Frequency(req.Frequency), time.Now().UTC())
	}

	updated, err := h.store.Update(id, req.Title, req.Description, req.Points, req.Frequency, req.AssignedTo, next)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update task"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "updated", id, nil))

	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if h.getFamilyTask(w, r, id) == nil {
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete task"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

// Complete is the child's "I did it" action: assigned → pending_approval.
// Only the assignee may complete a task.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	t, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return
	}
	if t == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	callerID := auth.UserID(r.Context())
	if t.AssignedTo == nil || *t.AssignedTo != callerID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "task is not assigned to you"})
		return
	}
	if !task.CanComplete(task.Status(t.Status)) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is not in an actionable state"})
		return
	}

	updated, err := h.store.UpdateStatus(id, string(task.StatusPendingApproval))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to complete task"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "completed", id, nil))

	writeJSON(w, http.StatusOK, updated)
}

// Approve marks a pending task completed and credits the assignee's points.
// Parent-only.
func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	t := h.getFamilyTask(w, r, id)
	if t == nil {
		return
	}
	if !task.CanReview(task.Status(t.Status)) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is not pending approval"})
		return
	}

	var updated *model.Task
	if t.AssignedTo != nil {
		updated, err = h.store.Approve(id, *t.AssignedTo, t.Points)
	} else {
		updated, err = h.store.UpdateStatus(id, string(task.StatusCompleted))
	}
	if err != nil {
		log.Printf("failed to approve task: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to approve task"})
		return
	}

	h.logger.Info("task approved", "task_id", id, "points", t.Points, "assignee", t.AssignedTo)
	h.broadcast(websocket.NewMessage("task", "approved", id, nil))

	writeJSON(w, http.StatusOK, updated)
}

// Reject sends a pending task back to assigned. Parent-only.
func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	t := h.getFamilyTask(w, r, id)
	if t == nil {
		return
	}
	if !task.CanReview(task.Status(t.Status)) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is not pending approval"})
		return
	}

	updated, err := h.store.UpdateStatus(id, string(task.StatusAssigned))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reject task"})
		return
	}

	h.broadcast(websocket.NewMessage("task", "rejected", id, nil))

	writeJSON(w, http.StatusOK, updated)
}
