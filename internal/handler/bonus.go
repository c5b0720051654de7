package handler

import (
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/questkeeper/internal/auth"
	"github.com/dukerupert/questkeeper/internal/model"
	"github.com/dukerupert/questkeeper/internal/store"
	"github.com/dukerupert/questkeeper/internal/websocket"
)

// BonusHandler manages bonus awards: recognition badges a parent hands out
// directly. Granting one never changes a child's points balance.
type BonusHandler struct {
	store  *store.BonusStore
	users  *store.UserStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewBonusHandler(s *store.BonusStore, users *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *BonusHandler {
	return &BonusHandler{store: s, users: users, hub: hub, logger: logger}
}

type bonusRequest struct {
	Title  string `json:"title"`
	Icon   string `json:"icon"`
	Points int    `json:"points"`
}

func (req *bonusRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.Points < 0 {
		return "points must be >= 0"
	}
	return ""
}

func (h *BonusHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no family"})
		return
	}

	var req bonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	created, err := h.store.Create(familyID, req.Title, req.Icon, req.Points)
	if err != nil {
		log.Printf("failed to create bonus award: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create bonus award"})
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *BonusHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		writeJSON(w, http.StatusOK, []model.BonusAward{})
		return
	}

	bonuses, err := h.store.ListByFamily(familyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list bonus awards"})
		return
	}
	if bonuses == nil {
		bonuses = []model.BonusAward{}
	}
	writeJSON(w, http.StatusOK, bonuses)
}

func (h *BonusHandler) getFamilyBonus(w http.ResponseWriter, r *http.Request, id int64) *model.BonusAward {
	b, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get bonus award"})
		return nil
	}
	if b == nil || b.FamilyID != auth.FamilyID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "bonus award not found"})
		return nil
	}
	return b
}

func (h *BonusHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if h.getFamilyBonus(w, r, id) == nil {
		return
	}

	var req bonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	updated, err := h.store.Update(id, req.Title, req.Icon, req.Points)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update bonus award"})
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *BonusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if h.getFamilyBonus(w, r, id) == nil {
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete bonus award"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Grant hands the bonus to a child in the caller's family.
func (h *BonusHandler) Grant(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if h.getFamilyBonus(w, r, id) == nil {
		return
	}

	var req struct {
		ChildID int64 `json:"child_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChildID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "child_id is required"})
		return
	}

	child, err := h.users.GetByID(req.ChildID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get child"})
		return
	}
	if child == nil || child.Role != model.RoleChild || child.FamilyID == nil || *child.FamilyID != auth.FamilyID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "child not found"})
		return
	}

	instance, err := h.store.Grant(id, child.ID)
	if err != nil {
		log.Printf("failed to grant bonus award: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to grant bonus award"})
		return
	}

	h.logger.Info("bonus award granted", "bonus_award_id", id, "child_id", child.ID)
	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage("bonus_award", "granted", id, map[string]any{"child_id": child.ID}))
	}

	writeJSON(w, http.StatusCreated, instance)
}

// MyBonuses returns the bonus awards the caller has received.
func (h *BonusHandler) MyBonuses(w http.ResponseWriter, r *http.Request) {
	instances, err := h.store.ListInstancesByChild(auth.UserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list bonus awards"})
		return
	}
	if instances == nil {
		instances = []model.BonusAwardInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}
