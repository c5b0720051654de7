package handler

import (
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/questkeeper/internal/auth"
	"github.com/dukerupert/questkeeper/internal/award"
	"github.com/dukerupert/questkeeper/internal/model"
	"github.com/dukerupert/questkeeper/internal/store"
	"github.com/dukerupert/questkeeper/internal/websocket"
)

type AwardHandler struct {
	engine *award.Engine
	store  *store.AwardStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewAwardHandler(engine *award.Engine, s *store.AwardStore, hub *websocket.Hub, logger *slog.Logger) *AwardHandler {
	return &AwardHandler{engine: engine, store: s, hub: hub, logger: logger}
}

func (h *AwardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type awardRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Points          int     `json:"points"`
	AllowedChildIDs []int64 `json:"allowed_child_ids"`
	RedemptionLimit *int    `json:"redemption_limit"`
	LockoutPeriod   *int    `json:"lockout_period"`
	LockoutUnit     *string `json:"lockout_unit"`
}

func (req *awardRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.Points < 0 {
		return "points must be >= 0"
	}
	if req.RedemptionLimit != nil && *req.RedemptionLimit < 1 {
		return "redemption_limit must be >= 1"
	}
	if req.LockoutPeriod != nil {
		if *req.LockoutPeriod < 1 {
			return "lockout_period must be >= 1"
		}
		if req.LockoutUnit == nil || (*req.LockoutUnit != "days" && *req.LockoutUnit != "weeks") {
			return "lockout_unit must be days or weeks"
		}
	}
	return ""
}

func (h *AwardHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no family"})
		return
	}

	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	created, err := h.store.Create(familyID, req.Title, req.Description, req.Points, req.AllowedChildIDs, req.RedemptionLimit, req.LockoutPeriod, req.LockoutUnit)
	if err != nil {
		log.Printf("failed to create award: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create award"})
		return
	}

	h.broadcast(websocket.NewMessage("award", "created", created.ID, nil))

	writeJSON(w, http.StatusCreated, created)
}

func (h *AwardHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		writeJSON(w, http.StatusOK, []model.Award{})
		return
	}

	awards, err := h.store.ListByFamily(familyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list awards"})
		return
	}
	if awards == nil {
		awards = []model.Award{}
	}
	writeJSON(w, http.StatusOK, awards)
}

// getFamilyAward loads the award and verifies the caller's family owns it.
// Writes the error response and returns nil when the award is unusable.
func (h *AwardHandler) getFamilyAward(w http.ResponseWriter, r *http.Request, id int64) *model.Award {
	a, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get award"})
		return nil
	}
	if a == nil || a.FamilyID != auth.FamilyID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "award not found"})
		return nil
	}
	return a
}

func (h *AwardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if h.getFamilyAward(w, r, id) == nil {
		return
	}

	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	updated, err := h.store.Update(id, req.Title, req.Description, req.Points, req.AllowedChildIDs, req.RedemptionLimit, req.LockoutPeriod, req.LockoutUnit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update award"})
		return
	}

	h.broadcast(websocket.NewMessage("award", "updated", id, nil))

	writeJSON(w, http.StatusOK, updated)
}

// Delete removes the award. Ledger rows for past claims are kept; only the
// award row goes away.
func (h *AwardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if h.getFamilyAward(w, r, id) == nil {
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete award"})
		return
	}

	h.broadcast(websocket.NewMessage("award", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

// Claim redeems the award for a child. A child claims for themselves; a
// parent may claim on a child's behalf by sending child_id.
func (h *AwardHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if h.getFamilyAward(w, r, id) == nil {
		return
	}

	childID := auth.UserID(r.Context())
	if auth.IsParent(r.Context()) {
		var req struct {
			ChildID int64 `json:"child_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChildID == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "child_id is required"})
			return
		}
		childID = req.ChildID
	}

	claim, err := h.engine.Claim(id, childID)
	if err != nil {
		h.writeClaimError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("award", "claimed", id, map[string]any{"child_id": childID}))

	writeJSON(w, http.StatusCreated, claim)
}

func (h *AwardHandler) writeClaimError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, award.ErrAwardNotFound), errors.Is(err, award.ErrChildNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, award.ErrInsufficientPoints):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, award.ErrUnavailable), errors.Is(err, award.ErrClaimConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("failed to claim award: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to claim award"})
	}
}

// Revive resets a fully-redeemed or locked-out award. Parent-only.
func (h *AwardHandler) Revive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if h.getFamilyAward(w, r, id) == nil {
		return
	}

	revived, err := h.engine.Revive(id)
	if err != nil {
		if errors.Is(err, award.ErrAwardNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "award not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to revive award"})
		return
	}

	h.broadcast(websocket.NewMessage("award", "revived", id, nil))

	writeJSON(w, http.StatusOK, revived)
}

// ListClaims returns the redemption history for one award.
func (h *AwardHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if h.getFamilyAward(w, r, id) == nil {
		return
	}

	claims, err := h.store.ListClaimsByAward(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list claims"})
		return
	}
	if claims == nil {
		claims = []model.ClaimedAward{}
	}
	writeJSON(w, http.StatusOK, claims)
}

// MyClaims returns the caller's own redemption history.
func (h *AwardHandler) MyClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.store.ListClaimsByChild(auth.UserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list claims"})
		return
	}
	if claims == nil {
		claims = []model.ClaimedAward{}
	}
	writeJSON(w, http.StatusOK, claims)
}
