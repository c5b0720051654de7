package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/questkeeper/internal/auth"
	"github.com/dukerupert/questkeeper/internal/store"
)

type FamilyHandler struct {
	store *store.FamilyStore
}

func NewFamilyHandler(s *store.FamilyStore) *FamilyHandler {
	return &FamilyHandler{store: s}
}

// Get returns the caller's family.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no family"})
		return
	}

	family, err := h.store.GetByID(familyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get family"})
		return
	}
	if family == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family not found"})
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// Update renames the caller's family. Parent-only.
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no family"})
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	family, err := h.store.Update(familyID, req.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update family"})
		return
	}

	writeJSON(w, http.StatusOK, family)
}
