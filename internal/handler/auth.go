package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/questkeeper/internal/middleware"
	"github.com/dukerupert/questkeeper/internal/model"
	"github.com/dukerupert/questkeeper/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 30 * 24 * time.Hour

type AuthHandler struct {
	users    *store.UserStore
	families *store.FamilyStore
	sessions *store.SessionStore
	logger   *slog.Logger
}

func NewAuthHandler(us *store.UserStore, fs *store.FamilyStore, ss *store.SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: us, families: fs, sessions: ss, logger: logger}
}

// Register creates a new parent account. Children are created by a parent
// from inside the family, never through self-registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
		PIN      string `json:"pin"`
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
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "timezone must be an IANA zone name"})
			return
		}
	}
	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be exactly 4 digits"})
		return
	}

	user, err := h.users.Create(req.Name, model.RoleParent, nil, req.Timezone)
	if err != nil {
		log.Printf("failed to create parent: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create account"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to hash PIN"})
		return
	}
	if err := h.users.SetPIN(user.ID, string(hash)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login verifies the PIN and opens a session. A parent logging in with no
// family gets one created on the spot and becomes its owner.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64  `json:"user_id"`
		PIN    string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	user, err := h.users.GetByID(req.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get user"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	hash, err := h.users.GetPINHash(user.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get PIN"})
		return
	}
	if hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
	}

	if user.Role == model.RoleParent && user.FamilyID == nil {
		family, err := h.families.Create(fmt.Sprintf("%s's Family", user.Name), user.ID)
		if err != nil {
			log.Printf("failed to create family: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family"})
			return
		}
		if err := h.users.SetFamily(user.ID, family.ID); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to join family"})
			return
		}
		user, err = h.users.GetByID(user.ID)
		if err != nil || user == nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get user"})
			return
		}
		h.logger.Info("family created on first login", "user_id", user.ID, "family_id", family.ID)
	}

	sess, err := h.sessions.Create(user.ID, sessionTTL)
	if err != nil {
		log.Printf("failed to create session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(cookie.Value); err != nil {
			log.Printf("failed to delete session: %v", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
