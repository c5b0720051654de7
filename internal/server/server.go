package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/questkeeper/internal/award"
	"github.com/dukerupert/questkeeper/internal/handler"
	"github.com/dukerupert/questkeeper/internal/middleware"
	"github.com/dukerupert/questkeeper/internal/schedule"
	"github.com/dukerupert/questkeeper/internal/store"
	ws "github.com/dukerupert/questkeeper/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	userH        *handler.UserHandler
	familyH      *handler.FamilyHandler
	taskH        *handler.TaskHandler
	awardH       *handler.AwardHandler
	bonusH       *handler.BonusHandler
	scheduleH    *handler.ScheduleHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	scheduler    *schedule.Scheduler
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	familyStore := store.NewFamilyStore(db)
	sessionStore := store.NewSessionStore(db)
	taskStore := store.NewTaskStore(db)
	awardStore := store.NewAwardStore(db)
	bonusStore := store.NewBonusStore(db)

	engine := award.NewEngine(awardStore, userStore, logger.With("component", "award_engine"))
	scheduler := schedule.NewScheduler(userStore, taskStore, logger.With("component", "scheduler"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, familyStore, sessionStore, logger.With("component", "auth")),
		userH:        handler.NewUserHandler(userStore),
		familyH:      handler.NewFamilyHandler(familyStore),
		taskH:        handler.NewTaskHandler(taskStore, userStore, hub, logger.With("component", "task")),
		awardH:       handler.NewAwardHandler(engine, awardStore, hub, logger.With("component", "award")),
		bonusH:       handler.NewBonusHandler(bonusStore, userStore, hub, logger.With("component", "bonus")),
		scheduleH:    handler.NewScheduleHandler(scheduler),
		sessionStore: sessionStore,
		userStore:    userStore,
		scheduler:    scheduler,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// Scheduler returns the recurring-task scheduler so main can run its loop.
func (s *Server) Scheduler() *schedule.Scheduler {
	return s.scheduler
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

// parentOnly layers the parent-role check over a protected handler.
func parentOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.RequireParent(h).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)

	// User API routes
	mux.HandleFunc("GET /api/me", s.userH.Me)
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("POST /api/users", parentOnly(s.userH.Create))
	mux.HandleFunc("PUT /api/users/{id}", parentOnly(s.userH.Update))
	mux.HandleFunc("DELETE /api/users/{id}", parentOnly(s.userH.Delete))
	mux.HandleFunc("POST /api/users/{id}/pin", parentOnly(s.userH.SetPIN))
	mux.HandleFunc("DELETE /api/users/{id}/pin", parentOnly(s.userH.ClearPIN))

	// Family API routes
	mux.HandleFunc("GET /api/family", s.familyH.Get)
	mux.HandleFunc("PUT /api/family", parentOnly(s.familyH.Update))

	// Task API routes
	mux.HandleFunc("POST /api/tasks", parentOnly(s.taskH.Create))
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("PUT /api/tasks/{id}", parentOnly(s.taskH.Update))
	mux.HandleFunc("DELETE /api/tasks/{id}", parentOnly(s.taskH.Delete))
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/approve", parentOnly(s.taskH.Approve))
	mux.HandleFunc("POST /api/tasks/{id}/reject", parentOnly(s.taskH.Reject))

	// Award API routes
	mux.HandleFunc("POST /api/awards", parentOnly(s.awardH.Create))
	mux.HandleFunc("GET /api/awards", s.awardH.List)
	mux.HandleFunc("PUT /api/awards/{id}", parentOnly(s.awardH.Update))
	mux.HandleFunc("DELETE /api/awards/{id}", parentOnly(s.awardH.Delete))
	mux.HandleFunc("POST /api/awards/{id}/claim", s.awardH.Claim)
	mux.HandleFunc("POST /api/awards/{id}/revive", parentOnly(s.awardH.Revive))
	mux.HandleFunc("GET /api/awards/{id}/claims", parentOnly(s.awardH.ListClaims))
	mux.HandleFunc("GET /api/claims", s.awardH.MyClaims)

	// Bonus award API routes
	mux.HandleFunc("POST /api/bonus-awards", parentOnly(s.bonusH.Create))
	mux.HandleFunc("GET /api/bonus-awards", s.bonusH.List)
	mux.HandleFunc("PUT /api/bonus-awards/{id}", parentOnly(s.bonusH.Update))
	mux.HandleFunc("DELETE /api/bonus-awards/{id}", parentOnly(s.bonusH.Delete))
	mux.HandleFunc("POST /api/bonus-awards/{id}/grant", parentOnly(s.bonusH.Grant))
	mux.HandleFunc("GET /api/bonus-awards/mine", s.bonusH.MyBonuses)

	// Manual scheduler trigger
	mux.HandleFunc("POST /api/scheduler/run", parentOnly(s.scheduleH.Run))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
