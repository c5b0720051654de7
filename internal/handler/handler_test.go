package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dukerupert/questkeeper/internal/auth"
	"github.com/dukerupert/questkeeper/internal/award"
	"github.com/dukerupert/questkeeper/internal/database"
	"github.com/dukerupert/questkeeper/internal/model"
	"github.com/dukerupert/questkeeper/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// handlerTestEnv holds two complete families so tests can exercise the
// family boundary from both sides.
type handlerTestEnv struct {
	db      *sql.DB
	users   *store.UserStore
	tasks   *store.TaskStore
	awards  *store.AwardStore
	engine  *award.Engine
	parentA *model.User
	childA  *model.User
	parentB *model.User
	childB  *model.User
}

func setupHandlerTest(t *testing.T) *handlerTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	families := store.NewFamilyStore(db)

	makeFamily := func(familyName, parentName, childName string) (*model.User, *model.User) {
		parent, err := users.Create(parentName, model.RoleParent, nil, "America/New_York")
		if err != nil {
			t.Fatalf("create parent: %v", err)
		}
		fam, err := families.Create(familyName, parent.ID)
		if err != nil {
			t.Fatalf("create family: %v", err)
		}
		if err := users.SetFamily(parent.ID, fam.ID); err != nil {
			t.Fatalf("set parent family: %v", err)
		}
		parent, err = users.GetByID(parent.ID)
		if err != nil {
			t.Fatalf("reload parent: %v", err)
		}
		child, err := users.Create(childName, model.RoleChild, &fam.ID, "America/New_York")
		if err != nil {
			t.Fatalf("create child: %v", err)
		}
		return parent, child
	}

	parentA, childA := makeFamily("Family A", "Dana", "Milo")
	parentB, childB := makeFamily("Family B", "Reed", "Iris")

	awards := store.NewAwardStore(db)
	return &handlerTestEnv{
		db:      db,
		users:   users,
		tasks:   store.NewTaskStore(db),
		awards:  awards,
		engine:  award.NewEngine(awards, users, testLogger()),
		parentA: parentA,
		childA:  childA,
		parentB: parentB,
		childB:  childB,
	}
}

func (env *handlerTestEnv) setPoints(t *testing.T, userID int64, points int) {
	t.Helper()
	if _, err := env.db.Exec(`UPDATE users SET points = ? WHERE id = ?`, points, userID); err != nil {
		t.Fatalf("set points: %v", err)
	}
}

func (env *handlerTestEnv) balance(t *testing.T, userID int64) int {
	t.Helper()
	u, err := env.users.GetByID(userID)
	if err != nil || u == nil {
		t.Fatalf("get user %d: %v", userID, err)
	}
	return u.Points
}

// authedRequest builds a request carrying the caller's auth context, the
// same shape the session middleware attaches.
func authedRequest(t *testing.T, method, target string, body any, caller *model.User) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	ac := auth.AuthContext{UserID: caller.ID, Role: caller.Role}
	if caller.FamilyID != nil {
		ac.FamilyID = *caller.FamilyID
	}
	return req.WithContext(auth.WithAuth(req.Context(), ac))
}

func withID(r *http.Request, id int64) *http.Request {
	r.SetPathValue("id", strconv.FormatInt(id, 10))
	return r
}
