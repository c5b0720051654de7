package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAwardClaimOtherFamily(t *testing.T) {
	env := setupHandlerTest(t)
	h := NewAwardHandler(env.engine, env.awards, nil, testLogger())

	env.setPoints(t, env.childB.ID, 50)
	a, err := env.awards.Create(*env.parentB.FamilyID, "Movie Night", "", 20, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}

	// A parent from another family cannot spend this child's points, even
	// when they name the child explicitly.
	rec := httptest.NewRecorder()
	body := map[string]int64{"child_id": env.childB.ID}
	h.Claim(rec, withID(authedRequest(t, http.MethodPost, "/api/awards/0/claim", body, env.parentA), a.ID))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-family claim status = %d, want 404", rec.Code)
	}
	if got := env.balance(t, env.childB.ID); got != 50 {
		t.Errorf("child balance = %d, want 50", got)
	}
	claims, err := env.awards.ListClaimsByChild(env.childB.ID)
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(claims))
	}

	// A child from another family cannot see the award either.
	rec = httptest.NewRecorder()
	h.Claim(rec, withID(authedRequest(t, http.MethodPost, "/api/awards/0/claim", nil, env.childA), a.ID))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-family child claim status = %d, want 404", rec.Code)
	}

	// The family's own parent can claim on the child's behalf.
	rec = httptest.NewRecorder()
	h.Claim(rec, withID(authedRequest(t, http.MethodPost, "/api/awards/0/claim", body, env.parentB), a.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("claim status = %d, want 201, body %s", rec.Code, rec.Body)
	}
	if got := env.balance(t, env.childB.ID); got != 30 {
		t.Errorf("child balance = %d, want 30", got)
	}
}

func TestAwardClaimForeignChild(t *testing.T) {
	env := setupHandlerTest(t)
	h := NewAwardHandler(env.engine, env.awards, nil, testLogger())

	env.setPoints(t, env.childA.ID, 50)
	a, err := env.awards.Create(*env.parentB.FamilyID, "Movie Night", "", 20, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}

	// Naming a child outside the award's family never deducts points.
	rec := httptest.NewRecorder()
	body := map[string]int64{"child_id": env.childA.ID}
	h.Claim(rec, withID(authedRequest(t, http.MethodPost, "/api/awards/0/claim", body, env.parentB), a.ID))
	if rec.Code != http.StatusConflict {
		t.Fatalf("foreign child claim status = %d, want 409", rec.Code)
	}
	if got := env.balance(t, env.childA.ID); got != 50 {
		t.Errorf("child balance = %d, want 50", got)
	}
}

func TestAwardListClaimsOtherFamily(t *testing.T) {
	env := setupHandlerTest(t)
	h := NewAwardHandler(env.engine, env.awards, nil, testLogger())

	a, err := env.awards.Create(*env.parentB.FamilyID, "Movie Night", "", 20, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ListClaims(rec, withID(authedRequest(t, http.MethodGet, "/api/awards/0/claims", nil, env.parentA), a.ID))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-family list claims status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ListClaims(rec, withID(authedRequest(t, http.MethodGet, "/api/awards/0/claims", nil, env.parentB), a.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("list claims status = %d, want 200", rec.Code)
	}
}
