package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/questkeeper/internal/database"
	"github.com/dukerupert/questkeeper/internal/model"
)

type awardTestEnv struct {
	db     *sql.DB
	awards *AwardStore
	users  *UserStore
	family int64
	child  int64
}

func setupAwardTest(t *testing.T) *awardTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := NewUserStore(db)
	families := NewFamilyStore(db)

	parent, err := users.Create("Dana", model.RoleParent, nil, "America/New_York")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	fam, err := families.Create("Test Family", parent.ID)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if err := users.SetFamily(parent.ID, fam.ID); err != nil {
		t.Fatalf("set parent family: %v", err)
	}
	child, err := users.Create("Milo", model.RoleChild, &fam.ID, "America/New_York")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	return &awardTestEnv{
		db:     db,
		awards: NewAwardStore(db),
		users:  users,
		family: fam.ID,
		child:  child.ID,
	}
}

func (env *awardTestEnv) setPoints(t *testing.T, userID int64, points int) {
	t.Helper()
	if _, err := env.db.Exec(`UPDATE users SET points = ? WHERE id = ?`, points, userID); err != nil {
		t.Fatalf("set points: %v", err)
	}
}

func (env *awardTestEnv) balance(t *testing.T, userID int64) int {
	t.Helper()
	u, err := env.users.GetByID(userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.Points
}

func TestAwardClaim(t *testing.T) {
	env := setupAwardTest(t)
	env.setPoints(t, env.child, 25)

	a, err := env.awards.Create(env.family, "Movie Night", "", 20, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}

	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	claim, err := env.awards.Claim(a, env.child, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if claim.AwardID == nil || *claim.AwardID != a.ID {
		t.Errorf("claim award_id = %v, want %d", claim.AwardID, a.ID)
	}
	if claim.PointsDeducted != 20 {
		t.Errorf("points_deducted = %d, want 20", claim.PointsDeducted)
	}
	if got := env.balance(t, env.child); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}

	after, err := env.awards.GetByID(a.ID)
	if err != nil {
		t.Fatalf("get award: %v", err)
	}
	if after.RedemptionCount != 1 {
		t.Errorf("redemption_count = %d, want 1", after.RedemptionCount)
	}
	if after.LastRedeemedAt == nil || !after.LastRedeemedAt.Equal(now) {
		t.Errorf("last_redeemed_at = %v, want %v", after.LastRedeemedAt, now)
	}
}

func TestAwardClaimInsufficientPoints(t *testing.T) {
	env := setupAwardTest(t)
	env.setPoints(t, env.child, 10)

	a, err := env.awards.Create(env.family, "Movie Night", "", 20, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}

	_, err = env.awards.Claim(a, env.child, time.Now().UTC())
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("claim error = %v, want ErrInsufficientPoints", err)
	}

	// Everything rolled back: no ledger row, balance and count untouched.
	claims, err := env.awards.ListClaimsByChild(env.child)
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(claims))
	}
	if got := env.balance(t, env.child); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}
	after, _ := env.awards.GetByID(a.ID)
	if after.RedemptionCount != 0 {
		t.Errorf("redemption_count = %d, want 0", after.RedemptionCount)
	}
}

func TestAwardClaimConflict(t *testing.T) {
	env := setupAwardTest(t)
	env.setPoints(t, env.child, 100)

	a, err := env.awards.Create(env.family, "Movie Night", "", 20, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}

	// First claim commits against count 0.
	if _, err := env.awards.Claim(a, env.child, time.Now().UTC()); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// Replaying with the stale snapshot (count still 0) must fail and roll
	// back its ledger row and deduction.
	_, err = env.awards.Claim(a, env.child, time.Now().UTC())
	if !errors.Is(err, ErrClaimConflict) {
		t.Fatalf("stale claim error = %v, want ErrClaimConflict", err)
	}
	if got := env.balance(t, env.child); got != 80 {
		t.Errorf("balance = %d, want 80", got)
	}
	claims, _ := env.awards.ListClaimsByChild(env.child)
	if len(claims) != 1 {
		t.Errorf("ledger rows = %d, want 1", len(claims))
	}
}

func TestAwardClaimReachesLimit(t *testing.T) {
	env := setupAwardTest(t)
	env.setPoints(t, env.child, 50)

	limit := 1
	a, err := env.awards.Create(env.family, "Ice Cream", "", 20, nil, &limit, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}

	if _, err := env.awards.Claim(a, env.child, time.Now().UTC()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	after, err := env.awards.GetByID(a.ID)
	if err != nil {
		t.Fatalf("get award: %v", err)
	}
	if !after.Awarded {
		t.Error("awarded = false, want true after hitting the limit")
	}
}

func TestAwardRevive(t *testing.T) {
	env := setupAwardTest(t)
	env.setPoints(t, env.child, 50)

	limit := 1
	a, err := env.awards.Create(env.family, "Ice Cream", "", 20, nil, &limit, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}
	if _, err := env.awards.Claim(a, env.child, time.Now().UTC()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	revived, err := env.awards.Revive(a.ID)
	if err != nil {
		t.Fatalf("revive: %v", err)
	}
	if revived.RedemptionCount != 0 {
		t.Errorf("redemption_count = %d, want 0", revived.RedemptionCount)
	}
	if revived.LastRedeemedAt != nil {
		t.Errorf("last_redeemed_at = %v, want nil", revived.LastRedeemedAt)
	}
	if revived.Awarded {
		t.Error("awarded = true, want false")
	}

	// Claimable again with the fresh snapshot.
	if _, err := env.awards.Claim(revived, env.child, time.Now().UTC()); err != nil {
		t.Fatalf("claim after revive: %v", err)
	}
}

func TestClaimLedgerSurvivesAwardDelete(t *testing.T) {
	env := setupAwardTest(t)
	env.setPoints(t, env.child, 25)

	a, err := env.awards.Create(env.family, "Movie Night", "", 20, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}
	if _, err := env.awards.Claim(a, env.child, time.Now().UTC()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := env.awards.Delete(a.ID); err != nil {
		t.Fatalf("delete award: %v", err)
	}

	claims, err := env.awards.ListClaimsByChild(env.child)
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(claims))
	}
	if claims[0].AwardID == nil || *claims[0].AwardID != a.ID {
		t.Errorf("claim award_id = %v, want %d", claims[0].AwardID, a.ID)
	}
	if claims[0].PointsDeducted != 20 {
		t.Errorf("points_deducted = %d, want 20", claims[0].PointsDeducted)
	}
}

func TestAwardAllowedChildIDsRoundTrip(t *testing.T) {
	env := setupAwardTest(t)

	a, err := env.awards.Create(env.family, "Stay Up Late", "", 30, []int64{env.child, 99}, nil, nil, nil)
	if err != nil {
		t.Fatalf("create award: %v", err)
	}

	got, err := env.awards.GetByID(a.ID)
	if err != nil {
		t.Fatalf("get award: %v", err)
	}
	if len(got.AllowedChildIDs) != 2 || got.AllowedChildIDs[0] != env.child || got.AllowedChildIDs[1] != 99 {
		t.Errorf("allowed_child_ids = %v, want [%d 99]", got.AllowedChildIDs, env.child)
	}
}
