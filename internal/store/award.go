package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/questkeeper/internal/model"
)

// Claim transaction failures. The award engine maps these onto its error
// taxonomy; nothing retries them automatically.
var (
	// ErrInsufficientPoints means the child's balance dropped below the
	// award's cost between the caller's read and the commit.
	ErrInsufficientPoints = errors.New("insufficient points at commit")
	// ErrClaimConflict means another claim committed first: the award's
	// redemption count no longer matches the value the caller read.
	ErrClaimConflict = errors.New("award modified concurrently")
)

type AwardStore struct {
	db *sql.DB
}

func NewAwardStore(db *sql.DB) *AwardStore {
	return &AwardStore{db: db}
}

func scanAward(scanner interface{ Scan(...any) error }) (*model.Award, error) {
	var a model.Award
	var allowed sql.NullString
	var limit sql.NullInt64
	var lockoutPeriod sql.NullInt64
	var lockoutUnit sql.NullString
	var lastRedeemed sql.NullTime
	var awarded int

	err := scanner.Scan(
		&a.ID, &a.FamilyID, &a.Title, &a.Description, &a.Points,
		&allowed, &limit, &a.RedemptionCount,
		&lockoutPeriod, &lockoutUnit, &lastRedeemed, &awarded, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if allowed.Valid && allowed.String != "" {
		if err := json.Unmarshal([]byte(allowed.String), &a.AllowedChildIDs); err != nil {
			return nil, fmt.Errorf("decode allowed_child_ids: %w", err)
		}
	}
	if limit.Valid {
		l := int(limit.Int64)
		a.RedemptionLimit = &l
	}
	if lockoutPeriod.Valid {
		p := int(lockoutPeriod.Int64)
		a.LockoutPeriod = &p
	}
	if lockoutUnit.Valid {
		a.LockoutUnit = &lockoutUnit.String
	}
	if lastRedeemed.Valid {
		utc := lastRedeemed.Time.UTC()
		a.LastRedeemedAt = &utc
	}
	a.Awarded = awarded != 0
	return &a, nil
}

const awardCols = `id, family_id, title, description, points, allowed_child_ids, redemption_limit, redemption_count, lockout_period, lockout_unit, last_redeemed_at, awarded, created_at`

func encodeIDList(ids []int64) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode allowed_child_ids: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func (s *AwardStore) Create(familyID int64, title, description string, points int, allowedChildIDs []int64, redemptionLimit, lockoutPeriod *int, lockoutUnit *string) (*model.Award, error) {
	allowed, err := encodeIDList(allowedChildIDs)
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO awards (family_id, title, description, points, allowed_child_ids, redemption_limit, lockout_period, lockout_unit) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		familyID, title, description, points, allowed,
		nullableInt(redemptionLimit), nullableInt(lockoutPeriod), nullableString(lockoutUnit),
	)
	if err != nil {
		return nil, fmt.Errorf("insert award: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AwardStore) GetByID(id int64) (*model.Award, error) {
	row := s.db.QueryRow(`SELECT `+awardCols+` FROM awards WHERE id = ?`, id)
	a, err := scanAward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get award: %w", err)
	}
	return a, nil
}

func (s *AwardStore) ListByFamily(familyID int64) ([]model.Award, error) {
	rows, err := s.db.Query(
		`SELECT `+awardCols+` FROM awards WHERE family_id = ? ORDER BY title ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	defer rows.Close()

	var awards []model.Award
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan award: %w", err)
		}
		awards = append(awards, *a)
	}
	return awards, rows.Err()
}

// Update edits the award's settings. Lowering redemption_limit below the
// current count is allowed; the availability predicate simply makes the
// award unavailable.
func (s *AwardStore) Update(id int64, title, description string, points int, allowedChildIDs []int64, redemptionLimit, lockoutPeriod *int, lockoutUnit *string) (*model.Award, error) {
	allowed, err := encodeIDList(allowedChildIDs)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE awards SET title = ?, description = ?, points = ?, allowed_child_ids = ?, redemption_limit = ?, lockout_period = ?, lockout_unit = ? WHERE id = ?`,
		title, description, points, allowed,
		nullableInt(redemptionLimit), nullableInt(lockoutPeriod), nullableString(lockoutUnit), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update award: %w", err)
	}
	return s.GetByID(id)
}

// Revive resets the award's redemption accounting so it can be claimed
// again. Clearing last_redeemed_at also clears any active lockout.
func (s *AwardStore) Revive(id int64) (*model.Award, error) {
	_, err := s.db.Exec(
		`UPDATE awards SET redemption_count = 0, last_redeemed_at = NULL, awarded = 0 WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("revive award: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the award. Ledger rows in claimed_awards keep their
// award_id value and are untouched.
func (s *AwardStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM awards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete award: %w", err)
	}
	return nil
}

// Claim executes the redemption as one transaction: insert a ledger row,
// deduct the child's points, and advance the award's redemption count. The
// balance decrement is guarded by the live balance and the count increment
// by the count the caller read, so either a stale read or an empty balance
// rolls the whole claim back — two racing claims can never both commit
// against the same count.
func (s *AwardStore) Claim(award *model.Award, childID int64, now time.Time) (*model.ClaimedAward, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO claimed_awards (award_id, child_id, points_deducted, claimed_at) VALUES (?, ?, ?, ?)`,
		award.ID, childID, award.Points, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert claim: %w", err)
	}
	claimID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	res, err := tx.Exec(
		`UPDATE users SET points = points - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND points >= ?`,
		award.Points, childID, award.Points,
	)
	if err != nil {
		return nil, fmt.Errorf("deduct points: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("deduct points rows: %w", err)
	} else if n == 0 {
		return nil, ErrInsufficientPoints
	}

	res, err = tx.Exec(
		`UPDATE awards SET redemption_count = redemption_count + 1, last_redeemed_at = ? WHERE id = ? AND redemption_count = ?`,
		now.UTC(), award.ID, award.RedemptionCount,
	)
	if err != nil {
		return nil, fmt.Errorf("increment redemption count: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("increment redemption rows: %w", err)
	} else if n == 0 {
		return nil, ErrClaimConflict
	}

	// Legacy fully-claimed marker, kept in sync for limited awards.
	if award.RedemptionLimit != nil && award.RedemptionCount+1 >= *award.RedemptionLimit {
		if _, err := tx.Exec(`UPDATE awards SET awarded = 1 WHERE id = ?`, award.ID); err != nil {
			return nil, fmt.Errorf("mark fully claimed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+claimCols+` FROM claimed_awards WHERE id = ?`, claimID)
	return scanClaim(row)
}

// --- Ledger methods ---

func scanClaim(scanner interface{ Scan(...any) error }) (*model.ClaimedAward, error) {
	var c model.ClaimedAward
	var awardID sql.NullInt64
	var childID sql.NullInt64

	err := scanner.Scan(&c.ID, &awardID, &childID, &c.PointsDeducted, &c.ClaimedAt)
	if err != nil {
		return nil, err
	}

	if awardID.Valid {
		c.AwardID = &awardID.Int64
	}
	if childID.Valid {
		c.ChildID = &childID.Int64
	}
	return &c, nil
}

const claimCols = `id, award_id, child_id, points_deducted, claimed_at`

func (s *AwardStore) ListClaimsByChild(childID int64) ([]model.ClaimedAward, error) {
	rows, err := s.db.Query(
		`SELECT `+claimCols+` FROM claimed_awards WHERE child_id = ? ORDER BY claimed_at DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims by child: %w", err)
	}
	defer rows.Close()
	return collectClaims(rows)
}

func (s *AwardStore) ListClaimsByAward(awardID int64) ([]model.ClaimedAward, error) {
	rows, err := s.db.Query(
		`SELECT `+claimCols+` FROM claimed_awards WHERE award_id = ? ORDER BY claimed_at DESC`,
		awardID,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims by award: %w", err)
	}
	defer rows.Close()
	return collectClaims(rows)
}

func collectClaims(rows *sql.Rows) ([]model.ClaimedAward, error) {
	var claims []model.ClaimedAward
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
