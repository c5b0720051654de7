package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/questkeeper/internal/model"
)

type BonusStore struct {
	db *sql.DB
}

func NewBonusStore(db *sql.DB) *BonusStore {
	return &BonusStore{db: db}
}

func scanBonus(scanner interface{ Scan(...any) error }) (*model.BonusAward, error) {
	var b model.BonusAward
	err := scanner.Scan(&b.ID, &b.FamilyID, &b.Title, &b.Icon, &b.Points, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const bonusCols = `id, family_id, title, icon, points, created_at`

func (s *BonusStore) Create(familyID int64, title, icon string, points int) (*model.BonusAward, error) {
	result, err := s.db.Exec(
		`INSERT INTO bonus_awards (family_id, title, icon, points) VALUES (?, ?, ?, ?)`,
		familyID, title, icon, points,
	)
	if err != nil {
		return nil, fmt.Errorf("insert bonus award: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BonusStore) GetByID(id int64) (*model.BonusAward, error) {
	row := s.db.QueryRow(`SELECT `+bonusCols+` FROM bonus_awards WHERE id = ?`, id)
	b, err := scanBonus(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bonus award: %w", err)
	}
	return b, nil
}

func (s *BonusStore) ListByFamily(familyID int64) ([]model.BonusAward, error) {
	rows, err := s.db.Query(
		`SELECT `+bonusCols+` FROM bonus_awards WHERE family_id = ? ORDER BY title ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bonus awards: %w", err)
	}
	defer rows.Close()

	var bonuses []model.BonusAward
	for rows.Next() {
		b, err := scanBonus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bonus award: %w", err)
		}
		bonuses = append(bonuses, *b)
	}
	return bonuses, rows.Err()
}

func (s *BonusStore) Update(id int64, title, icon string, points int) (*model.BonusAward, error) {
	_, err := s.db.Exec(
		`UPDATE bonus_awards SET title = ?, icon = ?, points = ? WHERE id = ?`,
		title, icon, points, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update bonus award: %w", err)
	}
	return s.GetByID(id)
}

func (s *BonusStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM bonus_awards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bonus award: %w", err)
	}
	return nil
}

// --- Instance methods ---

func scanBonusInstance(scanner interface{ Scan(...any) error }) (*model.BonusAwardInstance, error) {
	var i model.BonusAwardInstance
	err := scanner.Scan(&i.ID, &i.BonusAwardID, &i.ChildID, &i.AwardedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

const bonusInstanceCols = `id, bonus_award_id, child_id, awarded_at`

// Grant records one instance of the bonus award for a child. Bonus points
// are a display value; granting does not touch the points balance.
func (s *BonusStore) Grant(bonusAwardID, childID int64) (*model.BonusAwardInstance, error) {
	result, err := s.db.Exec(
		`INSERT INTO bonus_award_instances (bonus_award_id, child_id) VALUES (?, ?)`,
		bonusAwardID, childID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert bonus instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+bonusInstanceCols+` FROM bonus_award_instances WHERE id = ?`, id)
	return scanBonusInstance(row)
}

func (s *BonusStore) ListInstancesByChild(childID int64) ([]model.BonusAwardInstance, error) {
	rows, err := s.db.Query(
		`SELECT `+bonusInstanceCols+` FROM bonus_award_instances WHERE child_id = ? ORDER BY awarded_at DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bonus instances: %w", err)
	}
	defer rows.Close()

	var instances []model.BonusAwardInstance
	for rows.Next() {
		i, err := scanBonusInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bonus instance: %w", err)
		}
		instances = append(instances, *i)
	}
	return instances, rows.Err()
}
