package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/questkeeper/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var familyID sql.NullInt64
	var pinHash string

	err := scanner.Scan(&u.ID, &u.Name, &u.Role, &familyID, &u.Points, &u.Timezone, &pinHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if familyID.Valid {
		u.FamilyID = &familyID.Int64
	}
	u.HasPIN = pinHash != ""
	return &u, nil
}

const userCols = `id, name, role, family_id, points, timezone, pin_hash, created_at, updated_at`

func (s *UserStore) Create(name, role string, familyID *int64, timezone string) (*model.User, error) {
	var fID sql.NullInt64
	if familyID != nil {
		fID = sql.NullInt64{Int64: *familyID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO users (name, role, family_id, timezone) VALUES (?, ?, ?, ?)`,
		name, role, fID, timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ListParents returns every parent account, the evaluation set for the
// midnight reset job.
func (s *UserStore) ListParents() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users WHERE role = 'parent' ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) ListByFamily(familyID int64) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users WHERE family_id = ? ORDER BY role ASC, name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list users by family: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) Update(id int64, name, timezone string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, timezone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, timezone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

// SetFamily attaches a user to a family. Used for invited children and for
// the lazy family creation on a parent's first login.
func (s *UserStore) SetFamily(id, familyID int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET family_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		familyID, id,
	)
	if err != nil {
		return fmt.Errorf("set family: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// --- PIN methods ---

func (s *UserStore) SetPIN(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE users SET pin_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *UserStore) ClearPIN(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET pin_hash = '' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

func (s *UserStore) GetPINHash(id int64) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT pin_hash FROM users WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pin hash: %w", err)
	}
	return hash, nil
}
