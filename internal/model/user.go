package model

import "time"

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

// User is a family member: a parent who manages tasks and awards, or a
// child who earns and spends points.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	FamilyID  *int64    `json:"family_id"`
	Points    int       `json:"points"`
	Timezone  string    `json:"timezone"`
	HasPIN    bool      `json:"has_pin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Family groups users. Every child belongs to exactly one family; a parent
// gets one created on first login if they have none.
type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a cookie-backed login session.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
