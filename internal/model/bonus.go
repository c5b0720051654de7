package model

import "time"

// BonusAward is a recognition badge a parent grants directly. Its point
// value is decorative; grants never change a child's balance.
type BonusAward struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Title     string    `json:"title"`
	Icon      string    `json:"icon"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// BonusAwardInstance records one grant of a bonus award to a child.
type BonusAwardInstance struct {
	ID           int64     `json:"id"`
	BonusAwardID int64     `json:"bonus_award_id"`
	ChildID      int64     `json:"child_id"`
	AwardedAt    time.Time `json:"awarded_at"`
}
