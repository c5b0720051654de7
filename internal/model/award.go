package model

import "time"

// Award is a prize children spend points on. An empty AllowedChildIDs list
// means every child in the family may claim it.
type Award struct {
	ID              int64      `json:"id"`
	FamilyID        int64      `json:"family_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Points          int        `json:"points"`
	AllowedChildIDs []int64    `json:"allowed_child_ids,omitempty"`
	RedemptionLimit *int       `json:"redemption_limit"`
	RedemptionCount int        `json:"redemption_count"`
	LockoutPeriod   *int       `json:"lockout_period"`
	LockoutUnit     *string    `json:"lockout_unit"`
	LastRedeemedAt  *time.Time `json:"last_redeemed_at"`
	Awarded         bool       `json:"awarded"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ClaimedAward is one immutable ledger row per successful redemption. The
// references are pointers because the ledger outlives the rows it points
// at: deleting an award or a child leaves the history intact.
type ClaimedAward struct {
	ID             int64     `json:"id"`
	AwardID        *int64    `json:"award_id"`
	ChildID        *int64    `json:"child_id"`
	PointsDeducted int       `json:"points_deducted"`
	ClaimedAt      time.Time `json:"claimed_at"`
}
