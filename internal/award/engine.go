// Package award implements the redemption engine: the availability rules
// and point accounting for claiming awards.
package award

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/questkeeper/internal/model"
	"github.com/dukerupert/questkeeper/internal/store"
)

var (
	ErrAwardNotFound = errors.New("award not found")
	ErrChildNotFound = errors.New("child not found")
	// ErrUnavailable covers lockout, exhausted redemption limits, and
	// visibility. Wrapped errors carry the specific reason.
	ErrUnavailable = errors.New("award unavailable")
	// ErrInsufficientPoints is distinct from ErrUnavailable so callers can
	// tell "earn more points" apart from "not claimable right now".
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrClaimConflict means a concurrent claim won the race. The caller
	// may retry manually after re-reading state; the engine never retries.
	ErrClaimConflict = errors.New("claim conflict")
)

// Engine validates and executes award redemptions. It is stateless; all
// durable state lives in the stores.
type Engine struct {
	awards *store.AwardStore
	users  *store.UserStore
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(awards *store.AwardStore, users *store.UserStore, logger *slog.Logger) *Engine {
	return &Engine{
		awards: awards,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// LockoutEnd returns when the award's lockout window closes, or nil when no
// lockout applies. A lockout only exists while both last_redeemed_at and
// lockout_period are set, so reviving an award (which clears
// last_redeemed_at) also clears the lockout.
func LockoutEnd(a *model.Award) *time.Time {
	if a.LastRedeemedAt == nil || a.LockoutPeriod == nil || a.LockoutUnit == nil {
		return nil
	}
	day := 24 * time.Hour
	unit := day
	if *a.LockoutUnit == "weeks" {
		unit = 7 * day
	}
	end := a.LastRedeemedAt.Add(time.Duration(*a.LockoutPeriod) * unit)
	return &end
}

// Availability checks whether the child can claim the award at the given
// instant: family visibility, the allowed-children list, the redemption
// limit, and the lockout window. The points balance is checked separately
// in Claim so the caller can distinguish the two failures.
func (e *Engine) Availability(a *model.Award, child *model.User, now time.Time) error {
	if child.FamilyID == nil || *child.FamilyID != a.FamilyID {
		return fmt.Errorf("%w: not visible to this child", ErrUnavailable)
	}

	if len(a.AllowedChildIDs) > 0 {
		allowed := false
		for _, id := range a.AllowedChildIDs {
			if id == child.ID {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: not visible to this child", ErrUnavailable)
		}
	}

	if a.RedemptionLimit != nil && *a.RedemptionLimit-a.RedemptionCount <= 0 {
		return fmt.Errorf("%w: fully redeemed", ErrUnavailable)
	}

	if end := LockoutEnd(a); end != nil && now.Before(*end) {
		return fmt.Errorf("%w: locked until %s", ErrUnavailable, end.UTC().Format(time.RFC3339))
	}

	return nil
}

// Claim atomically converts the child's points into one redemption of the
// award. Live award and balance state is always re-read here; client-side
// checks are advisory only. On success exactly one ledger row exists and
// the balance dropped by exactly the award's cost; on any failure nothing
// changed.
func (e *Engine) Claim(awardID, childID int64) (*model.ClaimedAward, error) {
	a, err := e.awards.GetByID(awardID)
	if err != nil {
		return nil, fmt.Errorf("fetch award: %w", err)
	}
	if a == nil {
		return nil, ErrAwardNotFound
	}

	child, err := e.users.GetByID(childID)
	if err != nil {
		return nil, fmt.Errorf("fetch child: %w", err)
	}
	if child == nil || child.Role != model.RoleChild {
		return nil, ErrChildNotFound
	}

	now := e.now()
	if err := e.Availability(a, child, now); err != nil {
		return nil, err
	}
	if child.Points < a.Points {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, child.Points, a.Points)
	}

	claim, err := e.awards.Claim(a, child.ID, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientPoints):
			return nil, ErrInsufficientPoints
		case errors.Is(err, store.ErrClaimConflict):
			return nil, ErrClaimConflict
		}
		return nil, fmt.Errorf("claim award: %w", err)
	}

	e.logger.Info("award claimed",
		"award_id", a.ID,
		"child_id", child.ID,
		"points_deducted", a.Points,
	)
	return claim, nil
}

// Revive resets the award's redemption count, lockout, and fully-claimed
// marker so it can be claimed again. This is an explicit parent override,
// not normal accounting.
func (e *Engine) Revive(awardID int64) (*model.Award, error) {
	a, err := e.awards.GetByID(awardID)
	if err != nil {
		return nil, fmt.Errorf("fetch award: %w", err)
	}
	if a == nil {
		return nil, ErrAwardNotFound
	}

	revived, err := e.awards.Revive(awardID)
	if err != nil {
		return nil, fmt.Errorf("revive award: %w", err)
	}

	e.logger.Info("award revived", "award_id", awardID)
	return revived, nil
}
