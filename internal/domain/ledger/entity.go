// Package ledger defines the per-user balance record and the append-only
// experience/currency history that backs every reward grant in the engine.
package ledger

import (
	"time"

	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// EntryKind distinguishes the two history logs.
type EntryKind string

const (
	// KindExperience marks an entry in the experience history.
	KindExperience EntryKind = "experience"

	// KindCurrency marks an entry in the currency history.
	KindCurrency EntryKind = "currency"
)

// UserBalance is the single mutable balance record per user.
// It is mutated exclusively through Repository.ApplyDelta.
type UserBalance struct {
	// UserID is the owner of this balance.
	UserID string

	// Experience is the accumulated XP. Monotonically non-decreasing:
	// no grant operation in this engine applies a negative XP delta.
	Experience int64

	// Currency is the spendable secondary currency. Never negative;
	// spends that would drive it below zero are rejected.
	Currency int64

	// DailyLoginStreak counts consecutive UTC days with a login bonus.
	DailyLoginStreak int

	// LastDailyLoginDate is the UTC date of the last daily login bonus.
	// Zero value means the bonus has never been granted.
	LastDailyLoginDate time.Time

	// CreatedAt is when the balance record was created.
	CreatedAt time.Time

	// UpdatedAt is when the balance record was last mutated.
	UpdatedAt time.Time
}

// Level returns the level derived from the current experience.
func (b *UserBalance) Level() int {
	return LevelForXP(b.Experience)
}

// CanAfford reports whether a spend of the given amount would keep
// the currency balance non-negative.
func (b *UserBalance) CanAfford(amount int64) bool {
	return amount >= 0 && b.Currency >= amount
}

// NewBalance creates a zeroed balance record for a new account.
func NewBalance(userID string) *UserBalance {
	now := time.Now().UTC()
	return &UserBalance{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Entry is one append-only history record. Entries are never mutated
// or deleted; at most one entry exists per idempotency key.
type Entry struct {
	// ID is the surrogate identifier of the entry.
	ID string

	// UserID is the owner of the entry.
	UserID string

	// Kind selects the experience or currency log.
	Kind EntryKind

	// Amount is the signed delta: positive = gain, negative = spend.
	Amount int64

	// Source is a short label for the originating operation,
	// e.g. "question_credit", "duel_payout", "duel_stake".
	Source string

	// Description is optional free text for UI history views.
	Description string

	// IdempotencyKey is globally unique per logical grant. Its
	// uniqueness is the mechanism that makes grants idempotent.
	IdempotencyKey string

	// CreatedAt is when the entry was appended.
	CreatedAt time.Time
}

// Delta describes one atomic balance mutation. Either amount may be
// zero; a zero amount produces no history entry for that kind.
type Delta struct {
	// Experience is the XP delta. Grants in this engine never pass
	// a negative value here.
	Experience int64

	// Currency is the currency delta. Negative values are spends and
	// are rejected when the balance cannot cover them.
	Currency int64

	// IdempotencyKey deduplicates the whole mutation.
	IdempotencyKey string

	// Source labels the resulting history entries.
	Source string

	// Description is carried onto the history entries.
	Description string
}

// Validate checks the delta before it reaches the store.
func (d Delta) Validate() error {
	if d.IdempotencyKey == "" {
		return shared.NewDomainError("ledger", "Validate", shared.ErrEmptyValue, "idempotency key is required")
	}
	if d.Source == "" {
		return shared.NewDomainError("ledger", "Validate", shared.ErrEmptyValue, "source is required")
	}
	if d.Experience < 0 {
		return shared.NewDomainError("ledger", "Validate", shared.ErrNegativeValue, "experience delta cannot be negative")
	}
	return nil
}

// ApplyResult is the outcome of an ApplyDelta call.
type ApplyResult struct {
	// Balance is the balance after the call. On a duplicate
	// idempotency key this is the unchanged current balance.
	Balance *UserBalance

	// Applied is false when the idempotency key had already been
	// used and the call was a no-op.
	Applied bool
}
