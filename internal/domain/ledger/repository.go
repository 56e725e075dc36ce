package ledger

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the contract for the balance store. Implementations
// live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the atomic balance store.
type Repository interface {
	// CreateBalance creates a zeroed balance record for a new account.
	// Returns ErrBalanceExists if the record already exists.
	CreateBalance(ctx context.Context, userID string) (*UserBalance, error)

	// GetBalance returns the current balance record.
	// Returns ErrBalanceNotFound if the user has no record.
	GetBalance(ctx context.Context, userID string) (*UserBalance, error)

	// ApplyDelta executes a single atomic read-modify-write against the
	// user's balance: read the current balance, verify that a currency
	// spend stays non-negative, write the new balance and append the
	// corresponding history entries - all visible together or not at all.
	//
	// If an entry with the delta's idempotency key already exists the
	// call is a no-op returning the current balance with Applied=false.
	// Returns ErrNegativeBalance if a spend would go below zero,
	// ErrBalanceNotFound if the user has no record, and
	// ErrTooManyTxConflicts after bounded retries of write conflicts.
	//
	// Concurrent calls for the same user serialize; calls for different
	// users do not contend.
	ApplyDelta(ctx context.Context, userID string, delta Delta) (*ApplyResult, error)

	// ApplyDailyLogin is ApplyDelta plus the login-streak bookkeeping in
	// the same atomic transition: the bonus entry, the streak counter and
	// the last login date become visible together or not at all. A
	// duplicate idempotency key is a no-op that leaves the streak fields
	// untouched.
	ApplyDailyLogin(ctx context.Context, userID string, delta Delta, streak int, loginDate time.Time) (*ApplyResult, error)

	// HasEntry reports whether an entry with the idempotency key exists.
	HasEntry(ctx context.Context, idempotencyKey string) (bool, error)

	// ListEntries returns history entries for the user and kind, newest
	// first, limited to limit (0 means no limit).
	ListEntries(ctx context.Context, userID string, kind EntryKind, limit int) ([]*Entry, error)

	// SumEntries returns the sum of all entry amounts for the user and
	// kind. Used by the history/balance consistency check.
	SumEntries(ctx context.Context, userID string, kind EntryKind) (int64, error)
}
