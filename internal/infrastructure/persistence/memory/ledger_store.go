// Package memory provides in-memory implementations of the engine's
// repositories. They honor the same atomicity contracts as the
// PostgreSQL implementations and back local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexlearn/nexlearn-economy/internal/domain/ledger"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// LedgerStore implements ledger.Repository in memory. A single mutex
// guards all state, which trivially satisfies the one-writer-per-user
// contract of ApplyDelta.
type LedgerStore struct {
	mu       sync.Mutex
	balances map[string]*ledger.UserBalance
	entries  []*ledger.Entry
	keys     map[string]bool
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		balances: make(map[string]*ledger.UserBalance),
		keys:     make(map[string]bool),
	}
}

// CreateBalance implements ledger.Repository.
func (s *LedgerStore) CreateBalance(ctx context.Context, userID string) (*ledger.UserBalance, error) {
	if userID == "" {
		return nil, shared.NewDomainError("ledger", "CreateBalance", shared.ErrEmptyValue, "user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[userID]; ok {
		return nil, shared.ErrBalanceExists
	}
	bal := ledger.NewBalance(userID)
	s.balances[userID] = bal
	return copyBalance(bal), nil
}

// GetBalance implements ledger.Repository.
func (s *LedgerStore) GetBalance(ctx context.Context, userID string) (*ledger.UserBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.balances[userID]
	if !ok {
		return nil, shared.ErrBalanceNotFound
	}
	return copyBalance(bal), nil
}

// ApplyDelta implements ledger.Repository.
func (s *LedgerStore) ApplyDelta(ctx context.Context, userID string, delta ledger.Delta) (*ledger.ApplyResult, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(userID, delta)
}

// ApplyDailyLogin implements ledger.Repository. The streak fields change
// under the same lock as the delta, so the bonus and the login metadata
// are never observed apart.
func (s *LedgerStore) ApplyDailyLogin(ctx context.Context, userID string, delta ledger.Delta, streak int, loginDate time.Time) (*ledger.ApplyResult, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.applyLocked(userID, delta)
	if err != nil || !res.Applied {
		return res, err
	}

	bal := s.balances[userID]
	bal.DailyLoginStreak = streak
	bal.LastDailyLoginDate = loginDate.UTC()
	res.Balance = copyBalance(bal)
	return res, nil
}

// applyLocked runs the read-modify-write. Callers hold s.mu.
func (s *LedgerStore) applyLocked(userID string, delta ledger.Delta) (*ledger.ApplyResult, error) {
	bal, ok := s.balances[userID]
	if !ok {
		return nil, shared.ErrBalanceNotFound
	}

	if s.keys[delta.IdempotencyKey] {
		return &ledger.ApplyResult{Balance: copyBalance(bal), Applied: false}, nil
	}

	if bal.Currency+delta.Currency < 0 {
		return nil, shared.ErrNegativeBalance
	}

	now := time.Now().UTC()
	if delta.Experience != 0 || delta.Currency == 0 {
		s.entries = append(s.entries, newEntry(userID, ledger.KindExperience, delta.Experience, delta, now))
	}
	if delta.Currency != 0 {
		s.entries = append(s.entries, newEntry(userID, ledger.KindCurrency, delta.Currency, delta, now))
	}
	s.keys[delta.IdempotencyKey] = true

	bal.Experience += delta.Experience
	bal.Currency += delta.Currency
	bal.UpdatedAt = now
	return &ledger.ApplyResult{Balance: copyBalance(bal), Applied: true}, nil
}

// HasEntry implements ledger.Repository.
func (s *LedgerStore) HasEntry(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[idempotencyKey], nil
}

// ListEntries implements ledger.Repository.
func (s *LedgerStore) ListEntries(ctx context.Context, userID string, kind ledger.EntryKind, limit int) ([]*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*ledger.Entry
	for _, e := range s.entries {
		if e.UserID == userID && e.Kind == kind {
			c := *e
			entries = append(entries, &c)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// SumEntries implements ledger.Repository.
func (s *LedgerStore) SumEntries(ctx context.Context, userID string, kind ledger.EntryKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, e := range s.entries {
		if e.UserID == userID && e.Kind == kind {
			sum += e.Amount
		}
	}
	return sum, nil
}

func newEntry(userID string, kind ledger.EntryKind, amount int64, delta ledger.Delta, now time.Time) *ledger.Entry {
	return &ledger.Entry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           kind,
		Amount:         amount,
		Source:         delta.Source,
		Description:    delta.Description,
		IdempotencyKey: delta.IdempotencyKey,
		CreatedAt:      now,
	}
}

func copyBalance(bal *ledger.UserBalance) *ledger.UserBalance {
	c := *bal
	return &c
}
