package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexlearn/nexlearn-economy/internal/domain/ledger"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

func TestLedgerStore_CreateBalance(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	bal, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, bal.Experience)
	assert.Zero(t, bal.Currency)

	_, err = store.CreateBalance(ctx, "user-1")
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = store.GetBalance(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLedgerStore_ApplyDelta_Idempotent(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	_, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)

	delta := ledger.Delta{Experience: 100, Currency: 10, IdempotencyKey: "grant-1", Source: "test"}

	res, err := store.ApplyDelta(ctx, "user-1", delta)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(100), res.Balance.Experience)
	assert.Equal(t, int64(10), res.Balance.Currency)

	// Same key again: no-op returning the current balance.
	res, err = store.ApplyDelta(ctx, "user-1", delta)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(100), res.Balance.Experience)
	assert.Equal(t, int64(10), res.Balance.Currency)
}

func TestLedgerStore_ApplyDailyLogin_Atomic(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	_, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)

	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	delta := ledger.Delta{Experience: 20, Currency: 5, IdempotencyKey: "login-2026-05-04", Source: "daily_login"}

	res, err := store.ApplyDailyLogin(ctx, "user-1", delta, 3, day)
	require.NoError(t, err)
	assert.True(t, res.Applied)

	// The bonus and the streak fields are visible together.
	bal, err := store.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), bal.Experience)
	assert.Equal(t, int64(5), bal.Currency)
	assert.Equal(t, 3, bal.DailyLoginStreak)
	assert.True(t, bal.LastDailyLoginDate.Equal(day))

	// A duplicate key is a no-op that leaves the streak fields untouched.
	res, err = store.ApplyDailyLogin(ctx, "user-1", delta, 99, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, res.Applied)

	bal, err = store.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, bal.DailyLoginStreak)
	assert.True(t, bal.LastDailyLoginDate.Equal(day))
}

func TestLedgerStore_ApplyDelta_InsufficientFunds(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	_, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)

	_, err = store.ApplyDelta(ctx, "user-1", ledger.Delta{
		Currency: -1, IdempotencyKey: "spend-1", Source: "test",
	})
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	// The failed spend must not consume the key.
	has, err := store.HasEntry(ctx, "spend-1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestLedgerStore_ApplyDelta_MissingUser(t *testing.T) {
	store := NewLedgerStore()
	_, err := store.ApplyDelta(context.Background(), "ghost", ledger.Delta{
		Experience: 1, IdempotencyKey: "k", Source: "test",
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLedgerStore_HistoryFidelity(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	_, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)

	deltas := []ledger.Delta{
		{Experience: 100, Currency: 10, IdempotencyKey: "a", Source: "test"},
		{Experience: 50, IdempotencyKey: "b", Source: "test"},
		{Currency: -5, IdempotencyKey: "c", Source: "test"},
		{Experience: 25, Currency: 3, IdempotencyKey: "d", Source: "test"},
	}
	for _, d := range deltas {
		_, err := store.ApplyDelta(ctx, "user-1", d)
		require.NoError(t, err)
	}

	bal, err := store.GetBalance(ctx, "user-1")
	require.NoError(t, err)

	xpSum, err := store.SumEntries(ctx, "user-1", ledger.KindExperience)
	require.NoError(t, err)
	curSum, err := store.SumEntries(ctx, "user-1", ledger.KindCurrency)
	require.NoError(t, err)

	assert.Equal(t, bal.Experience, xpSum)
	assert.Equal(t, bal.Currency, curSum)
}

func TestLedgerStore_ConcurrentSameKey(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	_, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)

	const goroutines = 32
	var wg sync.WaitGroup
	appliedCount := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.ApplyDelta(ctx, "user-1", ledger.Delta{
				Experience: 100, IdempotencyKey: "racing-grant", Source: "test",
			})
			if err == nil && res.Applied {
				appliedCount <- true
			}
		}()
	}
	wg.Wait()
	close(appliedCount)

	applied := 0
	for range appliedCount {
		applied++
	}
	assert.Equal(t, 1, applied, "exactly one of the racing calls must apply")

	bal, err := store.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Experience)
}

func TestLedgerStore_ConcurrentDistinctKeys(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	_, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)

	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.ApplyDelta(ctx, "user-1", ledger.Delta{
				Experience: 10, IdempotencyKey: fmt.Sprintf("grant-%d", n), Source: "test",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	bal, err := store.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10*goroutines), bal.Experience)

	sum, err := store.SumEntries(ctx, "user-1", ledger.KindExperience)
	require.NoError(t, err)
	assert.Equal(t, bal.Experience, sum)
}

func TestLedgerStore_ListEntries(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	_, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.ApplyDelta(ctx, "user-1", ledger.Delta{
			Experience: int64(i + 1), IdempotencyKey: fmt.Sprintf("k-%d", i), Source: "test",
		})
		require.NoError(t, err)
	}

	entries, err := store.ListEntries(ctx, "user-1", ledger.KindExperience, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	all, err := store.ListEntries(ctx, "user-1", ledger.KindExperience, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
