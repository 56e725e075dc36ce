package quest

import (
	"context"
	"time"
)

// Repository stores per-user daily quest sets. Implementations live in
// infrastructure/persistence.
type Repository interface {
	// GetDailySet returns the user's current daily set, regardless of
	// which day it belongs to. Returns ErrQuestNotFound when the user
	// has no set at all.
	GetDailySet(ctx context.Context, userID string) (*DailySet, error)

	// SaveDailySet upserts the whole set: quests and reroll tokens.
	// A save for a new day discards the previous day's quests.
	SaveDailySet(ctx context.Context, set *DailySet) error

	// UpdateQuest persists a single quest's claim state.
	UpdateQuest(ctx context.Context, q *Quest) error

	// AdvanceQuests atomically increments progress by n on every active
	// quest of the given type in the user's set, capping at each target,
	// and returns the quests this call completed. Concurrent calls never
	// lose increments: the increment happens in the store, not on a
	// read-back copy.
	AdvanceQuests(ctx context.Context, userID string, questType Type, n int) ([]*Quest, error)

	// ListStaleUsers returns users whose stored set predates the given
	// UTC day. Used by the scheduled rotation sweep.
	ListStaleUsers(ctx context.Context, day time.Time, limit int) ([]string, error)
}
