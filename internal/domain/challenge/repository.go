package challenge

import (
	"context"
)

// Repository stores challenges. Implementations live in
// infrastructure/persistence.
type Repository interface {
	// Create persists a new pending challenge.
	Create(ctx context.Context, c *Challenge) error

	// GetByID returns the challenge. Returns ErrChallengeNotFound when absent.
	GetByID(ctx context.Context, id string) (*Challenge, error)

	// Update applies a mutation to the challenge inside the store's
	// per-document atomic read-modify-write: fn receives the current
	// state, mutates it, and the new state is written only if fn
	// returns nil. Concurrent Updates for the same challenge serialize,
	// which is what makes the completion status-flip race-free.
	Update(ctx context.Context, id string, fn func(c *Challenge) error) (*Challenge, error)

	// ListForUser returns challenges where the user is a participant,
	// newest first.
	ListForUser(ctx context.Context, userID string, limit int) ([]*Challenge, error)
}

// Watcher delivers change notifications for a challenge document,
// used by UI layers to observe duel progress instead of polling.
type Watcher interface {
	// Watch returns a channel that receives the challenge id on every
	// update until ctx is done.
	Watch(ctx context.Context, challengeID string) (<-chan string, error)

	// NotifyChanged publishes a change notification for the id.
	NotifyChanged(ctx context.Context, challengeID string) error
}
