package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// ErrUserIDEmpty is returned when the user ID is empty.
var ErrUserIDEmpty = errors.New("presence: user ID cannot be empty")

// TTLOnline is how long a heartbeat keeps a user counted as online.
const TTLOnline = 5 * time.Minute

// keyPresenceAll is the sorted set of recently seen users, scored by
// last heartbeat.
const keyPresenceAll = "presence:all"

// PresenceKey returns the heartbeat key for a user.
func PresenceKey(userID string) string {
	return "presence:" + userID
}

// PresenceTracker answers whether a user is currently connected, using
// TTL-based heartbeat keys. The engine consults it before deciding to
// queue a notification for an offline recipient.
//
// Architecture:
//   - Each online user has a key "presence:{user_id}" with TTL
//   - A sorted set "presence:all" tracks users by last heartbeat timestamp
type PresenceTracker struct {
	client *redis.Client
}

// NewPresenceTracker creates a new PresenceTracker.
func NewPresenceTracker(client *redis.Client) *PresenceTracker {
	return &PresenceTracker{client: client}
}

// Heartbeat marks the user as online for the next TTLOnline window.
// Call it on every user action.
func (t *PresenceTracker) Heartbeat(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDEmpty
	}

	now := time.Now().UTC()
	pipe := t.client.Pipeline()
	pipe.Set(ctx, PresenceKey(userID), now.Format(time.RFC3339), TTLOnline)
	pipe.ZAdd(ctx, keyPresenceAll, redis.Z{
		Score:  float64(now.Unix()),
		Member: userID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// IsOnline implements notification.PresenceOracle.
func (t *PresenceTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrUserIDEmpty
	}
	n, err := t.client.Exists(ctx, PresenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetOffline removes the user's heartbeat immediately.
func (t *PresenceTracker) SetOffline(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDEmpty
	}
	pipe := t.client.Pipeline()
	pipe.Del(ctx, PresenceKey(userID))
	pipe.ZRem(ctx, keyPresenceAll, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// OnlineCount returns the number of users seen within the TTL window.
func (t *PresenceTracker) OnlineCount(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-TTLOnline).Unix()
	// Stale members fall out of the window by score; prune then count.
	if err := t.client.ZRemRangeByScore(ctx, keyPresenceAll, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, err
	}
	return t.client.ZCard(ctx, keyPresenceAll).Result()
}
