package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE WATCHER
// ══════════════════════════════════════════════════════════════════════════════

// ErrChallengeIDEmpty is returned when the challenge ID is empty.
var ErrChallengeIDEmpty = errors.New("watcher: challenge ID cannot be empty")

// watchChannelPrefix namespaces the per-challenge Pub/Sub channels.
const watchChannelPrefix = "challenge:watch:"

// WatchChannel returns the Pub/Sub channel name for a challenge.
func WatchChannel(challengeID string) string {
	return watchChannelPrefix + challengeID
}

// ChallengeWatcher implements challenge.Watcher over Redis Pub/Sub.
// Every persisted change to a challenge is announced on its own
// channel, so duel observers receive updates instead of polling.
type ChallengeWatcher struct {
	client *redis.Client
}

// NewChallengeWatcher creates a new ChallengeWatcher.
func NewChallengeWatcher(client *redis.Client) *ChallengeWatcher {
	return &ChallengeWatcher{client: client}
}

// Watch implements challenge.Watcher. The returned channel delivers the
// challenge id on every update and closes when ctx is done. Slow
// consumers miss intermediate updates rather than blocking the pump.
func (w *ChallengeWatcher) Watch(ctx context.Context, challengeID string) (<-chan string, error) {
	if challengeID == "" {
		return nil, ErrChallengeIDEmpty
	}

	sub := w.client.Subscribe(ctx, WatchChannel(challengeID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()
	return out, nil
}

// NotifyChanged implements challenge.Watcher.
func (w *ChallengeWatcher) NotifyChanged(ctx context.Context, challengeID string) error {
	if challengeID == "" {
		return ErrChallengeIDEmpty
	}
	return w.client.Publish(ctx, WatchChannel(challengeID), challengeID).Err()
}
