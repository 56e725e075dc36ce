package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeWatcher_NotifyReachesWatcher(t *testing.T) {
	client := testClient(t)
	watcher := NewChallengeWatcher(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := watcher.Watch(ctx, "duel-1")
	require.NoError(t, err)

	require.NoError(t, watcher.NotifyChanged(ctx, "duel-1"))

	select {
	case id := <-updates:
		assert.Equal(t, "duel-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("update was not delivered")
	}
}

func TestChallengeWatcher_ChannelsAreIsolated(t *testing.T) {
	client := testClient(t)
	watcher := NewChallengeWatcher(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := watcher.Watch(ctx, "duel-1")
	require.NoError(t, err)

	// An update to a different duel never reaches this watcher.
	require.NoError(t, watcher.NotifyChanged(ctx, "duel-2"))

	select {
	case id := <-updates:
		t.Fatalf("unexpected update %q", id)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestChallengeWatcher_ClosesOnContextCancel(t *testing.T) {
	client := testClient(t)
	watcher := NewChallengeWatcher(client)
	ctx, cancel := context.WithCancel(context.Background())

	updates, err := watcher.Watch(ctx, "duel-1")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-updates:
		assert.False(t, ok, "channel closes when the watch context ends")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close")
	}
}

func TestChallengeWatcher_EmptyID(t *testing.T) {
	watcher := NewChallengeWatcher(testClient(t))
	ctx := context.Background()

	_, err := watcher.Watch(ctx, "")
	assert.ErrorIs(t, err, ErrChallengeIDEmpty)
	assert.ErrorIs(t, watcher.NotifyChanged(ctx, ""), ErrChallengeIDEmpty)
}

func TestWatchChannel(t *testing.T) {
	assert.Equal(t, "challenge:watch:duel-1", WatchChannel("duel-1"))
}
