package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPresenceTracker_HeartbeatAndIsOnline(t *testing.T) {
	tracker := NewPresenceTracker(testClient(t))
	ctx := context.Background()

	online, err := tracker.IsOnline(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, tracker.Heartbeat(ctx, "user-1"))

	online, err = tracker.IsOnline(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, online)
}

func TestPresenceTracker_HeartbeatExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	tracker := NewPresenceTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.Heartbeat(ctx, "user-1"))
	mr.FastForward(TTLOnline + 1)

	online, err := tracker.IsOnline(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, online, "heartbeat key expires after the TTL window")
}

func TestPresenceTracker_SetOffline(t *testing.T) {
	tracker := NewPresenceTracker(testClient(t))
	ctx := context.Background()

	require.NoError(t, tracker.Heartbeat(ctx, "user-1"))
	require.NoError(t, tracker.SetOffline(ctx, "user-1"))

	online, err := tracker.IsOnline(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPresenceTracker_OnlineCount(t *testing.T) {
	tracker := NewPresenceTracker(testClient(t))
	ctx := context.Background()

	require.NoError(t, tracker.Heartbeat(ctx, "user-1"))
	require.NoError(t, tracker.Heartbeat(ctx, "user-2"))
	require.NoError(t, tracker.Heartbeat(ctx, "user-3"))

	count, err := tracker.OnlineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, tracker.SetOffline(ctx, "user-2"))
	count, err = tracker.OnlineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestPresenceTracker_EmptyUserID(t *testing.T) {
	tracker := NewPresenceTracker(testClient(t))
	ctx := context.Background()

	assert.ErrorIs(t, tracker.Heartbeat(ctx, ""), ErrUserIDEmpty)
	_, err := tracker.IsOnline(ctx, "")
	assert.ErrorIs(t, err, ErrUserIDEmpty)
	assert.ErrorIs(t, tracker.SetOffline(ctx, ""), ErrUserIDEmpty)
}
