package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexlearn/nexlearn-economy/internal/domain/community"
	"github.com/nexlearn/nexlearn-economy/internal/domain/notification"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// NotificationOutbox implements notification.Outbox in memory.
type NotificationOutbox struct {
	mu    sync.Mutex
	queue []*notification.Notification
}

// NewNotificationOutbox creates an empty NotificationOutbox.
func NewNotificationOutbox() *NotificationOutbox {
	return &NotificationOutbox{}
}

// Enqueue implements notification.Sink.
func (o *NotificationOutbox) Enqueue(ctx context.Context, userID string, notifType notification.Type, payload map[string]interface{}) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.queue = append(o.queue, &notification.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      notifType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// ListPending implements notification.Outbox.
func (o *NotificationOutbox) ListPending(ctx context.Context, limit int) ([]*notification.Notification, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var pending []*notification.Notification
	for _, n := range o.queue {
		if n.SentAt == nil {
			c := *n
			pending = append(pending, &c)
			if limit > 0 && len(pending) >= limit {
				break
			}
		}
	}
	return pending, nil
}

// MarkSent implements notification.Outbox.
func (o *NotificationOutbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, n := range o.queue {
		if n.ID == id && n.SentAt == nil {
			now := time.Now().UTC()
			n.SentAt = &now
			return nil
		}
	}
	return shared.ErrNotFound
}

// All returns every enqueued notification, for assertions in tests.
func (o *NotificationOutbox) All() []*notification.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*notification.Notification, len(o.queue))
	for i, n := range o.queue {
		c := *n
		out[i] = &c
	}
	return out
}

// ActivitySink implements community.Sink in memory.
type ActivitySink struct {
	mu         sync.Mutex
	activities []*community.Activity
}

// NewActivitySink creates an empty ActivitySink.
func NewActivitySink() *ActivitySink {
	return &ActivitySink{}
}

// Record implements community.Sink.
func (s *ActivitySink) Record(ctx context.Context, userID string, activityType community.ActivityType, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activities = append(s.activities, &community.Activity{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      activityType,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// All returns every recorded activity, for assertions in tests.
func (s *ActivitySink) All() []*community.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*community.Activity, len(s.activities))
	for i, a := range s.activities {
		c := *a
		out[i] = &c
	}
	return out
}

// StaticPresence implements notification.PresenceOracle with a fixed
// set of online users.
type StaticPresence struct {
	mu     sync.Mutex
	online map[string]bool
}

// NewStaticPresence creates a StaticPresence with the given users online.
func NewStaticPresence(onlineUsers ...string) *StaticPresence {
	online := make(map[string]bool, len(onlineUsers))
	for _, u := range onlineUsers {
		online[u] = true
	}
	return &StaticPresence{online: online}
}

// SetOnline changes a user's presence.
func (p *StaticPresence) SetOnline(userID string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = online
}

// IsOnline implements notification.PresenceOracle.
func (p *StaticPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID], nil
}
