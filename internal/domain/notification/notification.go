// Package notification defines the fire-and-forget notification sink the
// engine uses for offline recipients, plus the presence oracle consulted
// before deciding to notify. Delivery itself belongs to the surrounding
// application layer.
package notification

import (
	"context"
	"time"
)

// Type labels what a notification is about.
type Type string

const (
	TypeRewardGranted      Type = "reward_granted"
	TypeLevelUp            Type = "level_up"
	TypeQuestCompleted     Type = "quest_completed"
	TypeChallengeReceived  Type = "challenge_received"
	TypeChallengeAccepted  Type = "challenge_accepted"
	TypeChallengeCompleted Type = "challenge_completed"
)

// Notification is one queued message for a user.
type Notification struct {
	ID        string
	UserID    string
	Type      Type
	Payload   map[string]interface{}
	CreatedAt time.Time
	SentAt    *time.Time
}

// Sink enqueues notifications. Enqueue is fire-and-forget from the
// engine's point of view: failures are logged and swallowed, never
// propagated into the grant that triggered them.
type Sink interface {
	Enqueue(ctx context.Context, userID string, notifType Type, payload map[string]interface{}) error
}

// Outbox extends Sink with the queries a delivery worker needs.
type Outbox interface {
	Sink

	// ListPending returns unsent notifications, oldest first.
	ListPending(ctx context.Context, limit int) ([]*Notification, error)

	// MarkSent stamps the notification as delivered.
	MarkSent(ctx context.Context, id string) error
}

// PresenceOracle answers whether a user is currently connected.
type PresenceOracle interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}
