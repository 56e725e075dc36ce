package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nexlearn/nexlearn-economy/internal/domain/notification"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// NotificationOutbox implements notification.Outbox using PostgreSQL.
type NotificationOutbox struct {
	conn *Connection
}

// NewNotificationOutbox creates a new NotificationOutbox.
func NewNotificationOutbox(conn *Connection) *NotificationOutbox {
	return &NotificationOutbox{conn: conn}
}

// Enqueue implements notification.Sink.
func (r *NotificationOutbox) Enqueue(ctx context.Context, userID string, notifType notification.Type, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return shared.WrapError("notification", "Enqueue", shared.ErrInvalidInput, "payload not serializable", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO notifications (id, user_id, notif_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), userID, string(notifType), data, time.Now().UTC())
	if err != nil {
		return shared.WrapError("notification", "Enqueue", shared.ErrExternalService, "insert failed", err)
	}
	return nil
}

// ListPending implements notification.Outbox.
func (r *NotificationOutbox) ListPending(ctx context.Context, limit int) ([]*notification.Notification, error) {
	query := `
		SELECT id, user_id, notif_type, payload, created_at, sent_at
		FROM notifications
		WHERE sent_at IS NULL
		ORDER BY created_at`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("notification", "ListPending", shared.ErrExternalService, "query failed", err)
	}
	defer rows.Close()

	var notifs []*notification.Notification
	for rows.Next() {
		n := &notification.Notification{}
		var typeStr string
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &typeStr, &data, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, shared.WrapError("notification", "ListPending", shared.ErrExternalService, "scan failed", err)
		}
		n.Type = notification.Type(typeStr)
		if err := json.Unmarshal(data, &n.Payload); err != nil {
			return nil, shared.WrapError("notification", "ListPending", shared.ErrExternalService, "payload decode failed", err)
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// MarkSent implements notification.Outbox.
func (r *NotificationOutbox) MarkSent(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE notifications SET sent_at = NOW() WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return shared.WrapError("notification", "MarkSent", shared.ErrExternalService, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
