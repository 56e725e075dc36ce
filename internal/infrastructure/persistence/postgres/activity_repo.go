package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nexlearn/nexlearn-economy/internal/domain/community"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// ActivityRepository implements community.Sink using PostgreSQL.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// Record implements community.Sink.
func (r *ActivityRepository) Record(ctx context.Context, userID string, activityType community.ActivityType, metadata map[string]interface{}) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return shared.WrapError("community", "Record", shared.ErrInvalidInput, "metadata not serializable", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO community_activities (id, user_id, activity_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), userID, string(activityType), data, time.Now().UTC())
	if err != nil {
		return shared.WrapError("community", "Record", shared.ErrExternalService, "insert failed", err)
	}
	return nil
}

// ListRecent returns the newest feed records, for the community feed view.
func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]*community.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, activity_type, metadata, created_at
		FROM community_activities
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, shared.WrapError("community", "ListRecent", shared.ErrExternalService, "query failed", err)
	}
	defer rows.Close()

	var activities []*community.Activity
	for rows.Next() {
		a := &community.Activity{}
		var typeStr string
		var data []byte
		if err := rows.Scan(&a.ID, &a.UserID, &typeStr, &data, &a.CreatedAt); err != nil {
			return nil, shared.WrapError("community", "ListRecent", shared.ErrExternalService, "scan failed", err)
		}
		a.Type = community.ActivityType(typeStr)
		if err := json.Unmarshal(data, &a.Metadata); err != nil {
			return nil, shared.WrapError("community", "ListRecent", shared.ErrExternalService, "metadata decode failed", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
