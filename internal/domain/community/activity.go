// Package community defines the best-effort community-activity feed the
// engine writes public milestones to: level-ups past the first level,
// perfect quizzes, publishes and decided duels.
package community

import (
	"context"
	"time"
)

// ActivityType labels a feed record.
type ActivityType string

const (
	ActivityLevelUp     ActivityType = "level_up"
	ActivityPerfectQuiz ActivityType = "perfect_quiz"
	ActivityPublished   ActivityType = "course_published"
	ActivityDuelWon     ActivityType = "duel_won"
)

// Activity is one record in the community feed.
type Activity struct {
	ID        string
	UserID    string
	Type      ActivityType
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Sink records community activity. Best-effort: failures are logged
// and swallowed by the caller.
type Sink interface {
	Record(ctx context.Context, userID string, activityType ActivityType, metadata map[string]interface{}) error
}
