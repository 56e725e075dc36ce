// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the engine.
const (
	// Progress events
	EventXPEarned        EventType = "progress.xp_earned"
	EventCurrencyEarned  EventType = "progress.currency_earned"
	EventCurrencySpent   EventType = "progress.currency_spent"
	EventLevelUp         EventType = "progress.level_up"
	EventQuestionCorrect EventType = "progress.question_correct"
	EventLessonCompleted EventType = "progress.lesson_completed"
	EventModuleCompleted EventType = "progress.module_completed"
	EventCourseCompleted EventType = "progress.course_completed"
	EventQuizScored      EventType = "progress.quiz_scored"
	EventCoursePublished EventType = "progress.course_published"
	EventDailyLogin      EventType = "progress.daily_login"

	// Quest events
	EventQuestProgressed EventType = "quest.progressed"
	EventQuestCompleted  EventType = "quest.completed"
	EventQuestClaimed    EventType = "quest.claimed"
	EventQuestsRotated   EventType = "quest.rotated"

	// Challenge events
	EventChallengeCreated   EventType = "challenge.created"
	EventChallengeAccepted  EventType = "challenge.accepted"
	EventChallengeResult    EventType = "challenge.result_recorded"
	EventChallengeCompleted EventType = "challenge.completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPEarnedEvent is emitted when a user gains experience.
type XPEarnedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	NewTotal int64  `json:"new_total"`
	Source   string `json:"source"` // e.g., "question_credit", "module_completion"
	CourseID string `json:"course_id,omitempty"`
}

// Payload implements Event interface.
func (e XPEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
		"course_id": e.CourseID,
	}
}

// NewXPEarnedEvent creates a new XPEarnedEvent.
func NewXPEarnedEvent(userID string, amount, newTotal int64, source, courseID string) XPEarnedEvent {
	return XPEarnedEvent{
		BaseEvent: NewBaseEvent(EventXPEarned, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
		CourseID:  courseID,
	}
}

// CurrencyEarnedEvent is emitted when a user gains spendable currency.
type CurrencyEarnedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	NewTotal int64  `json:"new_total"`
	Source   string `json:"source"`
}

// Payload implements Event interface.
func (e CurrencyEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewCurrencyEarnedEvent creates a new CurrencyEarnedEvent.
func NewCurrencyEarnedEvent(userID string, amount, newTotal int64, source string) CurrencyEarnedEvent {
	return CurrencyEarnedEvent{
		BaseEvent: NewBaseEvent(EventCurrencyEarned, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelUpEvent is emitted when an experience grant crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// QuestionCorrectEvent is emitted when a user answers a quiz question correctly.
type QuestionCorrectEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	CourseID   string `json:"course_id"`
	QuestionID string `json:"question_id"`
}

// Payload implements Event interface.
func (e QuestionCorrectEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"course_id":   e.CourseID,
		"question_id": e.QuestionID,
	}
}

// NewQuestionCorrectEvent creates a new QuestionCorrectEvent.
func NewQuestionCorrectEvent(userID, courseID, questionID string) QuestionCorrectEvent {
	return QuestionCorrectEvent{
		BaseEvent:  NewBaseEvent(EventQuestionCorrect, userID),
		UserID:     userID,
		CourseID:   courseID,
		QuestionID: questionID,
	}
}

// LessonCompletedEvent is emitted when a user finishes a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
	LessonID string `json:"lesson_id"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
		"lesson_id": e.LessonID,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID, courseID, lessonID string) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, userID),
		UserID:    userID,
		CourseID:  courseID,
		LessonID:  lessonID,
	}
}

// QuizScoredEvent is emitted after a quiz score bonus evaluation.
type QuizScoredEvent struct {
	BaseEvent
	UserID       string  `json:"user_id"`
	EntityKey    string  `json:"entity_key"`
	ScorePercent float64 `json:"score_percent"`
	Perfect      bool    `json:"perfect"`
}

// Payload implements Event interface.
func (e QuizScoredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"entity_key":    e.EntityKey,
		"score_percent": e.ScorePercent,
		"perfect":       e.Perfect,
	}
}

// NewQuizScoredEvent creates a new QuizScoredEvent.
func NewQuizScoredEvent(userID, entityKey string, scorePercent float64) QuizScoredEvent {
	return QuizScoredEvent{
		BaseEvent:    NewBaseEvent(EventQuizScored, userID),
		UserID:       userID,
		EntityKey:    entityKey,
		ScorePercent: scorePercent,
		Perfect:      scorePercent >= 100,
	}
}

// DailyLoginEvent is emitted when a daily login bonus is granted.
type DailyLoginEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Streak int    `json:"streak"`
}

// Payload implements Event interface.
func (e DailyLoginEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"streak":  e.Streak,
	}
}

// NewDailyLoginEvent creates a new DailyLoginEvent.
func NewDailyLoginEvent(userID string, streak int) DailyLoginEvent {
	return DailyLoginEvent{
		BaseEvent: NewBaseEvent(EventDailyLogin, userID),
		UserID:    userID,
		Streak:    streak,
	}
}

// ModuleCompletedEvent is emitted when a user finishes a course module.
type ModuleCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
	ModuleID string `json:"module_id"`
}

// Payload implements Event interface.
func (e ModuleCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
		"module_id": e.ModuleID,
	}
}

// NewModuleCompletedEvent creates a new ModuleCompletedEvent.
func NewModuleCompletedEvent(userID, courseID, moduleID string) ModuleCompletedEvent {
	return ModuleCompletedEvent{
		BaseEvent: NewBaseEvent(EventModuleCompleted, userID),
		UserID:    userID,
		CourseID:  courseID,
		ModuleID:  moduleID,
	}
}

// CourseCompletedEvent is emitted when a user finishes an entire course.
type CourseCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
}

// Payload implements Event interface.
func (e CourseCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
	}
}

// NewCourseCompletedEvent creates a new CourseCompletedEvent.
func NewCourseCompletedEvent(userID, courseID string) CourseCompletedEvent {
	return CourseCompletedEvent{
		BaseEvent: NewBaseEvent(EventCourseCompleted, userID),
		UserID:    userID,
		CourseID:  courseID,
	}
}

// CoursePublishedEvent is emitted when an author's course goes live.
type CoursePublishedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
}

// Payload implements Event interface.
func (e CoursePublishedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
	}
}

// NewCoursePublishedEvent creates a new CoursePublishedEvent.
func NewCoursePublishedEvent(userID, courseID string) CoursePublishedEvent {
	return CoursePublishedEvent{
		BaseEvent: NewBaseEvent(EventCoursePublished, userID),
		UserID:    userID,
		CourseID:  courseID,
	}
}

// CurrencySpentEvent is emitted when currency is debited.
type CurrencySpentEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"` // positive magnitude of the spend
	NewTotal int64  `json:"new_total"`
	Reason   string `json:"reason"`
}

// Payload implements Event interface.
func (e CurrencySpentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"reason":    e.Reason,
	}
}

// NewCurrencySpentEvent creates a new CurrencySpentEvent.
func NewCurrencySpentEvent(userID string, amount, newTotal int64, reason string) CurrencySpentEvent {
	return CurrencySpentEvent{
		BaseEvent: NewBaseEvent(EventCurrencySpent, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quest Events
// ═══════════════════════════════════════════════════════════════════════════

// QuestCompletedEvent is emitted when a quest's progress reaches its target.
type QuestCompletedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	QuestID string `json:"quest_id"`
}

// Payload implements Event interface.
func (e QuestCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"quest_id": e.QuestID,
	}
}

// NewQuestCompletedEvent creates a new QuestCompletedEvent.
func NewQuestCompletedEvent(userID, questID string) QuestCompletedEvent {
	return QuestCompletedEvent{
		BaseEvent: NewBaseEvent(EventQuestCompleted, userID),
		UserID:    userID,
		QuestID:   questID,
	}
}

// QuestClaimedEvent is emitted when a completed quest's reward is claimed.
type QuestClaimedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	QuestID string `json:"quest_id"`
}

// Payload implements Event interface.
func (e QuestClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"quest_id": e.QuestID,
	}
}

// NewQuestClaimedEvent creates a new QuestClaimedEvent.
func NewQuestClaimedEvent(userID, questID string) QuestClaimedEvent {
	return QuestClaimedEvent{
		BaseEvent: NewBaseEvent(EventQuestClaimed, userID),
		UserID:    userID,
		QuestID:   questID,
	}
}

// QuestsRotatedEvent is emitted when a user's daily set is replaced.
type QuestsRotatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Day    string `json:"day"`
}

// Payload implements Event interface.
func (e QuestsRotatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"day":     e.Day,
	}
}

// NewQuestsRotatedEvent creates a new QuestsRotatedEvent.
func NewQuestsRotatedEvent(userID, day string) QuestsRotatedEvent {
	return QuestsRotatedEvent{
		BaseEvent: NewBaseEvent(EventQuestsRotated, userID),
		UserID:    userID,
		Day:       day,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Challenge Events
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeCreatedEvent is emitted when a duel is created.
type ChallengeCreatedEvent struct {
	BaseEvent
	ChallengeID  string `json:"challenge_id"`
	ChallengerID string `json:"challenger_id"`
	ChallengedID string `json:"challenged_id"`
	BetAmount    int64  `json:"bet_amount"`
}

// Payload implements Event interface.
func (e ChallengeCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id":  e.ChallengeID,
		"challenger_id": e.ChallengerID,
		"challenged_id": e.ChallengedID,
		"bet_amount":    e.BetAmount,
	}
}

// NewChallengeCreatedEvent creates a new ChallengeCreatedEvent.
func NewChallengeCreatedEvent(challengeID, challengerID, challengedID string, betAmount int64) ChallengeCreatedEvent {
	return ChallengeCreatedEvent{
		BaseEvent:    NewBaseEvent(EventChallengeCreated, challengeID),
		ChallengeID:  challengeID,
		ChallengerID: challengerID,
		ChallengedID: challengedID,
		BetAmount:    betAmount,
	}
}

// ChallengeAcceptedEvent is emitted when the challenged party accepts.
type ChallengeAcceptedEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	AcceptedBy  string `json:"accepted_by"`
}

// Payload implements Event interface.
func (e ChallengeAcceptedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"accepted_by":  e.AcceptedBy,
	}
}

// NewChallengeAcceptedEvent creates a new ChallengeAcceptedEvent.
func NewChallengeAcceptedEvent(challengeID, acceptedBy string) ChallengeAcceptedEvent {
	return ChallengeAcceptedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeAccepted, challengeID),
		ChallengeID: challengeID,
		AcceptedBy:  acceptedBy,
	}
}

// ChallengeResultEvent is emitted when one party's result is recorded.
type ChallengeResultEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	UserID      string `json:"user_id"`
	Score       int    `json:"score"`
}

// Payload implements Event interface.
func (e ChallengeResultEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"user_id":      e.UserID,
		"score":        e.Score,
	}
}

// NewChallengeResultEvent creates a new ChallengeResultEvent.
func NewChallengeResultEvent(challengeID, userID string, score int) ChallengeResultEvent {
	return ChallengeResultEvent{
		BaseEvent:   NewBaseEvent(EventChallengeResult, challengeID),
		ChallengeID: challengeID,
		UserID:      userID,
		Score:       score,
	}
}

// ChallengeCompletedEvent is emitted when a duel reaches its terminal state.
type ChallengeCompletedEvent struct {
	BaseEvent
	ChallengeID  string `json:"challenge_id"`
	ChallengerID string `json:"challenger_id"`
	ChallengedID string `json:"challenged_id"`
	WinnerID     string `json:"winner_id,omitempty"` // empty on a full tie
	Pot          int64  `json:"pot"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id":  e.ChallengeID,
		"challenger_id": e.ChallengerID,
		"challenged_id": e.ChallengedID,
		"winner_id":     e.WinnerID,
		"pot":           e.Pot,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(challengeID, challengerID, challengedID, winnerID string, pot int64) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:    NewBaseEvent(EventChallengeCompleted, challengeID),
		ChallengeID:  challengeID,
		ChallengerID: challengerID,
		ChallengedID: challengedID,
		WinnerID:     winnerID,
		Pot:          pot,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
// Both registrations return an unsubscribe function that removes the
// handler; calling it more than once is a no-op.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) (func(), error)

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) (func(), error)
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
