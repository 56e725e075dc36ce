// Package quest implements the daily quest tracker: lazy rotation at the
// UTC day boundary, bus-driven progress advancement, rerolls, and
// explicit reward claiming through the grant service.
package quest

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/nexlearn/nexlearn-economy/internal/domain/quest"
	"github.com/nexlearn/nexlearn-economy/internal/domain/reward"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
	"github.com/nexlearn/nexlearn-economy/pkg/logger"
	"github.com/nexlearn/nexlearn-economy/pkg/timeutil"
)

// RewardGranter is the slice of the grant service the tracker needs.
type RewardGranter interface {
	GrantQuestClaim(ctx context.Context, userID, questID string, xp, currency int64) (*reward.GrantResult, error)
}

// Tracker owns per-user daily quest sets. Progress arrives through bus
// subscriptions registered at process start; claiming and rerolling are
// explicit user actions.
type Tracker struct {
	repo    quest.Repository
	rewards RewardGranter
	bus     shared.EventPublisher
	log     *logger.Logger
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTracker creates a new Tracker.
func NewTracker(repo quest.Repository, rewards RewardGranter, bus shared.EventPublisher, log *logger.Logger) *Tracker {
	return &Tracker{
		repo:    repo,
		rewards: rewards,
		bus:     bus,
		log:     log.With(logger.Component("quest_tracker")),
		now:     timeutil.NowUTC,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock overrides the tracker clock, for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// WithRand overrides the random source, for deterministic tests.
func (t *Tracker) WithRand(rng *rand.Rand) *Tracker {
	t.rng = rng
	return t
}

// ══════════════════════════════════════════════════════════════════════════════
// USER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetDailySet returns the user's quest set for the current UTC day,
// rotating a missing or stale set first.
func (t *Tracker) GetDailySet(ctx context.Context, userID string) (*quest.DailySet, error) {
	return t.ensureCurrent(ctx, userID)
}

// Reroll swaps one unclaimed, zero-progress quest for a fresh draw in
// the same slot, consuming a reroll token.
func (t *Tracker) Reroll(ctx context.Context, userID, questID string) (*quest.Quest, error) {
	set, err := t.ensureCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	fresh, err := set.Reroll(questID, t.rng)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := t.repo.SaveDailySet(ctx, set); err != nil {
		return nil, err
	}
	t.log.Info("quest rerolled",
		logger.UserID(userID),
		logger.QuestID(questID),
		logger.Int("tokens_left", set.RerollTokens))
	return fresh, nil
}

// Claim pays out a completed quest. The grant is keyed by the quest
// instance id, so a retried claim after a crash never double-pays.
func (t *Tracker) Claim(ctx context.Context, userID, questID string) (*reward.GrantResult, error) {
	set, err := t.ensureCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}

	q := set.Find(questID)
	if q == nil {
		return nil, shared.ErrQuestNotFound
	}
	if !q.Completed {
		return nil, shared.ErrQuestNotCompleted
	}
	if q.Claimed {
		return nil, shared.ErrQuestClaimed
	}

	res, err := t.rewards.GrantQuestClaim(ctx, userID, q.ID, q.XPReward, q.CurrencyReward)
	if err != nil {
		return nil, err
	}

	if err := q.MarkClaimed(); err != nil {
		return nil, err
	}
	if err := t.repo.UpdateQuest(ctx, q); err != nil {
		return nil, err
	}
	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT SUBSCRIPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Subscribe registers the tracker's progress handlers on the bus. Call
// once at process start, before any traffic. The returned function
// removes every registration, detaching the tracker from the bus.
func (t *Tracker) Subscribe(bus shared.EventSubscriber) (func(), error) {
	subs := []struct {
		eventType shared.EventType
		handler   shared.EventHandler
	}{
		{shared.EventQuestionCorrect, t.onQuestionCorrect},
		{shared.EventLessonCompleted, t.onLessonCompleted},
		{shared.EventXPEarned, t.onXPEarned},
		{shared.EventQuizScored, t.onQuizScored},
		{shared.EventChallengeCompleted, t.onChallengeCompleted},
	}

	unsubs := make([]func(), 0, len(subs))
	for _, s := range subs {
		unsub, err := bus.Subscribe(s.eventType, s.handler)
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return nil, err
		}
		unsubs = append(unsubs, unsub)
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}, nil
}

func (t *Tracker) onQuestionCorrect(event shared.Event) error {
	e, ok := event.(shared.QuestionCorrectEvent)
	if !ok {
		return nil
	}
	return t.advance(context.Background(), e.UserID, quest.TypeAnswerQuestions, 1)
}

func (t *Tracker) onLessonCompleted(event shared.Event) error {
	e, ok := event.(shared.LessonCompletedEvent)
	if !ok {
		return nil
	}
	return t.advance(context.Background(), e.UserID, quest.TypeCompleteLessons, 1)
}

func (t *Tracker) onXPEarned(event shared.Event) error {
	e, ok := event.(shared.XPEarnedEvent)
	if !ok {
		return nil
	}
	return t.advance(context.Background(), e.UserID, quest.TypeEarnXP, int(e.Amount))
}

func (t *Tracker) onQuizScored(event shared.Event) error {
	e, ok := event.(shared.QuizScoredEvent)
	if !ok || !e.Perfect {
		return nil
	}
	return t.advance(context.Background(), e.UserID, quest.TypePerfectQuiz, 1)
}

func (t *Tracker) onChallengeCompleted(event shared.Event) error {
	e, ok := event.(shared.ChallengeCompletedEvent)
	if !ok || e.WinnerID == "" {
		return nil
	}
	return t.advance(context.Background(), e.WinnerID, quest.TypeWinDuels, 1)
}

// advance increments every matching active quest of the user's current
// set. The increment is atomic in the store, so concurrent deliveries
// of overlapping events all count. Completion alone grants nothing;
// claiming is explicit.
func (t *Tracker) advance(ctx context.Context, userID string, questType quest.Type, n int) error {
	if n <= 0 {
		return nil
	}

	if _, err := t.ensureCurrent(ctx, userID); err != nil {
		return err
	}

	completed, err := t.repo.AdvanceQuests(ctx, userID, questType, n)
	if err != nil {
		return err
	}
	for _, q := range completed {
		t.publish(shared.NewQuestCompletedEvent(userID, q.ID))
		t.log.Info("quest completed", logger.UserID(userID), logger.QuestID(q.ID))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROTATION
// ══════════════════════════════════════════════════════════════════════════════

// RotateStale rotates every stored set older than the current UTC day,
// up to limit users. The scheduled sweep calls this; lazy on-access
// rotation converges on the same routine.
func (t *Tracker) RotateStale(ctx context.Context, limit int) (int, error) {
	today := timeutil.StartOfDayUTC(t.now())
	users, err := t.repo.ListStaleUsers(ctx, today, limit)
	if err != nil {
		return 0, err
	}

	rotated := 0
	for _, userID := range users {
		if _, err := t.rotate(ctx, userID, today); err != nil {
			t.log.Warn("quest rotation failed", logger.UserID(userID), logger.Err(err))
			continue
		}
		rotated++
	}
	return rotated, nil
}

// ensureCurrent loads the user's set, rotating when it is missing or
// belongs to a previous day. Incomplete quests are discarded, never
// carried over.
func (t *Tracker) ensureCurrent(ctx context.Context, userID string) (*quest.DailySet, error) {
	today := timeutil.StartOfDayUTC(t.now())

	set, err := t.repo.GetDailySet(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return t.rotate(ctx, userID, today)
		}
		return nil, err
	}
	if !timeutil.SameUTCDay(set.Day, today) {
		return t.rotate(ctx, userID, today)
	}
	return set, nil
}

// rotate draws and persists a fresh daily set.
func (t *Tracker) rotate(ctx context.Context, userID string, day time.Time) (*quest.DailySet, error) {
	t.mu.Lock()
	set := quest.NewDailySet(userID, day, t.rng)
	t.mu.Unlock()

	if err := t.repo.SaveDailySet(ctx, set); err != nil {
		return nil, err
	}

	t.publish(shared.NewQuestsRotatedEvent(userID, timeutil.DayKey(day)))
	t.log.Info("daily quests rotated", logger.UserID(userID), logger.String("day", timeutil.DayKey(day)))
	return set, nil
}

func (t *Tracker) publish(event shared.Event) {
	if t.bus == nil {
		return
	}
	if err := t.bus.Publish(event); err != nil {
		t.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err))
	}
}
