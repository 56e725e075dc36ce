package reward

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexlearn/nexlearn-economy/internal/domain/community"
	"github.com/nexlearn/nexlearn-economy/internal/domain/ledger"
	"github.com/nexlearn/nexlearn-economy/internal/domain/notification"
	"github.com/nexlearn/nexlearn-economy/internal/domain/reward"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
	"github.com/nexlearn/nexlearn-economy/internal/infrastructure/persistence/memory"
	"github.com/nexlearn/nexlearn-economy/internal/infrastructure/service"
	"github.com/nexlearn/nexlearn-economy/pkg/logger"
	"github.com/nexlearn/nexlearn-economy/pkg/timeutil"
)

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) ofType(t shared.EventType) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []shared.Event
	for _, e := range b.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	ledger   *memory.LedgerStore
	bus      *recordingBus
	outbox   *memory.NotificationOutbox
	presence *memory.StaticPresence
	activity *memory.ActivitySink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := service.NewStaticCatalogue(
		service.Course{ID: "course-1", Title: "Go Basics", Multiplier: 1.0, Questions: []string{"q1", "q2", "q3"}},
		service.Course{ID: "course-hard", Title: "Distributed Systems", Multiplier: 1.5},
	)

	f := &fixture{
		ledger:   memory.NewLedgerStore(),
		bus:      &recordingBus{},
		outbox:   memory.NewNotificationOutbox(),
		presence: memory.NewStaticPresence(),
		activity: memory.NewActivitySink(),
	}
	log := logger.New(logger.Options{Output: io.Discard})
	f.svc = NewService(f.ledger, memory.NewClaimStore(), cat, f.bus, f.outbox, f.presence, f.activity, log)

	_, err := f.ledger.CreateBalance(context.Background(), "user-1")
	require.NoError(t, err)
	return f
}

func TestGrantQuestionCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.GrantQuestionCredit(ctx, "user-1", "course-1", "q1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyGranted)
	assert.Equal(t, int64(QuestionCreditXP), res.XPApplied)
	assert.Equal(t, int64(QuestionCreditXP), res.NewExperience)

	// Same question again never re-pays.
	res, err = f.svc.GrantQuestionCredit(ctx, "user-1", "course-1", "q1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyGranted)
	assert.Equal(t, int64(QuestionCreditXP), res.NewExperience)

	// A different question does.
	res, err = f.svc.GrantQuestionCredit(ctx, "user-1", "course-1", "q2")
	require.NoError(t, err)
	assert.False(t, res.AlreadyGranted)
	assert.Equal(t, int64(2*QuestionCreditXP), res.NewExperience)

	assert.Len(t, f.bus.ofType(shared.EventQuestionCorrect), 2)
}

func TestGrantLessonCompletion_MultiplierScaling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.GrantLessonCompletion(ctx, "user-1", "course-hard", "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, int64(75), res.XPApplied)      // 50 * 1.5
	assert.Equal(t, int64(8), res.CurrencyApplied) // round(5 * 1.5)
}

func TestGrantCourseCompletion_UnknownCourse(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GrantCourseCompletion(context.Background(), "user-1", "no-such-course")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestGrantQuizScoreBonus_TierAccumulation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 95% reaches the 50/70/90 tiers.
	res, err := f.svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeModuleQuiz, "course-1/module-1", 95)
	require.NoError(t, err)
	assert.False(t, res.AlreadyGranted)
	assert.Equal(t, int64(25+50+100), res.XPApplied)
	assert.Zero(t, res.CurrencyApplied)

	// A later perfect run pays only the missing tier, with its currency.
	res, err = f.svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeModuleQuiz, "course-1/module-1", 100)
	require.NoError(t, err)
	assert.False(t, res.AlreadyGranted)
	assert.Equal(t, int64(150), res.XPApplied)
	assert.Equal(t, int64(PerfectScoreCurrency), res.CurrencyApplied)

	// Everything claimed: a repeat is a pure no-op that still reports totals.
	res, err = f.svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeModuleQuiz, "course-1/module-1", 100)
	require.NoError(t, err)
	assert.True(t, res.AlreadyGranted)
	assert.Equal(t, int64(325), res.NewExperience)
	assert.Equal(t, int64(PerfectScoreCurrency), res.NewCurrency)

	// The perfect run landed on the community feed once.
	perfect := 0
	for _, a := range f.activity.All() {
		if a.Type == community.ActivityPerfectQuiz {
			perfect++
		}
	}
	assert.Equal(t, 1, perfect)
}

// flakyLedger fails a configured number of ApplyDelta calls before
// delegating to the real store.
type flakyLedger struct {
	*memory.LedgerStore
	mu       sync.Mutex
	failures int
}

func (l *flakyLedger) ApplyDelta(ctx context.Context, userID string, delta ledger.Delta) (*ledger.ApplyResult, error) {
	l.mu.Lock()
	if l.failures > 0 {
		l.failures--
		l.mu.Unlock()
		return nil, shared.WrapError("ledger", "ApplyDelta", shared.ErrExternalService, "apply failed", errors.New("connection reset"))
	}
	l.mu.Unlock()
	return l.LedgerStore.ApplyDelta(ctx, userID, delta)
}

func TestGrantQuizScoreBonus_TransientFailureNeverLosesTier(t *testing.T) {
	store := memory.NewLedgerStore()
	flaky := &flakyLedger{LedgerStore: store, failures: 1}
	cat := service.NewStaticCatalogue(service.Course{ID: "course-1", Title: "Go Basics", Multiplier: 1.0})
	log := logger.New(logger.Options{Output: io.Discard})
	svc := NewService(flaky, memory.NewClaimStore(), cat, nil, nil, nil, nil, log)
	ctx := context.Background()

	_, err := store.CreateBalance(ctx, "user-1")
	require.NoError(t, err)

	// The first attempt dies at the ledger; nothing may be paid and
	// nothing may be remembered as paid.
	_, err = svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeModuleQuiz, "course-1/module-1", 60)
	require.Error(t, err)

	// The retry must still pay the reached tier.
	res, err := svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeModuleQuiz, "course-1/module-1", 60)
	require.NoError(t, err)
	assert.False(t, res.AlreadyGranted)
	assert.Equal(t, int64(25), res.XPApplied)

	bal, err := store.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), bal.Experience)

	// And only once.
	res, err = svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeModuleQuiz, "course-1/module-1", 60)
	require.NoError(t, err)
	assert.True(t, res.AlreadyGranted)
	assert.Equal(t, int64(25), res.NewExperience)
}

func TestGrantQuizScoreBonus_TypesDoNotCollide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeModuleQuiz, "course-1", 60)
	require.NoError(t, err)

	// The final quiz on the same entity key has its own claims.
	res, err := f.svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeFinalQuiz, "course-1", 60)
	require.NoError(t, err)
	assert.False(t, res.AlreadyGranted)
}

func TestGrantQuizScoreBonus_RejectsOtherTypes(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GrantQuizScoreBonus(context.Background(), "user-1", reward.TypeQuestClaim, "course-1", 80)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGrantDailyLoginBonus_Streak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day := func(n int) time.Time {
		return time.Date(2026, 3, 10+n, 9, 30, 0, 0, time.UTC)
	}

	f.svc.WithClock(func() time.Time { return day(0) })
	res, err := f.svc.GrantDailyLoginBonus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(DailyLoginBaseXP), res.XPApplied)
	assert.Equal(t, int64(DailyLoginCurrency), res.CurrencyApplied)

	// Second call the same day is a no-op.
	res, err = f.svc.GrantDailyLoginBonus(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyGranted)
	assert.Zero(t, res.XPApplied)

	// Next day continues the streak and pays the streak bonus.
	f.svc.WithClock(func() time.Time { return day(1) })
	res, err = f.svc.GrantDailyLoginBonus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(DailyLoginBaseXP+DailyLoginStreakXP), res.XPApplied)

	bal, err := f.ledger.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, bal.DailyLoginStreak)

	// A missed day resets the streak to 1.
	f.svc.WithClock(func() time.Time { return day(3) })
	res, err = f.svc.GrantDailyLoginBonus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(DailyLoginBaseXP), res.XPApplied)

	bal, err = f.ledger.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, bal.DailyLoginStreak)
}

func TestGrantDailyLoginBonus_StreakCommitsWithBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	f.svc.WithClock(func() time.Time { return now })

	_, err := f.svc.GrantDailyLoginBonus(ctx, "user-1")
	require.NoError(t, err)

	// The bonus and the login metadata land in one atomic transition:
	// the balance never shows the day paid with a stale login date.
	bal, err := f.ledger.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(DailyLoginCurrency), bal.Currency)
	assert.Equal(t, 1, bal.DailyLoginStreak)
	assert.True(t, bal.LastDailyLoginDate.Equal(timeutil.StartOfDayUTC(now)))
}

func TestGrantDailyLoginBonus_StreakCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for n := 0; n < DailyLoginStreakCap+3; n++ {
		day := time.Date(2026, 3, 1+n, 12, 0, 0, 0, time.UTC)
		f.svc.WithClock(func() time.Time { return day })
		res, err := f.svc.GrantDailyLoginBonus(ctx, "user-1")
		require.NoError(t, err)
		maxXP := int64(DailyLoginBaseXP + DailyLoginStreakCap*DailyLoginStreakXP)
		assert.LessOrEqual(t, res.XPApplied, maxXP, "day %d", n)
	}
}

func TestLevelUpSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A perfect final quiz pays 325 XP in total, crossing the level 2
	// boundary at 100.
	res, err := f.svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeFinalQuiz, "course-1", 100)
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.NewLevel)

	assert.NotEmpty(t, f.bus.ofType(shared.EventLevelUp))

	var levelNotifs int
	for _, n := range f.outbox.All() {
		if n.Type == notification.TypeLevelUp {
			levelNotifs++
		}
	}
	assert.Equal(t, 1, levelNotifs, "offline user gets a level-up notification")

	var feedEntries int
	for _, a := range f.activity.All() {
		if a.Type == community.ActivityLevelUp {
			feedEntries++
		}
	}
	assert.Equal(t, 1, feedEntries)
}

func TestNotificationsSkippedWhenOnline(t *testing.T) {
	f := newFixture(t)
	f.presence.SetOnline("user-1", true)

	_, err := f.svc.GrantQuestionCredit(context.Background(), "user-1", "course-1", "q1")
	require.NoError(t, err)
	assert.Empty(t, f.outbox.All())
}

func TestSpendCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Fund the account first.
	_, err := f.svc.GrantQuizScoreBonus(ctx, "user-1", reward.TypeFinalQuiz, "course-1", 100)
	require.NoError(t, err)

	res, err := f.svc.SpendCurrency(ctx, "user-1", 10, "cosmetic", "spend-key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-10), res.CurrencyApplied)
	assert.Equal(t, int64(PerfectScoreCurrency-10), res.NewCurrency)

	// Retrying the same key is a no-op, not a second debit.
	res, err = f.svc.SpendCurrency(ctx, "user-1", 10, "cosmetic", "spend-key-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyGranted)
	assert.Equal(t, int64(PerfectScoreCurrency-10), res.NewCurrency)

	// Overdraft is rejected without touching the balance.
	_, err = f.svc.SpendCurrency(ctx, "user-1", 1000, "cosmetic", "spend-key-2")
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	_, err = f.svc.SpendCurrency(ctx, "user-1", 0, "cosmetic", "spend-key-3")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	assert.Len(t, f.bus.ofType(shared.EventCurrencySpent), 1)
}

func TestGrantDuelPayoutAndRefund_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.GrantDuelPayout(ctx, "user-1", "duel-9", 40)
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.CurrencyApplied)

	res, err = f.svc.GrantDuelPayout(ctx, "user-1", "duel-9", 40)
	require.NoError(t, err)
	assert.True(t, res.AlreadyGranted)

	res, err = f.svc.GrantDuelRefund(ctx, "user-1", "duel-9", 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.CurrencyApplied)
	assert.Equal(t, int64(60), res.NewCurrency)
}
