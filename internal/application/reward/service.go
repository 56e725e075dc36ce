// Package reward implements the named, idempotent grant operations of the
// economy engine. Every operation derives a deterministic idempotency key
// from its semantic arguments, applies the delta through the ledger's
// atomic primitive, and fans out best-effort side effects: progress
// events, notifications for offline recipients, and community activity
// for public milestones. Side-effect failures never fail a grant.
package reward

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nexlearn/nexlearn-economy/internal/domain/catalogue"
	"github.com/nexlearn/nexlearn-economy/internal/domain/community"
	"github.com/nexlearn/nexlearn-economy/internal/domain/ledger"
	"github.com/nexlearn/nexlearn-economy/internal/domain/notification"
	"github.com/nexlearn/nexlearn-economy/internal/domain/reward"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
	"github.com/nexlearn/nexlearn-economy/pkg/logger"
	"github.com/nexlearn/nexlearn-economy/pkg/retry"
	"github.com/nexlearn/nexlearn-economy/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD AMOUNTS
// ══════════════════════════════════════════════════════════════════════════════

// Fixed base amounts. Completion bonuses are scaled by the course
// difficulty multiplier; the question credit is not.
const (
	QuestionCreditXP = 10

	LessonCompletionXP       = 50
	LessonCompletionCurrency = 5

	ModuleCompletionXP       = 150
	ModuleCompletionCurrency = 15

	CourseCompletionXP       = 500
	CourseCompletionCurrency = 50

	PublishBonusXP       = 300
	PublishBonusCurrency = 100

	DailyLoginBaseXP     = 20
	DailyLoginStreakXP   = 5
	DailyLoginStreakCap  = 7
	DailyLoginCurrency   = 5
	PerfectScoreCurrency = 25
)

// tierXP maps each quiz score tier to its experience reward. Only the
// perfect tier additionally grants currency.
var tierXP = map[reward.Tier]int64{
	reward.Tier50:  25,
	reward.Tier70:  50,
	reward.Tier90:  100,
	reward.Tier100: 150,
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service wraps the ledger with the engine's named grant operations.
type Service struct {
	ledger    ledger.Repository
	claims    reward.ClaimRepository
	catalogue catalogue.Catalogue
	bus       shared.EventPublisher
	notifier  notification.Sink
	presence  notification.PresenceOracle
	activity  community.Sink
	log       *logger.Logger
	sideFx    *retry.Retrier
	now       func() time.Time
}

// NewService creates a new reward grant service.
func NewService(
	ledgerRepo ledger.Repository,
	claims reward.ClaimRepository,
	cat catalogue.Catalogue,
	bus shared.EventPublisher,
	notifier notification.Sink,
	presence notification.PresenceOracle,
	activity community.Sink,
	log *logger.Logger,
) *Service {
	return &Service{
		ledger:    ledgerRepo,
		claims:    claims,
		catalogue: cat,
		bus:       bus,
		notifier:  notifier,
		presence:  presence,
		activity:  activity,
		log:       log.With(logger.Component("reward_service")),
		sideFx:    retry.SideEffectRetrier(),
		now:       timeutil.NowUTC,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// GRANT OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GrantQuestionCredit pays a fixed small XP reward for a distinct quiz
// question answered correctly in a course. Answering the same question
// again never re-pays.
func (s *Service) GrantQuestionCredit(ctx context.Context, userID, courseID, questionID string) (*reward.GrantResult, error) {
	key := reward.IdempotencyKey(userID, reward.TypeQuestionCredit, courseID, questionID)
	res, err := s.grant(ctx, userID, QuestionCreditXP, 0, key, reward.TypeQuestionCredit,
		fmt.Sprintf("correct answer to question %s", questionID), courseID)
	if err != nil {
		return nil, err
	}
	if !res.AlreadyGranted {
		s.publish(shared.NewQuestionCorrectEvent(userID, courseID, questionID))
	}
	return res, nil
}

// GrantLessonCompletion pays the one-time lesson completion bonus,
// scaled by the course difficulty multiplier.
func (s *Service) GrantLessonCompletion(ctx context.Context, userID, courseID, lessonID string) (*reward.GrantResult, error) {
	mult, err := s.multiplier(ctx, courseID)
	if err != nil {
		return nil, err
	}
	key := reward.IdempotencyKey(userID, reward.TypeLessonCompletion, courseID, lessonID)
	res, err := s.grant(ctx, userID, scale(LessonCompletionXP, mult), scale(LessonCompletionCurrency, mult),
		key, reward.TypeLessonCompletion, fmt.Sprintf("completed lesson %s", lessonID), courseID)
	if err != nil {
		return nil, err
	}
	if !res.AlreadyGranted {
		s.publish(shared.NewLessonCompletedEvent(userID, courseID, lessonID))
	}
	return res, nil
}

// GrantModuleCompletion pays the one-time module completion bonus,
// scaled by the course difficulty multiplier.
func (s *Service) GrantModuleCompletion(ctx context.Context, userID, courseID, moduleID string) (*reward.GrantResult, error) {
	mult, err := s.multiplier(ctx, courseID)
	if err != nil {
		return nil, err
	}
	key := reward.IdempotencyKey(userID, reward.TypeModuleCompletion, courseID, moduleID)
	res, err := s.grant(ctx, userID, scale(ModuleCompletionXP, mult), scale(ModuleCompletionCurrency, mult),
		key, reward.TypeModuleCompletion, fmt.Sprintf("completed module %s", moduleID), courseID)
	if err != nil {
		return nil, err
	}
	if !res.AlreadyGranted {
		s.publish(shared.NewModuleCompletedEvent(userID, courseID, moduleID))
	}
	return res, nil
}

// GrantCourseCompletion pays the one-time course completion bonus,
// scaled by the course difficulty multiplier.
func (s *Service) GrantCourseCompletion(ctx context.Context, userID, courseID string) (*reward.GrantResult, error) {
	mult, err := s.multiplier(ctx, courseID)
	if err != nil {
		return nil, err
	}
	key := reward.IdempotencyKey(userID, reward.TypeCourseCompletion, courseID)
	res, err := s.grant(ctx, userID, scale(CourseCompletionXP, mult), scale(CourseCompletionCurrency, mult),
		key, reward.TypeCourseCompletion, "completed course", courseID)
	if err != nil {
		return nil, err
	}
	if !res.AlreadyGranted {
		s.publish(shared.NewCourseCompletedEvent(userID, courseID))
	}
	return res, nil
}

// GrantPublishBonus pays the one-time bonus for publishing a course,
// scaled by its difficulty multiplier, and records the milestone on the
// community feed.
func (s *Service) GrantPublishBonus(ctx context.Context, userID, courseID string) (*reward.GrantResult, error) {
	mult, err := s.multiplier(ctx, courseID)
	if err != nil {
		return nil, err
	}
	key := reward.IdempotencyKey(userID, reward.TypePublishBonus, courseID)
	res, err := s.grant(ctx, userID, scale(PublishBonusXP, mult), scale(PublishBonusCurrency, mult),
		key, reward.TypePublishBonus, "published course", courseID)
	if err != nil {
		return nil, err
	}
	if !res.AlreadyGranted {
		s.publish(shared.NewCoursePublishedEvent(userID, courseID))
		s.record(ctx, userID, community.ActivityPublished, map[string]interface{}{"course_id": courseID})
	}
	return res, nil
}

// GrantQuizScoreBonus evaluates a quiz score against the reward tiers
// and pays every reached tier not yet claimed for this entity, in
// ascending order. The perfect tier additionally grants currency.
// rewardType distinguishes module quizzes from final quizzes so their
// claims never collide.
func (s *Service) GrantQuizScoreBonus(ctx context.Context, userID string, rewardType reward.Type, entityKey string, scorePercent float64) (*reward.GrantResult, error) {
	if rewardType != reward.TypeModuleQuiz && rewardType != reward.TypeFinalQuiz {
		return nil, shared.NewDomainError("reward", "GrantQuizScoreBonus", shared.ErrInvalidInput,
			fmt.Sprintf("unsupported quiz reward type %q", rewardType))
	}

	result := &reward.GrantResult{AlreadyGranted: true}
	for _, tier := range reward.TiersForScore(scorePercent) {
		var currency int64
		if tier == reward.Tier100 {
			currency = PerfectScoreCurrency
		}

		// The money moves first, keyed per tier; the claim record follows.
		// A crash or transient failure between the two self-heals on
		// retry: the ledger key dedupes the grant and the claim insert is
		// idempotent, so no order of retries can skip a reached tier.
		key := reward.TierKey(userID, rewardType, entityKey, tier)
		tierRes, err := s.grant(ctx, userID, tierXP[tier], currency, key, rewardType,
			fmt.Sprintf("quiz score tier %s on %s", tier, entityKey), "")
		if err != nil {
			return nil, err
		}

		if _, err := s.claims.TryClaim(ctx, reward.Claim{
			UserID:    userID,
			Type:      rewardType,
			EntityKey: entityKey,
			Tier:      tier,
			CreatedAt: s.now(),
		}); err != nil {
			return nil, err
		}
		result.Merge(*tierRes)
	}

	if result.AlreadyGranted {
		// Nothing new was paid; report the current totals anyway.
		bal, err := s.ledger.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		result.NewExperience = bal.Experience
		result.NewCurrency = bal.Currency
		result.NewLevel = bal.Level()
	} else {
		s.publish(shared.NewQuizScoredEvent(userID, entityKey, scorePercent))
		if scorePercent >= 100 {
			s.record(ctx, userID, community.ActivityPerfectQuiz, map[string]interface{}{"entity_key": entityKey})
		}
	}
	return result, nil
}

// GrantDailyLoginBonus pays the once-per-UTC-day login reward and
// maintains the login streak: consecutive days increment it, a gap
// resets it to 1. The reward grows with the streak up to a cap.
func (s *Service) GrantDailyLoginBonus(ctx context.Context, userID string) (*reward.GrantResult, error) {
	bal, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.now()
	if !bal.LastDailyLoginDate.IsZero() && timeutil.SameUTCDay(bal.LastDailyLoginDate, today) {
		return &reward.GrantResult{
			AlreadyGranted: true,
			NewExperience:  bal.Experience,
			NewCurrency:    bal.Currency,
			NewLevel:       bal.Level(),
		}, nil
	}

	streak := 1
	if !bal.LastDailyLoginDate.IsZero() && timeutil.IsNextUTCDay(bal.LastDailyLoginDate, today) {
		streak = bal.DailyLoginStreak + 1
	}

	bonusDays := streak - 1
	if bonusDays > DailyLoginStreakCap {
		bonusDays = DailyLoginStreakCap
	}
	xp := int64(DailyLoginBaseXP + bonusDays*DailyLoginStreakXP)

	// The bonus entry and the streak fields commit together, so a crash
	// can never leave the day paid with yesterday's login date.
	key := reward.IdempotencyKey(userID, reward.TypeDailyLogin, timeutil.DayKey(today))
	applied, err := s.ledger.ApplyDailyLogin(ctx, userID, ledger.Delta{
		Experience:     xp,
		Currency:       DailyLoginCurrency,
		IdempotencyKey: key,
		Source:         string(reward.TypeDailyLogin),
		Description:    fmt.Sprintf("daily login, streak %d", streak),
	}, streak, timeutil.StartOfDayUTC(today))
	if err != nil {
		return nil, err
	}

	res := s.finishGrant(ctx, userID, xp, DailyLoginCurrency, key, reward.TypeDailyLogin, "", applied)
	if !res.AlreadyGranted {
		s.publish(shared.NewDailyLoginEvent(userID, streak))
	}
	return res, nil
}

// GrantQuestClaim pays a claimed quest's reward. The key is derived
// from the quest instance id, so a retried claim never double-pays.
func (s *Service) GrantQuestClaim(ctx context.Context, userID, questID string, xp, currency int64) (*reward.GrantResult, error) {
	key := reward.IdempotencyKey(userID, reward.TypeQuestClaim, questID)
	res, err := s.grant(ctx, userID, xp, currency, key, reward.TypeQuestClaim,
		fmt.Sprintf("claimed quest %s", questID), "")
	if err != nil {
		return nil, err
	}
	if !res.AlreadyGranted {
		s.publish(shared.NewQuestClaimedEvent(userID, questID))
	}
	return res, nil
}

// GrantDuelPayout credits the duel pot to the winner. Called only by
// the duel coordinator at the terminal transition.
func (s *Service) GrantDuelPayout(ctx context.Context, userID, challengeID string, pot int64) (*reward.GrantResult, error) {
	key := reward.IdempotencyKey(userID, reward.TypeDuelPayout, challengeID)
	return s.grant(ctx, userID, 0, pot, key, reward.TypeDuelPayout,
		fmt.Sprintf("won duel %s", challengeID), "")
}

// GrantDuelRefund returns a party's stake after a full tie.
func (s *Service) GrantDuelRefund(ctx context.Context, userID, challengeID string, amount int64) (*reward.GrantResult, error) {
	key := reward.IdempotencyKey(userID, reward.TypeDuelRefund, challengeID)
	return s.grant(ctx, userID, 0, amount, key, reward.TypeDuelRefund,
		fmt.Sprintf("stake refunded for duel %s", challengeID), "")
}

// SpendCurrency debits currency for stakes and cosmetics. The caller
// supplies the idempotency key since a spend has no natural entity.
// Fails with ErrInsufficientFunds when the balance cannot cover it.
func (s *Service) SpendCurrency(ctx context.Context, userID string, amount int64, reason, idemKey string) (*reward.GrantResult, error) {
	if amount <= 0 {
		return nil, shared.NewDomainError("reward", "SpendCurrency", shared.ErrInvalidInput, "spend amount must be positive")
	}

	applied, err := s.ledger.ApplyDelta(ctx, userID, ledger.Delta{
		Currency:       -amount,
		IdempotencyKey: idemKey,
		Source:         reason,
		Description:    fmt.Sprintf("spent %d on %s", amount, reason),
	})
	if err != nil {
		return nil, err
	}

	bal := applied.Balance
	res := &reward.GrantResult{
		AlreadyGranted: !applied.Applied,
		NewExperience:  bal.Experience,
		NewCurrency:    bal.Currency,
		NewLevel:       bal.Level(),
	}
	if applied.Applied {
		res.CurrencyApplied = -amount
		s.publish(shared.NewCurrencySpentEvent(userID, amount, bal.Currency, reason))
	}
	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERNALS
// ══════════════════════════════════════════════════════════════════════════════

// grant applies one positive delta and runs the shared side effects:
// XP/currency events, level-up detection with notification and
// community feed entry.
func (s *Service) grant(ctx context.Context, userID string, xp, currency int64, key string, source reward.Type, desc, courseID string) (*reward.GrantResult, error) {
	applied, err := s.ledger.ApplyDelta(ctx, userID, ledger.Delta{
		Experience:     xp,
		Currency:       currency,
		IdempotencyKey: key,
		Source:         string(source),
		Description:    desc,
	})
	if err != nil {
		return nil, err
	}
	return s.finishGrant(ctx, userID, xp, currency, key, source, courseID, applied), nil
}

// finishGrant builds the grant result from an applied delta and fans out
// the shared side effects.
func (s *Service) finishGrant(ctx context.Context, userID string, xp, currency int64, key string, source reward.Type, courseID string, applied *ledger.ApplyResult) *reward.GrantResult {
	bal := applied.Balance
	res := &reward.GrantResult{
		AlreadyGranted: !applied.Applied,
		NewExperience:  bal.Experience,
		NewCurrency:    bal.Currency,
		NewLevel:       bal.Level(),
	}
	if !applied.Applied {
		return res
	}

	res.XPApplied = xp
	res.CurrencyApplied = currency

	oldLevel := ledger.LevelForXP(bal.Experience - xp)
	newLevel := bal.Level()
	if newLevel > oldLevel {
		res.LeveledUp = true
		s.onLevelUp(ctx, userID, oldLevel, newLevel)
	}

	if xp != 0 {
		s.publish(shared.NewXPEarnedEvent(userID, xp, bal.Experience, string(source), courseID))
	}
	if currency > 0 {
		s.publish(shared.NewCurrencyEarnedEvent(userID, currency, bal.Currency, string(source)))
	}

	s.notifyOffline(ctx, userID, notification.TypeRewardGranted, map[string]interface{}{
		"source":   string(source),
		"xp":       xp,
		"currency": currency,
	})

	s.log.Info("reward granted",
		logger.UserID(userID),
		logger.RewardSource(string(source)),
		logger.XPAmount(xp),
		logger.CurrencyAmount(currency),
		logger.IdempotencyKey(key))
	return res
}

// onLevelUp runs the level-up side effects: event, notification for an
// offline user, and a feed entry past the first level.
func (s *Service) onLevelUp(ctx context.Context, userID string, oldLevel, newLevel int) {
	s.publish(shared.NewLevelUpEvent(userID, oldLevel, newLevel))
	s.notifyOffline(ctx, userID, notification.TypeLevelUp, map[string]interface{}{
		"old_level": oldLevel,
		"new_level": newLevel,
	})
	if newLevel > 1 {
		s.record(ctx, userID, community.ActivityLevelUp, map[string]interface{}{"level": newLevel})
	}
}

// publish sends an event on the bus, logging and swallowing failures.
func (s *Service) publish(event shared.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event); err != nil {
		s.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err))
	}
}

// notifyOffline enqueues a notification when the recipient is not
// connected. Best-effort with a short retry.
func (s *Service) notifyOffline(ctx context.Context, userID string, notifType notification.Type, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	if s.presence != nil {
		online, err := s.presence.IsOnline(ctx, userID)
		if err != nil {
			s.log.Warn("presence check failed", logger.UserID(userID), logger.Err(err))
		} else if online {
			return
		}
	}

	err := s.sideFx.Do(ctx, func(ctx context.Context) error {
		return s.notifier.Enqueue(ctx, userID, notifType, payload)
	})
	if err != nil {
		s.log.Warn("notification enqueue failed",
			logger.UserID(userID),
			logger.String("notification_type", string(notifType)),
			logger.Err(err))
	}
}

// record writes a community feed entry, logging and swallowing failures.
func (s *Service) record(ctx context.Context, userID string, activityType community.ActivityType, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, userID, activityType, metadata); err != nil {
		s.log.Warn("activity record failed",
			logger.UserID(userID),
			logger.String("activity_type", string(activityType)),
			logger.Err(err))
	}
}

// multiplier fetches the course difficulty multiplier, treating
// anything below 1.0 as 1.0.
func (s *Service) multiplier(ctx context.Context, courseID string) (float64, error) {
	mult, err := s.catalogue.DifficultyMultiplier(ctx, courseID)
	if err != nil {
		return 0, shared.WrapError("reward", "DifficultyMultiplier", shared.ErrServiceUnavailable,
			fmt.Sprintf("cannot resolve multiplier for course %s", courseID), err)
	}
	if mult < 1.0 {
		mult = 1.0
	}
	return mult, nil
}

func scale(base int64, mult float64) int64 {
	return int64(math.Round(float64(base) * mult))
}
