// Package challenge implements the duel coordinator: the application
// service driving the two-party quiz duel through its state machine,
// with stake escrow, result reconciliation, and exactly-once payout at
// the terminal transition.
package challenge

import (
	"context"
	"errors"
	"time"

	"github.com/nexlearn/nexlearn-economy/internal/domain/catalogue"
	"github.com/nexlearn/nexlearn-economy/internal/domain/challenge"
	"github.com/nexlearn/nexlearn-economy/internal/domain/community"
	"github.com/nexlearn/nexlearn-economy/internal/domain/notification"
	"github.com/nexlearn/nexlearn-economy/internal/domain/reward"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
	"github.com/nexlearn/nexlearn-economy/pkg/logger"
	"github.com/nexlearn/nexlearn-economy/pkg/retry"
)

// QuestionsPerDuel is the size of the question set snapshotted at
// creation. Both parties answer the identical set.
const QuestionsPerDuel = 5

// stakeReason labels escrow spends in the ledger.
const stakeReason = "duel_stake"

// RewardService is the slice of the grant service the coordinator uses
// for escrow, payout and refunds.
type RewardService interface {
	SpendCurrency(ctx context.Context, userID string, amount int64, reason, idemKey string) (*reward.GrantResult, error)
	GrantDuelPayout(ctx context.Context, userID, challengeID string, pot int64) (*reward.GrantResult, error)
	GrantDuelRefund(ctx context.Context, userID, challengeID string, amount int64) (*reward.GrantResult, error)
}

// Coordinator drives duels between two users. All money movement goes
// through the grant service as independent single-user atomic
// operations in fixed order (challenger first); there is never a
// cross-user transaction.
type Coordinator struct {
	repo      challenge.Repository
	catalogue catalogue.Catalogue
	rewards   RewardService
	bus       shared.EventPublisher
	watcher   challenge.Watcher
	notifier  notification.Sink
	activity  community.Sink
	log       *logger.Logger
	settleFx  *retry.Retrier
}

// NewCoordinator creates a new Coordinator. The watcher, notifier and
// activity sink are optional.
func NewCoordinator(
	repo challenge.Repository,
	cat catalogue.Catalogue,
	rewards RewardService,
	bus shared.EventPublisher,
	watcher challenge.Watcher,
	notifier notification.Sink,
	activity community.Sink,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		repo:      repo,
		catalogue: cat,
		rewards:   rewards,
		bus:       bus,
		watcher:   watcher,
		notifier:  notifier,
		activity:  activity,
		log:       log.With(logger.Component("duel_coordinator")),
		// Settlement grants are keyed on the challenge id, so retrying a
		// transient failure can never double-pay.
		settleFx: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(50*time.Millisecond),
			retry.WithMaxDelay(time.Second),
			retry.WithRetryIf(func(err error) bool { return !shared.IsValidation(err) }),
		),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Create opens a pending duel with a question set snapshotted from the
// catalogue, escrowing the challenger's stake first. Insufficient funds
// abort the creation with no side effects.
func (co *Coordinator) Create(ctx context.Context, challengerID, challengedID, courseID string, betAmount int64) (*challenge.Challenge, error) {
	questionIDs, err := co.catalogue.QuestionSet(ctx, courseID, QuestionsPerDuel)
	if err != nil {
		return nil, shared.WrapError("challenge", "Create", shared.ErrServiceUnavailable, "cannot snapshot question set", err)
	}

	c, err := challenge.New(challengerID, challengedID, courseID, questionIDs, betAmount)
	if err != nil {
		return nil, err
	}

	if betAmount > 0 {
		stakeKey := reward.IdempotencyKey(challengerID, reward.TypeDuelStake, c.ID)
		if _, err := co.rewards.SpendCurrency(ctx, challengerID, betAmount, stakeReason, stakeKey); err != nil {
			return nil, err
		}
	}

	if err := co.repo.Create(ctx, c); err != nil {
		// The stake is already spent; return it rather than strand it.
		if betAmount > 0 {
			if _, refundErr := co.rewards.GrantDuelRefund(ctx, challengerID, c.ID, betAmount); refundErr != nil {
				co.log.Error("stake refund after failed create",
					logger.ChallengeID(c.ID), logger.UserID(challengerID), logger.Err(refundErr))
			}
		}
		return nil, err
	}

	co.publish(shared.NewChallengeCreatedEvent(c.ID, challengerID, challengedID, betAmount))
	co.notify(ctx, challengedID, notification.TypeChallengeReceived, map[string]interface{}{
		"challenge_id": c.ID,
		"challenger":   challengerID,
		"bet_amount":   betAmount,
	})
	co.notifyChanged(ctx, c.ID)
	co.log.Info("duel created",
		logger.ChallengeID(c.ID),
		logger.UserID(challengerID),
		logger.CourseID(courseID),
		logger.CurrencyAmount(betAmount))
	return c, nil
}

// Accept moves the duel to accepted and escrows the challenged party's
// matching stake. The escrow runs before the store transition, mirroring
// Create: the ledger never executes inside the challenge row lock. A
// failed escrow leaves the duel pending; a transition failure after the
// escrow leaves the stake spent under its deterministic key, so the
// retried accept never double-spends and completes the transition.
// Double-accept is a no-op.
func (co *Coordinator) Accept(ctx context.Context, challengeID, userID string) (*challenge.Challenge, error) {
	current, err := co.repo.GetByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	// Escrow only when this call could actually perform the transition;
	// invalid accepts fall through and fail in the store with no money
	// moved.
	if current.Status == challenge.StatusPending && userID == current.ChallengedID && current.BetAmount > 0 {
		stakeKey := reward.IdempotencyKey(userID, reward.TypeDuelStake, current.ID)
		if _, err := co.rewards.SpendCurrency(ctx, userID, current.BetAmount, stakeReason, stakeKey); err != nil {
			return nil, err
		}
	}

	var applied bool
	updated, err := co.repo.Update(ctx, challengeID, func(c *challenge.Challenge) error {
		a, err := c.Accept(userID)
		if err != nil {
			return err
		}
		applied = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		co.publish(shared.NewChallengeAcceptedEvent(challengeID, userID))
		co.notify(ctx, updated.ChallengerID, notification.TypeChallengeAccepted, map[string]interface{}{
			"challenge_id": challengeID,
			"accepted_by":  userID,
		})
		co.notifyChanged(ctx, challengeID)
		co.log.Info("duel accepted", logger.ChallengeID(challengeID), logger.UserID(userID))
	}
	return updated, nil
}

// RecordResult stores one party's quiz outcome. Results are write-once
// per party and may arrive in either order; whichever submission makes
// the pair complete also triggers the completion.
func (co *Coordinator) RecordResult(ctx context.Context, challengeID, userID string, score, elapsedSeconds int) (*challenge.Challenge, error) {
	updated, err := co.repo.Update(ctx, challengeID, func(c *challenge.Challenge) error {
		return c.RecordResult(userID, score, elapsedSeconds)
	})
	if err != nil {
		// A retried submission may find its result already stored while
		// the completion or the settlement never ran (crash or transient
		// ledger failure after the write). Let the retry drive the duel
		// to its terminal state; complete is idempotent past it.
		if errors.Is(err, shared.ErrResultRecorded) {
			if c, getErr := co.repo.GetByID(ctx, challengeID); getErr == nil && c.BothPlayed() {
				completed, cErr := co.complete(ctx, challengeID)
				if cErr != nil {
					return nil, cErr
				}
				if completed != nil {
					return completed, nil
				}
				if cur, getErr := co.repo.GetByID(ctx, challengeID); getErr == nil {
					return cur, nil
				}
			}
		}
		return nil, err
	}

	co.publish(shared.NewChallengeResultEvent(challengeID, userID, score))
	co.notifyChanged(ctx, challengeID)

	if updated.BothPlayed() {
		if completed, err := co.complete(ctx, challengeID); err != nil {
			return nil, err
		} else if completed != nil {
			return completed, nil
		}
	}
	return updated, nil
}

// Get returns the duel to one of its participants.
func (co *Coordinator) Get(ctx context.Context, challengeID, userID string) (*challenge.Challenge, error) {
	c, err := co.repo.GetByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(userID) {
		return nil, shared.ErrNotParticipant
	}
	return c, nil
}

// ListForUser returns the user's duels, newest first.
func (co *Coordinator) ListForUser(ctx context.Context, userID string, limit int) ([]*challenge.Challenge, error) {
	return co.repo.ListForUser(ctx, userID, limit)
}

// Watch exposes the duel's change-notification channel to a participant.
func (co *Coordinator) Watch(ctx context.Context, challengeID, userID string) (<-chan string, error) {
	if co.watcher == nil {
		return nil, shared.NewDomainError("challenge", "Watch", shared.ErrServiceUnavailable, "no watcher configured")
	}
	if _, err := co.Get(ctx, challengeID, userID); err != nil {
		return nil, err
	}
	return co.watcher.Watch(ctx, challengeID)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION
// ══════════════════════════════════════════════════════════════════════════════

// complete flips the duel to completed and settles the pot. The status
// flip happens inside the store's atomic transition, so of any number
// of racing observers exactly one reaches the settlement below; the
// rest re-drive the settlement, which is a keyed no-op when the money
// already moved, and back off. A settlement failure surfaces to the
// caller after the flip: the duel is completed but unpaid, and any
// retried call pays out through the same idempotent keys.
func (co *Coordinator) complete(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	done, err := co.repo.Update(ctx, challengeID, func(c *challenge.Challenge) error {
		return c.Complete()
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyProcessed) {
			c, getErr := co.repo.GetByID(ctx, challengeID)
			if getErr != nil {
				return nil, getErr
			}
			if settleErr := co.settle(ctx, c); settleErr != nil {
				return nil, settleErr
			}
			return nil, nil
		}
		return nil, err
	}

	if err := co.settle(ctx, done); err != nil {
		co.log.Error("duel settlement failed",
			logger.ChallengeID(done.ID), logger.Err(err))
		return nil, err
	}
	if done.WinnerID != nil {
		co.recordWin(ctx, done)
	}

	winnerID := ""
	if done.WinnerID != nil {
		winnerID = *done.WinnerID
	}
	co.publish(shared.NewChallengeCompletedEvent(done.ID, done.ChallengerID, done.ChallengedID, winnerID, done.Pot()))
	for _, userID := range []string{done.ChallengerID, done.ChallengedID} {
		co.notify(ctx, userID, notification.TypeChallengeCompleted, map[string]interface{}{
			"challenge_id": done.ID,
			"winner_id":    winnerID,
		})
	}
	co.notifyChanged(ctx, done.ID)
	co.log.Info("duel completed",
		logger.ChallengeID(done.ID),
		logger.String("winner_id", winnerID),
		logger.CurrencyAmount(done.Pot()))
	return done, nil
}

// settle moves the money for a completed duel: the decided winner gets
// the pot and the loser's escrow stays spent; a full tie refunds both
// stakes, challenger first. Every grant is keyed on the challenge id,
// so settle may run any number of times without double-paying; the
// first failure after retries is returned.
func (co *Coordinator) settle(ctx context.Context, done *challenge.Challenge) error {
	if done.BetAmount <= 0 {
		return nil
	}

	if done.WinnerID == nil {
		for _, userID := range []string{done.ChallengerID, done.ChallengedID} {
			err := co.settleFx.Do(ctx, func(ctx context.Context) error {
				_, err := co.rewards.GrantDuelRefund(ctx, userID, done.ID, done.BetAmount)
				return err
			})
			if err != nil {
				return shared.WrapError("challenge", "Settle", shared.ErrExternalService, "stake refund failed", err)
			}
		}
		return nil
	}

	err := co.settleFx.Do(ctx, func(ctx context.Context) error {
		_, err := co.rewards.GrantDuelPayout(ctx, *done.WinnerID, done.ID, done.Pot())
		return err
	})
	if err != nil {
		return shared.WrapError("challenge", "Settle", shared.ErrExternalService, "pot payout failed", err)
	}
	return nil
}

func (co *Coordinator) recordWin(ctx context.Context, done *challenge.Challenge) {
	if co.activity == nil || done.WinnerID == nil {
		return
	}
	if err := co.activity.Record(ctx, *done.WinnerID, community.ActivityDuelWon, map[string]interface{}{
		"challenge_id": done.ID,
		"pot":          done.Pot(),
	}); err != nil {
		co.log.Warn("activity record failed", logger.ChallengeID(done.ID), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SIDE EFFECTS
// ══════════════════════════════════════════════════════════════════════════════

func (co *Coordinator) publish(event shared.Event) {
	if co.bus == nil {
		return
	}
	if err := co.bus.Publish(event); err != nil {
		co.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err))
	}
}

func (co *Coordinator) notify(ctx context.Context, userID string, notifType notification.Type, payload map[string]interface{}) {
	if co.notifier == nil {
		return
	}
	if err := co.notifier.Enqueue(ctx, userID, notifType, payload); err != nil {
		co.log.Warn("notification enqueue failed", logger.UserID(userID), logger.Err(err))
	}
}

func (co *Coordinator) notifyChanged(ctx context.Context, challengeID string) {
	if co.watcher == nil {
		return
	}
	if err := co.watcher.NotifyChanged(ctx, challengeID); err != nil {
		co.log.Warn("change notification failed", logger.ChallengeID(challengeID), logger.Err(err))
	}
}
