package challenge

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexlearn/nexlearn-economy/internal/application/reward"
	"github.com/nexlearn/nexlearn-economy/internal/domain/challenge"
	"github.com/nexlearn/nexlearn-economy/internal/domain/community"
	"github.com/nexlearn/nexlearn-economy/internal/domain/ledger"
	domainreward "github.com/nexlearn/nexlearn-economy/internal/domain/reward"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
	"github.com/nexlearn/nexlearn-economy/internal/infrastructure/persistence/memory"
	"github.com/nexlearn/nexlearn-economy/internal/infrastructure/service"
	"github.com/nexlearn/nexlearn-economy/pkg/logger"
)

// flakyRewards wraps the real grant service and fails GrantDuelPayout a
// configured number of times before delegating.
type flakyRewards struct {
	RewardService
	mu             sync.Mutex
	payoutFailures int
}

func (r *flakyRewards) failPayouts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payoutFailures = n
}

func (r *flakyRewards) GrantDuelPayout(ctx context.Context, userID, challengeID string, pot int64) (*domainreward.GrantResult, error) {
	r.mu.Lock()
	if r.payoutFailures > 0 {
		r.payoutFailures--
		r.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	r.mu.Unlock()
	return r.RewardService.GrantDuelPayout(ctx, userID, challengeID, pot)
}

// flakyDuelRepo fails a configured number of Update calls before
// delegating to the real store.
type flakyDuelRepo struct {
	challenge.Repository
	mu             sync.Mutex
	updateFailures int
}

func (r *flakyDuelRepo) Update(ctx context.Context, id string, fn func(*challenge.Challenge) error) (*challenge.Challenge, error) {
	r.mu.Lock()
	if r.updateFailures > 0 {
		r.updateFailures--
		r.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	r.mu.Unlock()
	return r.Repository.Update(ctx, id, fn)
}

type duelFixture struct {
	co       *Coordinator
	repo     *memory.ChallengeStore
	ledger   *memory.LedgerStore
	outbox   *memory.NotificationOutbox
	activity *memory.ActivitySink
	cat      *service.StaticCatalogue
	rewards  *flakyRewards
	log      *logger.Logger
}

func newDuelFixture(t *testing.T) *duelFixture {
	t.Helper()
	ctx := context.Background()

	cat := service.NewStaticCatalogue(service.Course{
		ID: "course-1", Title: "Go Basics", Multiplier: 1.0,
		Questions: []string{"q1", "q2", "q3", "q4", "q5", "q6"},
	})

	f := &duelFixture{
		repo:     memory.NewChallengeStore(),
		ledger:   memory.NewLedgerStore(),
		outbox:   memory.NewNotificationOutbox(),
		activity: memory.NewActivitySink(),
		cat:      cat,
	}
	log := logger.New(logger.Options{Output: io.Discard})
	f.log = log
	f.rewards = &flakyRewards{
		RewardService: reward.NewService(f.ledger, memory.NewClaimStore(), cat, nil, f.outbox, nil, f.activity, log),
	}
	f.co = NewCoordinator(f.repo, cat, f.rewards, nil, nil, f.outbox, f.activity, log)

	for _, userID := range []string{"alice", "bob"} {
		_, err := f.ledger.CreateBalance(ctx, userID)
		require.NoError(t, err)
	}
	return f
}

func (f *duelFixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.ledger.ApplyDelta(context.Background(), userID, ledger.Delta{
		Currency: amount, IdempotencyKey: "seed-" + userID, Source: "seed",
	})
	require.NoError(t, err)
}

func (f *duelFixture) currency(t *testing.T, userID string) int64 {
	t.Helper()
	bal, err := f.ledger.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return bal.Currency
}

func TestDuel_FullFlowWithStakes(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 100)

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 30)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusPending, c.Status)
	assert.Len(t, c.QuestionIDs, QuestionsPerDuel)
	assert.Equal(t, int64(70), f.currency(t, "alice"), "challenger stake escrowed at creation")

	accepted, err := f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusAccepted, accepted.Status)
	assert.Equal(t, int64(70), f.currency(t, "bob"), "challenged stake escrowed at acceptance")

	_, err = f.co.RecordResult(ctx, c.ID, "alice", 4, 50)
	require.NoError(t, err)

	done, err := f.co.RecordResult(ctx, c.ID, "bob", 2, 40)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, done.Status)
	require.NotNil(t, done.WinnerID)
	assert.Equal(t, "alice", *done.WinnerID)

	assert.Equal(t, int64(130), f.currency(t, "alice"), "winner takes the pot")
	assert.Equal(t, int64(70), f.currency(t, "bob"), "loser's stake stays spent")

	var wins int
	for _, a := range f.activity.All() {
		if a.Type == community.ActivityDuelWon {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestDuel_CreateInsufficientFunds(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 10)

	_, err := f.co.Create(ctx, "alice", "bob", "course-1", 30)
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
	assert.Equal(t, int64(10), f.currency(t, "alice"))

	duels, err := f.co.ListForUser(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, duels)
}

func TestDuel_AcceptInsufficientFundsStaysPending(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 30)
	require.NoError(t, err)

	_, err = f.co.Accept(ctx, c.ID, "bob")
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	got, err := f.co.Get(ctx, c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusPending, got.Status, "failed escrow reverts the transition")

	// Funding bob lets the same accept succeed.
	f.fund(t, "bob", 100)
	accepted, err := f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusAccepted, accepted.Status)
	assert.Equal(t, int64(70), f.currency(t, "bob"))
}

func TestDuel_TieRefundsBothStakes(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 50)
	f.fund(t, "bob", 50)

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 20)
	require.NoError(t, err)
	_, err = f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)

	_, err = f.co.RecordResult(ctx, c.ID, "alice", 3, 45)
	require.NoError(t, err)
	done, err := f.co.RecordResult(ctx, c.ID, "bob", 3, 45)
	require.NoError(t, err)

	assert.Equal(t, challenge.StatusCompleted, done.Status)
	assert.Nil(t, done.WinnerID)
	assert.Equal(t, int64(50), f.currency(t, "alice"))
	assert.Equal(t, int64(50), f.currency(t, "bob"))
}

func TestDuel_ZeroBet(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 0)
	require.NoError(t, err)
	_, err = f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)

	_, err = f.co.RecordResult(ctx, c.ID, "alice", 1, 30)
	require.NoError(t, err)
	done, err := f.co.RecordResult(ctx, c.ID, "bob", 4, 30)
	require.NoError(t, err)

	assert.Equal(t, challenge.StatusCompleted, done.Status)
	require.NotNil(t, done.WinnerID)
	assert.Equal(t, "bob", *done.WinnerID)
	assert.Zero(t, f.currency(t, "alice"))
	assert.Zero(t, f.currency(t, "bob"))
}

func TestDuel_ResultWriteOnce(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 0)
	require.NoError(t, err)
	_, err = f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)

	_, err = f.co.RecordResult(ctx, c.ID, "alice", 4, 50)
	require.NoError(t, err)

	// A resubmission with a better score is rejected.
	_, err = f.co.RecordResult(ctx, c.ID, "alice", 5, 10)
	assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)

	got, err := f.co.Get(ctx, c.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.ChallengerResult)
	assert.Equal(t, 4, got.ChallengerResult.Score)
}

func TestDuel_ExactlyOncePayoutUnderRacingCompletion(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 100)

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 40)
	require.NoError(t, err)
	_, err = f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)

	// Store both results without triggering the coordinator's completion,
	// then race many completion attempts at the terminal transition.
	_, err = f.repo.Update(ctx, c.ID, func(ch *challenge.Challenge) error {
		if err := ch.RecordResult("alice", 5, 30); err != nil {
			return err
		}
		return ch.RecordResult("bob", 1, 30)
	})
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.co.complete(ctx, c.ID)
			assert.NoError(t, err, "losers of the completion race back off silently")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(140), f.currency(t, "alice"), "pot paid exactly once")
	assert.Equal(t, int64(60), f.currency(t, "bob"))
}

func TestDuel_RetriedResultDrivesCompletion(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 0)
	require.NoError(t, err)
	_, err = f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)

	// Simulate a crash after both results were stored but before the
	// completion ran.
	_, err = f.repo.Update(ctx, c.ID, func(ch *challenge.Challenge) error {
		if err := ch.RecordResult("alice", 5, 30); err != nil {
			return err
		}
		return ch.RecordResult("bob", 1, 30)
	})
	require.NoError(t, err)

	// The client retries its submission; the retry completes the duel.
	done, err := f.co.RecordResult(ctx, c.ID, "bob", 1, 30)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, done.Status)
}

func TestDuel_SettlementRetriesTransientPayoutFailure(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 100)

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 30)
	require.NoError(t, err)
	_, err = f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)
	_, err = f.co.RecordResult(ctx, c.ID, "alice", 4, 50)
	require.NoError(t, err)

	// One failed payout attempt is absorbed by the settlement retrier.
	f.rewards.failPayouts(1)
	done, err := f.co.RecordResult(ctx, c.ID, "bob", 2, 40)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, done.Status)
	assert.Equal(t, int64(130), f.currency(t, "alice"), "pot paid despite the transient failure")
	assert.Equal(t, int64(70), f.currency(t, "bob"))
}

func TestDuel_UnpaidCompletionSettledByRetriedResult(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 100)

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 30)
	require.NoError(t, err)
	_, err = f.co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)
	_, err = f.co.RecordResult(ctx, c.ID, "alice", 4, 50)
	require.NoError(t, err)

	// Exhaust the settlement retrier: the submission must not report
	// success while the winner is unpaid.
	f.rewards.failPayouts(3)
	_, err = f.co.RecordResult(ctx, c.ID, "bob", 2, 40)
	require.Error(t, err)
	assert.Equal(t, int64(70), f.currency(t, "alice"), "pot not paid yet")

	got, err := f.co.Get(ctx, c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, got.Status, "the flip is durable; only the settlement is owed")

	// The client retries the same submission; the retry re-drives the
	// settlement through the same idempotency key.
	done, err := f.co.RecordResult(ctx, c.ID, "bob", 2, 40)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, done.Status)
	assert.Equal(t, int64(130), f.currency(t, "alice"), "retried settlement pays exactly once")
	assert.Equal(t, int64(70), f.currency(t, "bob"))
}

func TestDuel_AcceptRetryAfterStoreFailureKeepsSingleStake(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 100)

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 30)
	require.NoError(t, err)

	// The store rejects the transition once, after the stake was
	// escrowed under its deterministic key.
	flaky := &flakyDuelRepo{Repository: f.repo, updateFailures: 1}
	co := NewCoordinator(flaky, f.cat, f.rewards, nil, nil, f.outbox, f.activity, f.log)

	_, err = co.Accept(ctx, c.ID, "bob")
	require.Error(t, err)
	assert.Equal(t, int64(70), f.currency(t, "bob"), "stake held in escrow across the failure")

	got, err := co.Get(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusPending, got.Status)

	// The retried accept completes the transition without a second spend.
	accepted, err := co.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusAccepted, accepted.Status)
	assert.Equal(t, int64(70), f.currency(t, "bob"), "deterministic key makes the re-spend a no-op")
}

func TestDuel_AccessControl(t *testing.T) {
	f := newDuelFixture(t)
	ctx := context.Background()

	c, err := f.co.Create(ctx, "alice", "bob", "course-1", 0)
	require.NoError(t, err)

	_, err = f.co.Get(ctx, c.ID, "mallory")
	assert.ErrorIs(t, err, shared.ErrNotParticipant)

	_, err = f.co.RecordResult(ctx, c.ID, "mallory", 5, 1)
	assert.Error(t, err)
}
