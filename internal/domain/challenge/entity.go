// Package challenge defines the two-party quiz duel: its state machine,
// result reconciliation and winner determination. States move strictly
// forward: pending -> accepted -> completed.
package challenge

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// Status is the lifecycle state of a challenge.
type Status string

const (
	// StatusPending means the challenge awaits acceptance.
	StatusPending Status = "pending"

	// StatusAccepted means both parties are in; quiz-taking may happen
	// in any order.
	StatusAccepted Status = "accepted"

	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
)

// Result is one party's recorded outcome. Write-once per party.
type Result struct {
	// Score is the number of correct answers.
	Score int

	// ElapsedSeconds is the time the party took to finish.
	ElapsedSeconds int

	// RecordedAt is when the result was submitted.
	RecordedAt time.Time
}

// Challenge is a duel between two users over a fixed question set
// snapshotted at creation, optionally with a currency stake.
type Challenge struct {
	ID           string
	CourseID     string
	ChallengerID string
	ChallengedID string

	// QuestionIDs is the snapshot both players see.
	QuestionIDs []string

	// BetAmount is the per-party stake; 0 means a friendly duel.
	BetAmount int64

	Status Status

	// ChallengerResult and ChallengedResult are nil until recorded.
	ChallengerResult *Result
	ChallengedResult *Result

	// WinnerID is set at completion; nil means a full tie.
	WinnerID *string

	CreatedAt  time.Time
	AcceptedAt time.Time
	UpdatedAt  time.Time
}

// New creates a pending challenge with the snapshotted question set.
func New(challengerID, challengedID, courseID string, questionIDs []string, betAmount int64) (*Challenge, error) {
	if challengerID == "" || challengedID == "" {
		return nil, shared.NewDomainError("challenge", "Create", shared.ErrEmptyValue, "both participants are required")
	}
	if challengerID == challengedID {
		return nil, shared.NewDomainError("challenge", "Create", shared.ErrInvalidInput, "cannot challenge yourself")
	}
	if betAmount < 0 {
		return nil, shared.NewDomainError("challenge", "Create", shared.ErrNegativeValue, "bet amount cannot be negative")
	}
	if len(questionIDs) == 0 {
		return nil, shared.NewDomainError("challenge", "Create", shared.ErrEmptyValue, "question set is empty")
	}

	now := time.Now().UTC()
	return &Challenge{
		ID:           uuid.NewString(),
		CourseID:     courseID,
		ChallengerID: challengerID,
		ChallengedID: challengedID,
		QuestionIDs:  questionIDs,
		BetAmount:    betAmount,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsParticipant reports whether the user is one of the two parties.
func (c *Challenge) IsParticipant(userID string) bool {
	return userID == c.ChallengerID || userID == c.ChallengedID
}

// HasChallengerPlayed reports whether the challenger's result is in.
func (c *Challenge) HasChallengerPlayed() bool {
	return c.ChallengerResult != nil
}

// HasChallengedPlayed reports whether the challenged party's result is in.
func (c *Challenge) HasChallengedPlayed() bool {
	return c.ChallengedResult != nil
}

// BothPlayed reports whether both results have been recorded.
func (c *Challenge) BothPlayed() bool {
	return c.ChallengerResult != nil && c.ChallengedResult != nil
}

// Pot is the total payout to a decided winner.
func (c *Challenge) Pot() int64 {
	return c.BetAmount * 2
}

// Accept transitions pending -> accepted. Accepting an already accepted
// or completed challenge is a no-op returning false, which makes the
// transition idempotent against double-accept races.
func (c *Challenge) Accept(userID string) (bool, error) {
	if userID != c.ChallengedID {
		return false, shared.ErrNotParticipant
	}
	switch c.Status {
	case StatusPending:
		c.Status = StatusAccepted
		c.AcceptedAt = time.Now().UTC()
		c.UpdatedAt = c.AcceptedAt
		return true, nil
	case StatusAccepted, StatusCompleted:
		return false, nil
	default:
		return false, shared.ErrChallengeTransition
	}
}

// RevertAccept undoes a just-applied Accept when the acceptance side
// effect (stake escrow) fails. Only valid before persistence.
func (c *Challenge) RevertAccept() {
	if c.Status == StatusAccepted {
		c.Status = StatusPending
		c.AcceptedAt = time.Time{}
		c.UpdatedAt = time.Now().UTC()
	}
}

// RecordResult stores one party's score and elapsed time without
// changing the status. Results are write-once per party and may arrive
// in any order.
func (c *Challenge) RecordResult(userID string, score, elapsedSeconds int) error {
	if !c.IsParticipant(userID) {
		return shared.ErrNotParticipant
	}
	if c.Status != StatusAccepted {
		return shared.ErrChallengeTransition
	}
	if score < 0 || elapsedSeconds < 0 {
		return shared.NewDomainError("challenge", "RecordResult", shared.ErrNegativeValue, "score and elapsed time must be non-negative")
	}

	res := &Result{Score: score, ElapsedSeconds: elapsedSeconds, RecordedAt: time.Now().UTC()}
	if userID == c.ChallengerID {
		if c.ChallengerResult != nil {
			return shared.ErrResultRecorded
		}
		c.ChallengerResult = res
	} else {
		if c.ChallengedResult != nil {
			return shared.ErrResultRecorded
		}
		c.ChallengedResult = res
	}
	c.UpdatedAt = res.RecordedAt
	return nil
}

// DetermineWinner applies the reconciliation rules: higher score wins;
// on a score tie the lower elapsed time wins; on a full tie there is no
// winner. Call only when both results are present.
func (c *Challenge) DetermineWinner() *string {
	if !c.BothPlayed() {
		return nil
	}
	a, b := c.ChallengerResult, c.ChallengedResult
	switch {
	case a.Score > b.Score:
		return &c.ChallengerID
	case b.Score > a.Score:
		return &c.ChallengedID
	case a.ElapsedSeconds < b.ElapsedSeconds:
		return &c.ChallengerID
	case b.ElapsedSeconds < a.ElapsedSeconds:
		return &c.ChallengedID
	default:
		return nil
	}
}

// Complete transitions accepted -> completed and fixes the winner.
// Returns ErrChallengeCompleted when already terminal, so a race between
// two observers of "both results present" resolves to one completion.
func (c *Challenge) Complete() error {
	if c.Status == StatusCompleted {
		return shared.ErrChallengeCompleted
	}
	if c.Status != StatusAccepted || !c.BothPlayed() {
		return shared.ErrChallengeTransition
	}
	c.WinnerID = c.DetermineWinner()
	c.Status = StatusCompleted
	c.UpdatedAt = time.Now().UTC()
	return nil
}
