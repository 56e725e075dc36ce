// Package reward defines the named grant operations' value objects: tiered
// score thresholds, claim records that deduplicate non-monotonic rewards,
// and deterministic idempotency keys.
package reward

import (
	"time"
)

// Type labels a grant operation. Types appear in idempotency keys,
// ledger entry sources and claim records.
type Type string

const (
	TypeQuestionCredit   Type = "question_credit"
	TypeLessonCompletion Type = "lesson_completion"
	TypeModuleCompletion Type = "module_completion"
	TypeCourseCompletion Type = "course_completion"
	TypePublishBonus     Type = "publish_bonus"
	TypeModuleQuiz       Type = "module_quiz"
	TypeFinalQuiz        Type = "final_quiz"
	TypeDailyLogin       Type = "daily_login"
	TypeQuestClaim       Type = "quest_claim"
	TypeDuelPayout       Type = "duel_payout"
	TypeDuelStake        Type = "duel_stake"
	TypeDuelRefund       Type = "duel_refund"
)

// Tier is one score threshold of a tiered quiz bonus. Each tier is
// independently claimable exactly once per (user, type, entity).
type Tier string

const (
	Tier50  Tier = "50%"
	Tier70  Tier = "70%"
	Tier90  Tier = "90%"
	Tier100 Tier = "100%"
)

// tierOrder lists tiers in ascending order of threshold.
var tierOrder = []Tier{Tier50, Tier70, Tier90, Tier100}

// Threshold returns the exclusive lower bound of the tier in percent.
// A score qualifies for Tier50 when it is strictly above 50, and for
// Tier100 only when it is exactly 100.
func (t Tier) Threshold() float64 {
	switch t {
	case Tier50:
		return 50
	case Tier70:
		return 70
	case Tier90:
		return 90
	case Tier100:
		return 100
	default:
		return 0
	}
}

// TiersForScore returns every tier reached by the score percentage,
// in ascending order.
func TiersForScore(scorePercent float64) []Tier {
	var reached []Tier
	for _, t := range tierOrder {
		if t == Tier100 {
			if scorePercent >= 100 {
				reached = append(reached, t)
			}
			continue
		}
		if scorePercent > t.Threshold() {
			reached = append(reached, t)
		}
	}
	return reached
}

// Claim is the deduplication record for tiered, non-monotonic rewards.
// Its existence permanently blocks re-granting that exact tier for that
// entity to that user.
type Claim struct {
	UserID    string
	Type      Type
	EntityKey string
	Tier      Tier
	CreatedAt time.Time
}

// GrantResult reports what a named grant operation actually applied.
// A re-invocation of an already-granted operation is a normal, silent
// outcome with zero deltas and AlreadyGranted=true.
type GrantResult struct {
	// XPApplied is the experience actually credited by this call.
	XPApplied int64

	// CurrencyApplied is the currency actually credited (or debited,
	// negative) by this call.
	CurrencyApplied int64

	// AlreadyGranted is true when the grant had been applied before
	// and this call was a no-op.
	AlreadyGranted bool

	// LeveledUp is true when the grant crossed a level boundary.
	// Distinct from ordinary grants so the caller can present a
	// different acknowledgment flow.
	LeveledUp bool

	// NewLevel is the level after the grant.
	NewLevel int

	// NewExperience is the experience total after the grant.
	NewExperience int64

	// NewCurrency is the currency total after the grant.
	NewCurrency int64
}

// Merge folds another result into this one, used by tiered grants that
// apply several deltas in one logical operation.
func (r *GrantResult) Merge(other GrantResult) {
	r.XPApplied += other.XPApplied
	r.CurrencyApplied += other.CurrencyApplied
	if !other.AlreadyGranted {
		r.AlreadyGranted = false
	}
	if other.LeveledUp {
		r.LeveledUp = true
	}
	if other.NewLevel > r.NewLevel {
		r.NewLevel = other.NewLevel
	}
	if other.NewExperience > r.NewExperience {
		r.NewExperience = other.NewExperience
	}
	r.NewCurrency = other.NewCurrency
}
