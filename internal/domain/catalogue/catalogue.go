// Package catalogue defines the read-only course catalogue and the quiz
// scorer the engine consumes. Both are external collaborators; the
// engine never mutates course content and treats the scorer as opaque.
package catalogue

import (
	"context"
)

// Catalogue exposes the course data the engine needs: question sets for
// duels and the per-course difficulty multiplier applied to completion
// bonuses.
type Catalogue interface {
	// QuestionSet returns up to n question ids for the course, in the
	// order both duel parties will see them.
	QuestionSet(ctx context.Context, courseID string, n int) ([]string, error)

	// DifficultyMultiplier returns the reward multiplier for the
	// course, >= 1.0 for published courses.
	DifficultyMultiplier(ctx context.Context, courseID string) (float64, error)
}

// AnswerScore is the scorer's verdict for a single answer.
type AnswerScore struct {
	// Correct is the binary verdict.
	Correct bool

	// Score grades subjective answers on a 0..4 scale.
	Score int
}

// Scorer grades quiz answers. Subjective answers are graded by an
// AI-backed service behind this interface; the engine only consumes
// the verdict.
type Scorer interface {
	Score(ctx context.Context, questionID, answer string) (AnswerScore, error)
}
