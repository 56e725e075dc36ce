package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

func TestStaticCatalogue_QuestionSet(t *testing.T) {
	cat := NewStaticCatalogue(Course{
		ID: "course-1", Multiplier: 1.2,
		Questions: []string{"q1", "q2", "q3", "q4"},
	})
	ctx := context.Background()

	set, err := cat.QuestionSet(ctx, "course-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2", "q3"}, set, "catalogue order, so both duel parties see the same set")

	// Asking for more than exists returns everything.
	set, err = cat.QuestionSet(ctx, "course-1", 10)
	require.NoError(t, err)
	assert.Len(t, set, 4)

	_, err = cat.QuestionSet(ctx, "missing", 3)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStaticCatalogue_DifficultyMultiplier(t *testing.T) {
	cat := NewStaticCatalogue(
		Course{ID: "hard", Multiplier: 1.5},
		Course{ID: "easy", Multiplier: 0.3},
	)
	ctx := context.Background()

	m, err := cat.DifficultyMultiplier(ctx, "hard")
	require.NoError(t, err)
	assert.Equal(t, 1.5, m)

	// Multipliers below 1.0 are clamped up.
	m, err = cat.DifficultyMultiplier(ctx, "easy")
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)

	_, err = cat.DifficultyMultiplier(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStaticCatalogue_AddCourse(t *testing.T) {
	cat := NewStaticCatalogue()
	cat.AddCourse(Course{ID: "late", Multiplier: 2.0, Questions: []string{"q1"}})

	m, err := cat.DifficultyMultiplier(context.Background(), "late")
	require.NoError(t, err)
	assert.Equal(t, 2.0, m)
}

func TestStubScorer(t *testing.T) {
	scorer := NewStubScorer(map[string]string{"q1": "Goroutine"})
	ctx := context.Background()

	res, err := scorer.Score(ctx, "q1", "  goroutine ")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 4, res.Score)

	res, err = scorer.Score(ctx, "q1", "thread")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Zero(t, res.Score)
}

func TestStubScorer_UnknownQuestionIsDeterministic(t *testing.T) {
	scorer := NewStubScorer(nil)
	ctx := context.Background()

	first, err := scorer.Score(ctx, "q-unknown", "some answer")
	require.NoError(t, err)
	second, err := scorer.Score(ctx, "q-unknown", "some answer")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first.Score, 0)
	assert.LessOrEqual(t, first.Score, 4)
}
