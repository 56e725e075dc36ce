package reward

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTiersForScore(t *testing.T) {
	assert.Empty(t, TiersForScore(0))
	assert.Empty(t, TiersForScore(50)) // thresholds are exclusive
	assert.Equal(t, []Tier{Tier50}, TiersForScore(50.5))
	assert.Equal(t, []Tier{Tier50}, TiersForScore(70))
	assert.Equal(t, []Tier{Tier50, Tier70}, TiersForScore(71))
	assert.Equal(t, []Tier{Tier50, Tier70, Tier90}, TiersForScore(95))
	assert.Equal(t, []Tier{Tier50, Tier70, Tier90}, TiersForScore(99.9))
	assert.Equal(t, []Tier{Tier50, Tier70, Tier90, Tier100}, TiersForScore(100))
}

func TestTierThreshold(t *testing.T) {
	assert.Equal(t, float64(50), Tier50.Threshold())
	assert.Equal(t, float64(70), Tier70.Threshold())
	assert.Equal(t, float64(90), Tier90.Threshold())
	assert.Equal(t, float64(100), Tier100.Threshold())
}

func TestIdempotencyKey_Deterministic(t *testing.T) {
	a := IdempotencyKey("user-1", TypeModuleCompletion, "course-9", "module-3")
	b := IdempotencyKey("user-1", TypeModuleCompletion, "course-9", "module-3")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, string(TypeModuleCompletion)+"-"))
}

func TestIdempotencyKey_DistinctInputs(t *testing.T) {
	keys := map[string]bool{
		IdempotencyKey("user-1", TypeModuleCompletion, "course-9", "module-3"): true,
		IdempotencyKey("user-2", TypeModuleCompletion, "course-9", "module-3"): true,
		IdempotencyKey("user-1", TypeCourseCompletion, "course-9", "module-3"): true,
		IdempotencyKey("user-1", TypeModuleCompletion, "course-8", "module-3"): true,
		IdempotencyKey("user-1", TypeModuleCompletion, "course-9", "module-4"): true,
	}
	assert.Len(t, keys, 5)
}

func TestTierKey_DistinctPerTier(t *testing.T) {
	k70 := TierKey("user-1", TypeFinalQuiz, "course-9", Tier70)
	k90 := TierKey("user-1", TypeFinalQuiz, "course-9", Tier90)
	assert.NotEqual(t, k70, k90)
}

func TestGrantResult_Merge(t *testing.T) {
	total := GrantResult{AlreadyGranted: true}

	total.Merge(GrantResult{XPApplied: 25, NewExperience: 25, NewCurrency: 0, NewLevel: 1})
	total.Merge(GrantResult{XPApplied: 50, CurrencyApplied: 10, NewExperience: 75, NewCurrency: 10, NewLevel: 1})

	assert.Equal(t, int64(75), total.XPApplied)
	assert.Equal(t, int64(10), total.CurrencyApplied)
	assert.False(t, total.AlreadyGranted)
	assert.Equal(t, int64(75), total.NewExperience)
	assert.Equal(t, int64(10), total.NewCurrency)
}

func TestGrantResult_MergeAllNoOps(t *testing.T) {
	total := GrantResult{AlreadyGranted: true}
	total.Merge(GrantResult{AlreadyGranted: true, NewExperience: 100, NewLevel: 2})
	assert.True(t, total.AlreadyGranted)
	assert.Zero(t, total.XPApplied)
}
