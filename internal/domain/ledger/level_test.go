package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP_Curve(t *testing.T) {
	assert.Equal(t, 1, LevelForXP(0))
	assert.Equal(t, 1, LevelForXP(99))
	assert.Equal(t, 2, LevelForXP(100))
	assert.Equal(t, 2, LevelForXP(399))
	assert.Equal(t, 3, LevelForXP(400))
	assert.Equal(t, 4, LevelForXP(900))
}

func TestLevelForXP_Monotonic(t *testing.T) {
	prev := LevelForXP(0)
	for xp := int64(0); xp <= 20000; xp += 37 {
		level := LevelForXP(xp)
		assert.GreaterOrEqual(t, level, prev, "level dropped at xp=%d", xp)
		assert.GreaterOrEqual(t, level, 1)
		prev = level
	}
}

func TestXPForLevel_RoundTrip(t *testing.T) {
	for level := 1; level <= 30; level++ {
		threshold := XPForLevel(level)
		assert.Equal(t, level, LevelForXP(threshold), "threshold of level %d", level)
		if threshold > 0 {
			assert.Equal(t, level-1, LevelForXP(threshold-1), "just below threshold of level %d", level)
		}
	}
}

func TestXPToNextLevel(t *testing.T) {
	// At 0 XP the next boundary is level 2 at 100 XP.
	assert.Equal(t, int64(100), XPToNextLevel(0))
	assert.Equal(t, int64(1), XPToNextLevel(99))
	// Crossing into level 2, next boundary is 400.
	assert.Equal(t, int64(300), XPToNextLevel(100))
}

func TestDelta_Validate(t *testing.T) {
	valid := Delta{Experience: 10, IdempotencyKey: "k", Source: "test"}
	assert.NoError(t, valid.Validate())

	missingKey := Delta{Experience: 10, Source: "test"}
	assert.Error(t, missingKey.Validate())

	missingSource := Delta{Experience: 10, IdempotencyKey: "k"}
	assert.Error(t, missingSource.Validate())

	negativeXP := Delta{Experience: -1, IdempotencyKey: "k", Source: "test"}
	assert.Error(t, negativeXP.Validate())

	spend := Delta{Currency: -50, IdempotencyKey: "k", Source: "test"}
	assert.NoError(t, spend.Validate())
}

func TestUserBalance_Level(t *testing.T) {
	bal := NewBalance("user-1")
	assert.Equal(t, 1, bal.Level())

	bal.Experience = 400
	assert.Equal(t, 3, bal.Level())
}

func TestUserBalance_CanAfford(t *testing.T) {
	bal := NewBalance("user-1")
	bal.Currency = 100

	assert.True(t, bal.CanAfford(100))
	assert.True(t, bal.CanAfford(0))
	assert.False(t, bal.CanAfford(101))
}
