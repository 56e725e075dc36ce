package ledger

// Level thresholds follow a quadratic curve: reaching level n requires
// 100*(n-1)^2 XP. Level 1 starts at 0 XP, level 2 at 100, level 3 at
// 400, level 4 at 900 and so on. The curve is strictly increasing, so
// higher experience never yields a lower level.

// levelBaseXP is the XP required to go from level 1 to level 2.
const levelBaseXP = 100

// LevelForXP returns the level for the given experience total.
// The result is always >= 1 and monotonic in xp.
func LevelForXP(xp int64) int {
	if xp < 0 {
		return 1
	}
	level := 1
	for xp >= XPForLevel(level+1) {
		level++
	}
	return level
}

// XPForLevel returns the experience threshold at which the given level
// is reached. Levels below 2 require no experience.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return levelBaseXP * n * n
}

// XPToNextLevel returns how much experience is missing until the next
// level for the given total.
func XPToNextLevel(xp int64) int64 {
	next := XPForLevel(LevelForXP(xp) + 1)
	return next - xp
}
