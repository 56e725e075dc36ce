// Package timeutil provides UTC day-boundary helpers. The economy runs on
// UTC calendar days: daily quests rotate and reroll tokens restore at
// midnight UTC, and the daily login bonus is granted at most once per UTC
// day. No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DayKeyFormat is the canonical string form of a UTC day.
const DayKeyFormat = "2006-01-02"

// NowUTC returns the current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// StartOfDayUTC returns midnight UTC of the given time's day.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDayUTC returns the last nanosecond of the given time's UTC day.
func EndOfDayUTC(t time.Time) time.Time {
	return StartOfDayUTC(t).Add(24*time.Hour - time.Nanosecond)
}

// DayKey returns the canonical "YYYY-MM-DD" key of the time's UTC day.
// Used in idempotency keys for once-per-day grants.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyFormat)
}

// SameUTCDay reports whether both times fall on the same UTC day.
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// IsNextUTCDay reports whether b is exactly the UTC day after a's day.
// Used for login-streak continuation.
func IsNextUTCDay(a, b time.Time) bool {
	return StartOfDayUTC(a).AddDate(0, 0, 1).Equal(StartOfDayUTC(b))
}

// NextResetAfter returns the next midnight UTC strictly after t - the
// moment daily quests rotate.
func NextResetAfter(t time.Time) time.Time {
	return StartOfDayUTC(t).AddDate(0, 0, 1)
}

// DaysBetween returns the number of whole UTC days from a's day to b's
// day. Positive when b is later.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDayUTC(b).Sub(StartOfDayUTC(a)) / (24 * time.Hour))
}
