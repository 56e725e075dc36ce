// Package quest defines the daily quest catalogue, the per-user daily quest
// set with progress counters, and the reroll token rules.
package quest

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// Type identifies what kind of progress a quest counts.
type Type string

const (
	// TypeAnswerQuestions counts correctly answered quiz questions.
	TypeAnswerQuestions Type = "answer_questions"

	// TypeCompleteLessons counts completed lessons.
	TypeCompleteLessons Type = "complete_lessons"

	// TypeEarnXP counts experience points earned.
	TypeEarnXP Type = "earn_xp"

	// TypePerfectQuiz counts quizzes finished with a 100% score.
	TypePerfectQuiz Type = "perfect_quiz"

	// TypeWinDuels counts duels won.
	TypeWinDuels Type = "win_duels"
)

// DailyRerollTokens is the reroll allotment restored at every daily reset.
const DailyRerollTokens = 2

// DefaultSetSize is how many quests a daily set contains.
const DefaultSetSize = 3

// Template is one entry of the fixed quest catalogue.
type Template struct {
	Type           Type
	Title          string
	Target         int
	XPReward       int64
	CurrencyReward int64
}

// Catalogue returns the fixed quest catalogue the daily sets draw from.
func Catalogue() []Template {
	return []Template{
		{Type: TypeAnswerQuestions, Title: "Answer 5 questions correctly", Target: 5, XPReward: 50, CurrencyReward: 10},
		{Type: TypeAnswerQuestions, Title: "Answer 15 questions correctly", Target: 15, XPReward: 120, CurrencyReward: 25},
		{Type: TypeCompleteLessons, Title: "Complete 2 lessons", Target: 2, XPReward: 80, CurrencyReward: 15},
		{Type: TypeCompleteLessons, Title: "Complete 4 lessons", Target: 4, XPReward: 150, CurrencyReward: 30},
		{Type: TypeEarnXP, Title: "Earn 200 XP", Target: 200, XPReward: 60, CurrencyReward: 10},
		{Type: TypePerfectQuiz, Title: "Score 100% on a quiz", Target: 1, XPReward: 100, CurrencyReward: 20},
		{Type: TypeWinDuels, Title: "Win a duel", Target: 1, XPReward: 100, CurrencyReward: 25},
	}
}

// Quest is one daily quest instance owned by a user.
type Quest struct {
	ID             string
	UserID         string
	Type           Type
	Title          string
	Target         int
	Progress       int
	Completed      bool
	Claimed        bool
	XPReward       int64
	CurrencyReward int64

	// Slot is the position of the quest inside the daily set; a reroll
	// replaces the quest in the same slot.
	Slot int

	// Day is the UTC day the quest belongs to.
	Day time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Advance increments progress by n, capping at the target, and flips
// Completed when the target is reached. Progress never decreases.
// It returns true when this call completed the quest.
func (q *Quest) Advance(n int) bool {
	if n <= 0 || q.Completed || q.Claimed {
		return false
	}
	q.Progress += n
	if q.Progress >= q.Target {
		q.Progress = q.Target
		q.Completed = true
		q.UpdatedAt = time.Now().UTC()
		return true
	}
	q.UpdatedAt = time.Now().UTC()
	return false
}

// MarkClaimed flips the claim flag. Claiming requires completion.
func (q *Quest) MarkClaimed() error {
	if !q.Completed {
		return shared.ErrQuestNotCompleted
	}
	if q.Claimed {
		return shared.ErrQuestClaimed
	}
	q.Claimed = true
	q.UpdatedAt = time.Now().UTC()
	return nil
}

// Rerollable reports whether the quest may still be swapped out: it
// must be unclaimed and not progressed on.
func (q *Quest) Rerollable() bool {
	return !q.Claimed && q.Progress == 0
}

// DailySet is a user's quest set for one UTC day plus the remaining
// reroll tokens.
type DailySet struct {
	UserID       string
	Day          time.Time
	Quests       []*Quest
	RerollTokens int
}

// fromTemplate instantiates a quest from a catalogue template.
func fromTemplate(userID string, day time.Time, slot int, tpl Template) *Quest {
	now := time.Now().UTC()
	return &Quest{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           tpl.Type,
		Title:          tpl.Title,
		Target:         tpl.Target,
		XPReward:       tpl.XPReward,
		CurrencyReward: tpl.CurrencyReward,
		Slot:           slot,
		Day:            day,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewDailySet draws a randomized daily set from the catalogue and
// restores the reroll allotment. Drawn templates are distinct.
func NewDailySet(userID string, day time.Time, rng *rand.Rand) *DailySet {
	catalogue := Catalogue()
	perm := rng.Perm(len(catalogue))

	size := DefaultSetSize
	if size > len(catalogue) {
		size = len(catalogue)
	}

	quests := make([]*Quest, 0, size)
	for slot := 0; slot < size; slot++ {
		quests = append(quests, fromTemplate(userID, day, slot, catalogue[perm[slot]]))
	}

	return &DailySet{
		UserID:       userID,
		Day:          day,
		Quests:       quests,
		RerollTokens: DailyRerollTokens,
	}
}

// Find returns the quest with the given id, or nil.
func (s *DailySet) Find(questID string) *Quest {
	for _, q := range s.Quests {
		if q.ID == questID {
			return q
		}
	}
	return nil
}

// Reroll replaces one active, unclaimed, not-yet-progressed-on quest
// with a fresh draw for the same slot, consuming one token. The new
// quest uses a template different from every quest currently in the set.
func (s *DailySet) Reroll(questID string, rng *rand.Rand) (*Quest, error) {
	if s.RerollTokens <= 0 {
		return nil, shared.ErrRerollExhausted
	}
	old := s.Find(questID)
	if old == nil {
		return nil, shared.ErrQuestNotFound
	}
	if !old.Rerollable() {
		return nil, shared.ErrRerollProgressed
	}

	inUse := make(map[string]bool, len(s.Quests))
	for _, q := range s.Quests {
		inUse[q.Title] = true
	}

	catalogue := Catalogue()
	var candidates []Template
	for _, tpl := range catalogue {
		if !inUse[tpl.Title] {
			candidates = append(candidates, tpl)
		}
	}
	if len(candidates) == 0 {
		// Catalogue exhausted; redraw anything but the current template.
		for _, tpl := range catalogue {
			if tpl.Title != old.Title {
				candidates = append(candidates, tpl)
			}
		}
	}

	fresh := fromTemplate(s.UserID, s.Day, old.Slot, candidates[rng.Intn(len(candidates))])
	for i, q := range s.Quests {
		if q.ID == questID {
			s.Quests[i] = fresh
			break
		}
	}
	s.RerollTokens--
	return fresh, nil
}

// Expired reports whether the set belongs to a UTC day before now's.
func (s *DailySet) Expired(now time.Time) bool {
	nowDay := now.UTC().Truncate(24 * time.Hour)
	return s.Day.Before(nowDay)
}
