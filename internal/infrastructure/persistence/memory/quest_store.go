package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nexlearn/nexlearn-economy/internal/domain/quest"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// QuestStore implements quest.Repository in memory.
type QuestStore struct {
	mu   sync.Mutex
	sets map[string]*quest.DailySet
}

// NewQuestStore creates an empty QuestStore.
func NewQuestStore() *QuestStore {
	return &QuestStore{sets: make(map[string]*quest.DailySet)}
}

// GetDailySet implements quest.Repository.
func (s *QuestStore) GetDailySet(ctx context.Context, userID string) (*quest.DailySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[userID]
	if !ok {
		return nil, shared.ErrQuestNotFound
	}
	return copySet(set), nil
}

// SaveDailySet implements quest.Repository.
func (s *QuestStore) SaveDailySet(ctx context.Context, set *quest.DailySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sets[set.UserID] = copySet(set)
	return nil
}

// UpdateQuest implements quest.Repository.
func (s *QuestStore) UpdateQuest(ctx context.Context, q *quest.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[q.UserID]
	if !ok {
		return shared.ErrQuestNotFound
	}
	for i, stored := range set.Quests {
		if stored.ID == q.ID {
			c := *q
			set.Quests[i] = &c
			return nil
		}
	}
	return shared.ErrQuestNotFound
}

// AdvanceQuests implements quest.Repository. The increment runs on the
// stored quests under the store lock, so concurrent deliveries of the
// same progress type serialize instead of overwriting each other.
func (s *QuestStore) AdvanceQuests(ctx context.Context, userID string, questType quest.Type, n int) ([]*quest.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[userID]
	if !ok {
		return nil, shared.ErrQuestNotFound
	}

	var completed []*quest.Quest
	for _, q := range set.Quests {
		if q.Type != questType {
			continue
		}
		if q.Advance(n) {
			c := *q
			completed = append(completed, &c)
		}
	}
	return completed, nil
}

// ListStaleUsers implements quest.Repository.
func (s *QuestStore) ListStaleUsers(ctx context.Context, day time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day = day.UTC()
	var users []string
	for userID, set := range s.sets {
		if set.Day.Before(day) {
			users = append(users, userID)
			if limit > 0 && len(users) >= limit {
				break
			}
		}
	}
	return users, nil
}

func copySet(set *quest.DailySet) *quest.DailySet {
	c := &quest.DailySet{
		UserID:       set.UserID,
		Day:          set.Day,
		RerollTokens: set.RerollTokens,
		Quests:       make([]*quest.Quest, len(set.Quests)),
	}
	for i, q := range set.Quests {
		qc := *q
		c.Quests[i] = &qc
	}
	return c
}
