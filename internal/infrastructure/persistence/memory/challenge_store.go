package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nexlearn/nexlearn-economy/internal/domain/challenge"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// ChallengeStore implements challenge.Repository in memory. Update runs
// the mutation under the store mutex, giving the same serialization
// guarantee as the row lock in the PostgreSQL implementation.
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*challenge.Challenge
}

// NewChallengeStore creates an empty ChallengeStore.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{challenges: make(map[string]*challenge.Challenge)}
}

// Create implements challenge.Repository.
func (s *ChallengeStore) Create(ctx context.Context, c *challenge.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[c.ID]; ok {
		return shared.ErrConflict
	}
	s.challenges[c.ID] = copyChallenge(c)
	return nil
}

// GetByID implements challenge.Repository.
func (s *ChallengeStore) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	return copyChallenge(c), nil
}

// Update implements challenge.Repository.
func (s *ChallengeStore) Update(ctx context.Context, id string, fn func(c *challenge.Challenge) error) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.challenges[id]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}

	c := copyChallenge(stored)
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	s.challenges[id] = copyChallenge(c)
	return c, nil
}

// ListForUser implements challenge.Repository.
func (s *ChallengeStore) ListForUser(ctx context.Context, userID string, limit int) ([]*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var challenges []*challenge.Challenge
	for _, c := range s.challenges {
		if c.IsParticipant(userID) {
			challenges = append(challenges, copyChallenge(c))
		}
	}
	sort.Slice(challenges, func(i, j int) bool {
		return challenges[i].CreatedAt.After(challenges[j].CreatedAt)
	})
	if limit > 0 && len(challenges) > limit {
		challenges = challenges[:limit]
	}
	return challenges, nil
}

func copyChallenge(c *challenge.Challenge) *challenge.Challenge {
	cp := *c
	cp.QuestionIDs = append([]string(nil), c.QuestionIDs...)
	if c.ChallengerResult != nil {
		r := *c.ChallengerResult
		cp.ChallengerResult = &r
	}
	if c.ChallengedResult != nil {
		r := *c.ChallengedResult
		cp.ChallengedResult = &r
	}
	if c.WinnerID != nil {
		w := *c.WinnerID
		cp.WinnerID = &w
	}
	return &cp
}
