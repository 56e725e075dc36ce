package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nexlearn/nexlearn-economy/internal/domain/reward"
)

// ClaimStore implements reward.ClaimRepository in memory.
type ClaimStore struct {
	mu     sync.Mutex
	claims map[claimKey]reward.Claim
}

type claimKey struct {
	userID     string
	rewardType reward.Type
	entityKey  string
	tier       reward.Tier
}

// NewClaimStore creates an empty ClaimStore.
func NewClaimStore() *ClaimStore {
	return &ClaimStore{claims: make(map[claimKey]reward.Claim)}
}

// TryClaim implements reward.ClaimRepository.
func (s *ClaimStore) TryClaim(ctx context.Context, claim reward.Claim) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimKey{claim.UserID, claim.Type, claim.EntityKey, claim.Tier}
	if _, ok := s.claims[key]; ok {
		return false, nil
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}
	s.claims[key] = claim
	return true, nil
}

// HasClaim implements reward.ClaimRepository.
func (s *ClaimStore) HasClaim(ctx context.Context, userID string, rewardType reward.Type, entityKey string, tier reward.Tier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.claims[claimKey{userID, rewardType, entityKey, tier}]
	return ok, nil
}

// ListClaims implements reward.ClaimRepository.
func (s *ClaimStore) ListClaims(ctx context.Context, userID string, rewardType reward.Type, entityKey string) ([]reward.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claims []reward.Claim
	for key, c := range s.claims {
		if key.userID == userID && key.rewardType == rewardType && key.entityKey == entityKey {
			claims = append(claims, c)
		}
	}
	return claims, nil
}
