package reward

import (
	"context"
)

// ClaimRepository stores tier claim records. Implementations live in
// infrastructure/persistence.
type ClaimRepository interface {
	// TryClaim records the claim if no record exists yet for the same
	// (user, type, entity, tier) and reports whether this call won.
	// The conditional write must be atomic: two racing callers see
	// exactly one true.
	TryClaim(ctx context.Context, claim Claim) (bool, error)

	// HasClaim reports whether the tier has been claimed.
	HasClaim(ctx context.Context, userID string, rewardType Type, entityKey string, tier Tier) (bool, error)

	// ListClaims returns all claims of the user for one entity.
	ListClaims(ctx context.Context, userID string, rewardType Type, entityKey string) ([]Claim, error)
}
