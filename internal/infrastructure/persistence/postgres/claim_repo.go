package postgres

import (
	"context"
	"time"

	"github.com/nexlearn/nexlearn-economy/internal/domain/reward"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// ClaimRepository implements reward.ClaimRepository using PostgreSQL.
// The table's composite primary key makes TryClaim a single conditional
// insert: exactly one of any number of racing callers gets the row.
type ClaimRepository struct {
	conn *Connection
}

// NewClaimRepository creates a new ClaimRepository.
func NewClaimRepository(conn *Connection) *ClaimRepository {
	return &ClaimRepository{conn: conn}
}

// TryClaim implements reward.ClaimRepository.
func (r *ClaimRepository) TryClaim(ctx context.Context, claim reward.Claim) (bool, error) {
	createdAt := claim.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err := r.conn.Exec(ctx, `
		INSERT INTO reward_claims (user_id, reward_type, entity_key, tier, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		claim.UserID, string(claim.Type), claim.EntityKey, string(claim.Tier), createdAt)
	if err != nil {
		return false, shared.WrapError("reward", "TryClaim", shared.ErrExternalService, "insert failed", err)
	}
	return tag.RowsAffected() == 1, nil
}

// HasClaim implements reward.ClaimRepository.
func (r *ClaimRepository) HasClaim(ctx context.Context, userID string, rewardType reward.Type, entityKey string, tier reward.Tier) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reward_claims
			WHERE user_id = $1 AND reward_type = $2 AND entity_key = $3 AND tier = $4
		)`,
		userID, string(rewardType), entityKey, string(tier)).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("reward", "HasClaim", shared.ErrExternalService, "query failed", err)
	}
	return exists, nil
}

// ListClaims implements reward.ClaimRepository.
func (r *ClaimRepository) ListClaims(ctx context.Context, userID string, rewardType reward.Type, entityKey string) ([]reward.Claim, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, reward_type, entity_key, tier, created_at
		FROM reward_claims
		WHERE user_id = $1 AND reward_type = $2 AND entity_key = $3
		ORDER BY created_at`,
		userID, string(rewardType), entityKey)
	if err != nil {
		return nil, shared.WrapError("reward", "ListClaims", shared.ErrExternalService, "query failed", err)
	}
	defer rows.Close()

	var claims []reward.Claim
	for rows.Next() {
		var c reward.Claim
		var typeStr, tierStr string
		if err := rows.Scan(&c.UserID, &typeStr, &c.EntityKey, &tierStr, &c.CreatedAt); err != nil {
			return nil, shared.WrapError("reward", "ListClaims", shared.ErrExternalService, "scan failed", err)
		}
		c.Type = reward.Type(typeStr)
		c.Tier = reward.Tier(tierStr)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
