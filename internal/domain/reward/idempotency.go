package reward

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Idempotency keys are derived deterministically from a grant's semantic
// arguments, so retrying the same logical event always produces the same
// key. The human-readable prefix keeps ledger rows greppable; the digest
// bounds the key length regardless of entity id sizes.

// keyDigestLen is the number of digest bytes kept in the key.
const keyDigestLen = 16

// IdempotencyKey derives the deterministic key for a grant from its
// semantic parts, e.g. ("user-1", "module_completion", "course-9", "3").
func IdempotencyKey(userID string, rewardType Type, parts ...string) string {
	canonical := userID + "|" + string(rewardType) + "|" + strings.Join(parts, "|")
	sum := blake2b.Sum256([]byte(canonical))
	return string(rewardType) + "-" + hex.EncodeToString(sum[:keyDigestLen])
}

// TierKey derives the key for one tier of a tiered score bonus.
func TierKey(userID string, rewardType Type, entityKey string, tier Tier) string {
	return IdempotencyKey(userID, rewardType, entityKey, string(tier))
}
