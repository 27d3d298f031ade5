package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimTTL = 24 * time.Hour

// IdempotencyChecker guards debit-bearing requests against replays.
// Key format: idem:<user_id>:<client_key>
type IdempotencyChecker struct {
	client *redis.Client
}

func NewIdempotencyChecker(client *redis.Client) *IdempotencyChecker {
	return &IdempotencyChecker{client: client}
}

// Claim attempts to register the key for the user. It returns true exactly
// once per key within the TTL; SetNX makes the claim race-free across
// replicas, so two concurrent requests with the same key cannot both win.
func (c *IdempotencyChecker) Claim(ctx context.Context, userID, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(userID, key), "1", claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return ok, nil
}

// Release frees a claimed key so the request may be retried. Used when the
// claimed operation fails before any debit is applied.
func (c *IdempotencyChecker) Release(ctx context.Context, userID, key string) error {
	return c.client.Del(ctx, c.key(userID, key)).Err()
}

func (c *IdempotencyChecker) key(userID, key string) string {
	return fmt.Sprintf("idem:%s:%s", userID, key)
}
