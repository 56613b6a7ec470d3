package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyCache stores settlement results keyed by the client-supplied
// idempotency key, so retried checkouts replay the original outcome instead
// of charging twice.
type IdempotencyCache struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func (c *IdempotencyCache) ttl() time.Duration {
	if c == nil || c.TTL <= 0 {
		return 15 * time.Minute
	}
	return c.TTL
}

func (c *IdempotencyCache) key(idempotencyKey string) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "storefront:payment:idem"
	}
	sum := sha256.Sum256([]byte(idempotencyKey))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached result for the key, or ok=false when absent.
func (c *IdempotencyCache) Get(ctx context.Context, idempotencyKey string) (Result, bool, error) {
	if c == nil || c.Client == nil || idempotencyKey == "" {
		return Result{}, false, nil
	}
	raw, err := c.Client.Get(ctx, c.key(idempotencyKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, false, fmt.Errorf("idempotency decode: %w", err)
	}
	return result, true, nil
}

// Put stores the result under the key for the configured TTL.
func (c *IdempotencyCache) Put(ctx context.Context, idempotencyKey string, result Result) error {
	if c == nil || c.Client == nil || idempotencyKey == "" {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("idempotency encode: %w", err)
	}
	if err := c.Client.Set(ctx, c.key(idempotencyKey), raw, c.ttl()).Err(); err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	return nil
}
