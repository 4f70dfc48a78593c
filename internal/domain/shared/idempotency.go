package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers Idempotency-Key values of write requests so a
// retried generate or export does not run twice.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. It reports false when the key was
	// already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget releases a claimed key so a failed request can be retried.
	Forget(ctx context.Context, key string) error

	Close() error
}
