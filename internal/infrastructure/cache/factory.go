package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/domain/shared"
	"github.com/eyc/invoicing/internal/infrastructure/config"
)

// OpenIdempotencyStore returns the store for the configured backend. An
// unreachable redis degrades to the in-memory store unless RequireRedis is
// set; repeated requests are then only caught per instance.
func OpenIdempotencyStore(ctx context.Context, cfg config.IdempotencyConfig, redisCfg config.RedisConfig, log *zap.Logger) (shared.IdempotencyStore, error) {
	if cfg.Backend != "redis" {
		log.Info("Idempotency keys kept in memory")
		return NewInMemoryIdempotencyStore(0), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, redisCfg, cfg.KeyPrefix)
	switch {
	case err == nil:
		log.Info("Idempotency keys kept in redis", zap.String("addr", redisCfg.Addr()))
		return store, nil
	case cfg.RequireRedis:
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	log.Warn("Redis unavailable, idempotency keys kept in memory", zap.Error(err))
	return NewInMemoryIdempotencyStore(0), nil
}
