package ratelimit

import (
	"github.com/reelforge/reelforge/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go.uber.org/fx"
)

// NewRedisClient returns nil when no REDIS_ADDR is configured; the locker
// degrades to single-node mode in that case.
func NewRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, sweep lock disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("ratelimit",
	fx.Provide(
		NewRedisClient,
		NewLocker,
	),
)
