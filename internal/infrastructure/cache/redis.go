package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/pkg/config"
)

// NewRedisClient connects to Redis, retrying the first ping until
// cfg.Startup.ConnectMaxElapsed
func NewRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.Startup.ConnectMaxElapsed
	notify := func(err error, wait time.Duration) {
		logger.Warn("redis not ready, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	ping := func() error {
		return client.Ping(ctx).Err()
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", cfg.GetRedisAddr()))
	return client, nil
}
