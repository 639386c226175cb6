package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stella-events/ticketing/internal/config"
)

// NewRedis connects a go-redis client and verifies the connection. The
// client backs the advisory webhook dedupe fast path only; callers must
// treat it as optional.
func NewRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
