package redis

import (
	"context"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/catalog-sync/internal/config"
)

// NewClient creates a Redis client and performs a health check.
// It returns nil without error when no REDIS_URL is configured.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goRedis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := goRedis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
