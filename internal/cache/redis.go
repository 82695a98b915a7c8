package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

// RedisCache shares resolved coordinates between processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache parses redisURL (redis://host:port or redis://host:port/db) and pings it.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("cache.redis.connected", "addr", opts.Addr, "db", opts.DB)
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, query string) (entity.Coordinate, bool, error) {
	b, err := c.client.Get(ctx, Key(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.Coordinate{}, false, nil
	}
	if err != nil {
		return entity.Coordinate{}, false, err
	}
	var coord entity.Coordinate
	if err := json.Unmarshal(b, &coord); err != nil {
		return entity.Coordinate{}, false, err
	}
	return coord, true, nil
}

func (c *RedisCache) Set(ctx context.Context, query string, coord entity.Coordinate) error {
	b, err := json.Marshal(coord)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(query), b, c.ttl).Err() // ttl 0 = no expiration
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
