package cache

import (
	"context"
	"time"

	"storefront-sync/internal/redisclient"

	"go.uber.org/zap"
)

// RedisStore is the Redis-backed Store.
type RedisStore struct {
	client *redisclient.Client
	logger *zap.Logger
}

func NewRedisStore(client *redisclient.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	value, found, err := s.client.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		return "", false
	}
	if found {
		s.logger.Debug("Retrieved value for key", zap.String("key", key))
	}
	return value, found
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("Cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	s.logger.Debug("Set key", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Del(ctx, key)
	if err != nil {
		s.logger.Warn("Cache delete failed", zap.String("key", key), zap.Error(err))
		return 0, err
	}
	s.logger.Debug("Deleted key", zap.String("key", key), zap.Int64("count", n))
	return n, nil
}
