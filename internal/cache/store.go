// Package cache provides the two-level (in-process + Redis) byte cache
// used throughout the engine for embedding-by-content-hash (spec §4.1
// step 2, §5) and per-user recall-result invalidation. Grounded on the
// teacher's internal/infrastructure/cache.MemoryCache (kept as the local
// tier here) plus the multi-level local+Redis pattern used across the
// example pack (e.g. BaSui01-agentflow/llm/cache.MultiLevelCache).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	localcache "memory-engine/internal/infrastructure/cache"
)

// ErrMiss is returned by Get when no tier has the key.
var ErrMiss = errors.New("cache: miss")

// Store is the byte-oriented cache surface the engines build on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// InvalidateUser drops every key under a user's namespace (spec §4.1
	// step 6: "Invalidate the user cache namespace").
	InvalidateUser(ctx context.Context, userID string) error
}

// TwoTierStore checks the in-process LRU first, then Redis, and
// back-fills the local tier on a Redis hit.
type TwoTierStore struct {
	local  *localcache.MemoryCache
	redis  *redis.Client
	logger *zap.Logger
}

func NewTwoTierStore(local *localcache.MemoryCache, redisClient *redis.Client, logger *zap.Logger) *TwoTierStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwoTierStore{local: local, redis: redisClient, logger: logger}
}

func (s *TwoTierStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.local != nil {
		if value, ok, err := s.local.Get(ctx, key); err == nil && ok {
			return value, nil
		}
	}
	if s.redis != nil {
		value, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			if s.local != nil {
				_ = s.local.Set(ctx, key, value, time.Hour)
			}
			return value, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis cache get error", zap.Error(err), zap.String("key", key))
		}
	}
	return nil, ErrMiss
}

func (s *TwoTierStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.local != nil {
		if err := s.local.Set(ctx, key, value, ttl); err != nil {
			s.logger.Warn("local cache set error", zap.Error(err), zap.String("key", key))
		}
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *TwoTierStore) Delete(ctx context.Context, key string) error {
	if s.local != nil {
		_ = s.local.Delete(ctx, key)
	}
	if s.redis != nil {
		return s.redis.Del(ctx, key).Err()
	}
	return nil
}

func (s *TwoTierStore) InvalidateUser(ctx context.Context, userID string) error {
	pattern := UserNamespace(userID) + ":*"
	if s.local != nil {
		_ = s.local.Clear(ctx, pattern)
	}
	if s.redis != nil {
		iter := s.redis.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
				s.logger.Warn("redis invalidate error", zap.Error(err), zap.String("key", iter.Val()))
			}
		}
		return iter.Err()
	}
	return nil
}

// UserNamespace is the key prefix every per-user cache entry lives under,
// so InvalidateUser can drop a whole user's cached state in one sweep.
func UserNamespace(userID string) string { return "u:" + userID }

// EmbeddingKey builds the content-hash cache key for an embedding lookup
// (spec §4.1 step 2: "Cache by content-hash").
func EmbeddingKey(userID, content string) string {
	sum := sha256.Sum256([]byte(content))
	return UserNamespace(userID) + ":emb:" + hex.EncodeToString(sum[:16])
}

// Encode/Decode use msgpack for compact, schema-tolerant binary cache
// payloads (faster and smaller than JSON for the float32 embedding slices
// this cache mostly stores).
func Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
