package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "citydash:"
	redisTagPrefix = redisKeyPrefix + "tag:"
)

// RedisStore shares entries and tag invalidations between replicas. Keys are
// kept for Retain so that stale fallbacks survive well past the freshness window.
type RedisStore struct {
	client *redis.Client
	Retain time.Duration
}

func NewRedisStore(client *redis.Client, retain time.Duration) *RedisStore {
	return &RedisStore{client: client, Retain: retain}
}

// NewRedisStoreFromURL parses a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, rawURL string, retain time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStore(client, retain), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("redis get %s: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("decoding redis entry %s: %w", key, err)
	}
	return e, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, s.Retain).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SetTagInvalidation(ctx context.Context, tag string, at time.Time) error {
	if err := s.client.Set(ctx, redisTagPrefix+tag, at.UTC().Format(time.RFC3339Nano), s.Retain).Err(); err != nil {
		return fmt.Errorf("redis set tag %s: %w", tag, err)
	}
	return nil
}

func (s *RedisStore) TagInvalidations(ctx context.Context, tags []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(tags))
	if len(tags) == 0 {
		return out, nil
	}
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = redisTagPrefix + tag
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget tags: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decoding invalidation of tag %s: %w", tags[i], err)
		}
		out[tags[i]] = at
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
