// Package cache memoizes expensive producers with a time-to-live, collapses
// concurrent refreshes of the same key and supports tag invalidation. A failed
// refresh never replaces a stored value; the old one is served as stale.
//
// Tag invalidations are written through the Store, so every Cache sharing a
// store (replicas on one redis, restarts on one sqlite file) sees them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by a Store when the key holds nothing.
var ErrMiss = errors.New("cache: miss")

type Entry struct {
	Value    []byte    `json:"value"`
	Tags     []string  `json:"tags"`
	StoredAt time.Time `json:"storedAt"`
}

// Store persists entries and tag invalidation times. Entries do not expire in
// the store; freshness is decided by the Cache so that expired entries remain
// usable as fallback.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	SetTagInvalidation(ctx context.Context, tag string, at time.Time) error
	// TagInvalidations returns the last invalidation time of each tag that has one.
	TagInvalidations(ctx context.Context, tags []string) (map[string]time.Time, error)
}

type Status string

const (
	StatusHit   Status = "hit"
	StatusMiss  Status = "miss"
	StatusStale Status = "stale"
)

// Observer is told the outcome of every lookup.
type Observer interface {
	RecordCacheLookup(status string)
}

type Cache[T any] struct {
	store    Store
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
	observer Observer

	group singleflight.Group

	mu          sync.RWMutex
	invalidated map[string]time.Time
}

type Option func(*config)

type config struct {
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

func WithLogger(l *zap.Logger) Option { return func(c *config) { c.logger = l } }

func WithObserver(o Observer) Option { return func(c *config) { c.observer = o } }

func WithClock(now func() time.Time) Option { return func(c *config) { c.now = now } }

func New[T any](store Store, ttl time.Duration, opts ...Option) *Cache[T] {
	cfg := config{logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	return &Cache[T]{
		store:       store,
		ttl:         ttl,
		now:         cfg.now,
		logger:      cfg.logger,
		observer:    cfg.observer,
		invalidated: make(map[string]time.Time),
	}
}

// InvalidateTag marks every entry carrying tag as expired. Entries stay in
// the store and keep serving as fallback until a refresh succeeds. The
// invalidation always applies to this Cache; the error reports whether it
// reached the store.
func (c *Cache[T]) InvalidateTag(ctx context.Context, tag string) error {
	at := c.now()
	c.mu.Lock()
	c.invalidated[tag] = at
	c.mu.Unlock()

	if err := c.store.SetTagInvalidation(ctx, tag, at); err != nil {
		c.logger.Warn("Cache tag invalidation not persisted", zap.String("tag", tag), zap.Error(err))
		return fmt.Errorf("persisting invalidation of %s: %w", tag, err)
	}
	c.logger.Info("Cache tag invalidated", zap.String("tag", tag))
	return nil
}

// invalidations merges the local and stored invalidation times of tags,
// keeping the latest of each.
func (c *Cache[T]) invalidations(ctx context.Context, tags []string) map[string]time.Time {
	out := make(map[string]time.Time, len(tags))
	c.mu.RLock()
	for _, tag := range tags {
		if at, ok := c.invalidated[tag]; ok {
			out[tag] = at
		}
	}
	c.mu.RUnlock()

	stored, err := c.store.TagInvalidations(ctx, tags)
	if err != nil {
		c.logger.Warn("Cache tag lookup failed", zap.Strings("tags", tags), zap.Error(err))
		return out
	}
	for tag, at := range stored {
		if at.After(out[tag]) {
			out[tag] = at
		}
	}
	return out
}

func (c *Cache[T]) fresh(ctx context.Context, e Entry) bool {
	if !c.now().Before(e.StoredAt.Add(c.ttl)) {
		return false
	}
	if len(e.Tags) == 0 {
		return true
	}
	for _, at := range c.invalidations(ctx, e.Tags) {
		if !e.StoredAt.After(at) {
			return false
		}
	}
	return true
}

// GetOrCompute returns the cached value for key while it is fresh, otherwise
// runs produce once for all concurrent callers and stores the result.
// If produce fails and an older value exists, that value is returned with StatusStale.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, tags []string, produce func(context.Context) (T, error)) (T, Status, error) {
	var zero T

	prev, prevErr := c.store.Get(ctx, key)
	if prevErr != nil && !errors.Is(prevErr, ErrMiss) {
		c.logger.Warn("Cache store read failed", zap.String("key", key), zap.Error(prevErr))
	}
	if prevErr == nil && c.fresh(ctx, prev) {
		v, err := decode[T](prev)
		if err == nil {
			c.observe(StatusHit)
			return v, StatusHit, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		prevErr = err
	}

	// Detached so one abandoned request does not cancel the refresh others wait on.
	res, err, _ := c.group.Do(key, func() (any, error) {
		// Stamped before fetching: an invalidation that lands mid-fetch must
		// still expire what this run returns.
		startedAt := c.now()
		v, err := produce(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding cache entry: %w", err)
		}
		entry := Entry{Value: payload, Tags: slices.Clone(tags), StoredAt: startedAt}
		if err := c.store.Set(context.WithoutCancel(ctx), key, entry); err != nil {
			c.logger.Warn("Cache store write failed", zap.String("key", key), zap.Error(err))
		}
		return v, nil
	})
	if err == nil {
		c.observe(StatusMiss)
		return res.(T), StatusMiss, nil
	}

	if prevErr == nil {
		if v, decErr := decode[T](prev); decErr == nil {
			c.logger.Warn("Refresh failed, serving stale value",
				zap.String("key", key),
				zap.Time("storedAt", prev.StoredAt),
				zap.Error(err),
			)
			c.observe(StatusStale)
			return v, StatusStale, nil
		}
	}
	return zero, StatusMiss, err
}

func (c *Cache[T]) observe(s Status) {
	if c.observer != nil {
		c.observer.RecordCacheLookup(string(s))
	}
}

func decode[T any](e Entry) (T, error) {
	var v T
	err := json.Unmarshal(e.Value, &v)
	return v, err
}

// Loader binds a cache to one key, its tags and its producer.
type Loader[T any] struct {
	cache   *Cache[T]
	key     string
	tags    []string
	produce func(context.Context) (T, error)
}

func (c *Cache[T]) Bind(key string, tags []string, produce func(context.Context) (T, error)) *Loader[T] {
	return &Loader[T]{cache: c, key: key, tags: tags, produce: produce}
}

func (l *Loader[T]) Load(ctx context.Context) (T, Status, error) {
	return l.cache.GetOrCompute(ctx, l.key, l.tags, l.produce)
}

// Invalidate expires every tag the loader stores under.
func (l *Loader[T]) Invalidate(ctx context.Context) error {
	var errs []error
	for _, tag := range l.tags {
		errs = append(errs, l.cache.InvalidateTag(ctx, tag))
	}
	return errors.Join(errs...)
}
