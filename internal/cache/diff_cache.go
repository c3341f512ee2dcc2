// Package cache memoizes computed diffs in Redis. Historical diffs never
// change once both dates are in the past, so they are cached without expiry;
// anything touching the current day gets a short TTL because newly ingested
// amendments can retroactively change what "current" means.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "diff:"

// DiffKey identifies one cached diff at date-only granularity. Time-of-day is
// stripped before hashing so equivalent requests share an entry.
type DiffKey struct {
	LawSFS string
	From   time.Time
	To     time.Time
}

func (k DiffKey) redisKey() string {
	return fmt.Sprintf("%s%s:%s:%s",
		keyPrefix,
		k.LawSFS,
		dateOnly(k.From).Format("2006-01-02"),
		dateOnly(k.To).Format("2006-01-02"),
	)
}

type DiffCache struct {
	client     *redis.Client
	group      singleflight.Group
	currentTTL time.Duration
	now        func() time.Time
}

// New connects to Redis and returns a diff cache. currentTTL applies to
// entries whose date range touches today or the future.
func New(redisURL string, currentTTL time.Duration) (*DiffCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, currentTTL), nil
}

// NewWithClient builds a cache from an existing Redis client.
func NewWithClient(client *redis.Client, currentTTL time.Duration) *DiffCache {
	return &DiffCache{
		client:     client,
		currentTTL: currentTTL,
		now:        time.Now,
	}
}

// GetOrCompute returns the cached payload for key, computing and storing it
// on a miss. Concurrent callers for the same key share a single computation.
// The shared computation runs detached from the first caller's context:
// cancelling one request must not fail the coalesced others.
func (c *DiffCache) GetOrCompute(ctx context.Context, key DiffKey, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	redisKey := key.redisKey()

	payload, err, _ := c.group.Do(redisKey, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		cached, err := c.client.Get(ctx, redisKey).Bytes()
		if err == nil {
			return cached, nil
		}
		if err != redis.Nil {
			return nil, fmt.Errorf("read cached diff: %w", err)
		}

		computed, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, redisKey, computed, c.ttl(key)).Err(); err != nil {
			return nil, fmt.Errorf("store computed diff: %w", err)
		}
		return computed, nil
	})
	if err != nil {
		return nil, err
	}
	return payload.([]byte), nil
}

// Invalidate drops every cached diff for a law. Called when the ingestion
// pipeline signals a new amendment for that law.
func (c *DiffCache) Invalidate(ctx context.Context, lawSFS string) (int, error) {
	pattern := keyPrefix + lawSFS + ":*"
	var dropped int
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return dropped, fmt.Errorf("scan cached diffs: %w", err)
		}
		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return dropped, fmt.Errorf("drop cached diffs: %w", err)
			}
			dropped += int(deleted)
		}
		cursor = next
		if cursor == 0 {
			return dropped, nil
		}
	}
}

func (c *DiffCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *DiffCache) Close() error {
	return c.client.Close()
}

// ttl picks the expiry policy: historical ranges are immutable and kept
// until explicitly invalidated, ranges touching today use the short TTL.
func (c *DiffCache) ttl(key DiffKey) time.Duration {
	today := dateOnly(c.now())
	if dateOnly(key.From).Before(today) && dateOnly(key.To).Before(today) {
		return 0
	}
	return c.currentTTL
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
