package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mithaq/backend/matching"
)

// compatCache is a cache-aside store for pairwise compatibility results.
// Every user has a generation counter that is part of each key involving
// them. A profile update bumps the counter, so older entries are never read
// again and age out with their TTL. A nil *compatCache is a valid, disabled
// cache.
type compatCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// cacheStamp holds the generations read before profiles were loaded.
// Results computed from those profiles are stored under the same
// generations, so a write that races with an update is never served.
// A nil stamp disables reads and writes.
type cacheStamp map[int]int64

// merge combines two stamps. It is nil when either one is.
func (st cacheStamp) merge(other cacheStamp) cacheStamp {
	if st == nil || other == nil {
		return nil
	}
	out := make(cacheStamp, len(st)+len(other))
	for id, gen := range st {
		out[id] = gen
	}
	for id, gen := range other {
		out[id] = gen
	}
	return out
}

func newRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

func newCompatCache(rdb *redis.Client, ttl time.Duration) *compatCache {
	if rdb == nil {
		return nil
	}
	return &compatCache{rdb: rdb, ttl: ttl}
}

func compatGenKey(userID int) string {
	return fmt.Sprintf("compat:gen:%d", userID)
}

// compatKey returns the key for (a, b), or false when st lacks either user.
func compatKey(a, b int, st cacheStamp) (string, bool) {
	ga, okA := st[a]
	gb, okB := st[b]
	if !okA || !okB {
		return "", false
	}
	return fmt.Sprintf("compat:%d:%d:%d:%d", a, b, ga, gb), true
}

// Stamp reads the current generations of ids. Users never updated are at 0.
func (c *compatCache) Stamp(ctx context.Context, ids ...int) (cacheStamp, error) {
	if c == nil || len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = compatGenKey(id)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache stamp: %w", err)
	}

	st := make(cacheStamp, len(ids))
	for i, v := range vals {
		var gen int64
		if s, ok := v.(string); ok {
			gen, err = strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cache stamp %s: %w", keys[i], err)
			}
		}
		st[ids[i]] = gen
	}
	return st, nil
}

// Get returns the cached result for (a, b) under st. A miss is (nil, nil).
func (c *compatCache) Get(ctx context.Context, a, b int, st cacheStamp) (*matching.Compatibility, error) {
	if c == nil {
		return nil, nil
	}
	key, ok := compatKey(a, b, st)
	if !ok {
		return nil, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var res matching.Compatibility
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &res, nil
}

// Set stores res for (a, b) under st.
func (c *compatCache) Set(ctx context.Context, a, b int, st cacheStamp, res matching.Compatibility) error {
	if c == nil {
		return nil
	}
	key, ok := compatKey(a, b, st)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate retires every cached result involving userID. Call it after
// the new profile is stored. The counter lives for twice the entry TTL.
func (c *compatCache) Invalidate(ctx context.Context, userID int) error {
	if c == nil {
		return nil
	}
	key := compatGenKey(userID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
