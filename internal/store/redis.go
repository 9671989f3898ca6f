package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rollbook/internal/attendance"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts. An empty addr returns nil,
// which every method treats as "not configured".
func NewRedis(addr string) *Redis {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// DayCache caches attendance sheets in redis. Keys carry a generation number;
// Invalidate bumps it so every sheet cached before a write becomes
// unreachable and expires on its own.
type DayCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewDayCache builds a cache. A nil client yields a nil cache, which the
// attendance service treats as disabled.
func NewDayCache(r *Redis, prefix string, ttl time.Duration) *DayCache {
	if r == nil || r.Client == nil {
		return nil
	}
	return newDayCache(r.Client, prefix, ttl)
}

func newDayCache(client redis.Cmdable, prefix string, ttl time.Duration) *DayCache {
	if prefix == "" {
		prefix = "rollbook"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DayCache{client: client, prefix: prefix, ttl: ttl}
}

// Day returns the cached sheet of date. The fill function of a miss writes
// under the generation seen here, so a sheet read across a concurrent write
// is never reachable.
func (c *DayCache) Day(ctx context.Context, date string) ([]attendance.DayEntry, func([]attendance.DayEntry), bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		logger.Warningf("reading cache generation: %v", err)
		return nil, nil, false
	}
	key := c.dayKey(gen, date)
	fill := func(entries []attendance.DayEntry) { c.store(ctx, key, entries) }

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fill, false
	} else if err != nil {
		logger.Warningf("reading cached attendance for %q: %v", date, err)
		return nil, nil, false
	}
	var entries []attendance.DayEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.Warningf("decoding cached attendance for %q: %v", date, err)
		return nil, fill, false
	}
	return entries, nil, true
}

func (c *DayCache) store(ctx context.Context, key string, entries []attendance.DayEntry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		logger.Warningf("encoding attendance for %q: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.Warningf("caching attendance under %q: %v", key, err)
	}
}

// Invalidate moves the cache to a new generation.
func (c *DayCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, c.genKey()).Err(); err != nil {
		logger.Warningf("invalidating attendance cache: %v", err)
	}
}

func (c *DayCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *DayCache) genKey() string {
	return c.prefix + ":gen"
}

func (c *DayCache) dayKey(gen int64, date string) string {
	return fmt.Sprintf("%s:day:%d:%s", c.prefix, gen, date)
}
