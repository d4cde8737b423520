package redis

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// optional turns a redis.Nil reply into found=false.
func optional[T any](c *Client, command, key string, v T, err error) (T, bool, error) {
	var zero T
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, c.wrap(command, key, err)
	}
	return v, true, nil
}

// Keys holds the generic key operations.
type Keys struct {
	c *Client
}

func (k *Keys) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := k.c.cli.Exists(ctx, keys...).Result()
	return n, k.c.wrap("EXISTS", first(keys), err)
}

func (k *Keys) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := k.c.cli.Del(ctx, keys...).Result()
	return n, k.c.wrap("DEL", first(keys), err)
}

func (k *Keys) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := k.c.cli.Expire(ctx, key, ttl).Result()
	return ok, k.c.wrap("EXPIRE", key, err)
}

// TTL returns the remaining time to live; negative values follow the Redis
// convention (-1 no expiry, -2 missing key).
func (k *Keys) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := k.c.cli.TTL(ctx, key).Result()
	return d, k.c.wrap("TTL", key, err)
}

func (k *Keys) Type(ctx context.Context, key string) (string, error) {
	t, err := k.c.cli.Type(ctx, key).Result()
	return t, k.c.wrap("TYPE", key, err)
}

func (k *Keys) Rename(ctx context.Context, key, newKey string) error {
	return k.c.wrap("RENAME", key, k.c.cli.Rename(ctx, key, newKey).Err())
}

// Scan iterates the whole keyspace for keys matching pattern.
func (k *Keys) Scan(ctx context.Context, pattern string, count int64) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		keys, next, err := k.c.cli.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, k.c.wrap("SCAN", pattern, err)
		}
		out = append(out, keys...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

// Strings holds the string value operations.
type Strings struct {
	c *Client
}

func (s *Strings) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.c.cli.Get(ctx, key).Result()
	return optional(s.c, "GET", key, v, err)
}

// Set stores value; a zero ttl keeps the key forever.
func (s *Strings) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.c.wrap("SET", key, s.c.cli.Set(ctx, key, value, ttl).Err())
}

func (s *Strings) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	ok, err := s.c.cli.SetNX(ctx, key, value, ttl).Result()
	return ok, s.c.wrap("SETNX", key, err)
}

func (s *Strings) MGet(ctx context.Context, keys ...string) ([]any, error) {
	v, err := s.c.cli.MGet(ctx, keys...).Result()
	return v, s.c.wrap("MGET", first(keys), err)
}

func (s *Strings) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.c.cli.Incr(ctx, key).Result()
	return n, s.c.wrap("INCR", key, err)
}

func (s *Strings) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.c.cli.IncrBy(ctx, key, delta).Result()
	return n, s.c.wrap("INCRBY", key, err)
}

// SetJSON stores v encoded as JSON.
func (s *Strings) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(b), ttl)
}

// GetJSON decodes the JSON value at key into dest.
func (s *Strings) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	v, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal([]byte(v), dest); err != nil {
		return true, err
	}
	return true, nil
}

// Lists holds the list operations.
type Lists struct {
	c *Client
}

func (l *Lists) LeftPush(ctx context.Context, key string, values ...any) (int64, error) {
	n, err := l.c.cli.LPush(ctx, key, values...).Result()
	return n, l.c.wrap("LPUSH", key, err)
}

func (l *Lists) RightPush(ctx context.Context, key string, values ...any) (int64, error) {
	n, err := l.c.cli.RPush(ctx, key, values...).Result()
	return n, l.c.wrap("RPUSH", key, err)
}

func (l *Lists) LeftPop(ctx context.Context, key string) (string, bool, error) {
	v, err := l.c.cli.LPop(ctx, key).Result()
	return optional(l.c, "LPOP", key, v, err)
}

func (l *Lists) RightPop(ctx context.Context, key string) (string, bool, error) {
	v, err := l.c.cli.RPop(ctx, key).Result()
	return optional(l.c, "RPOP", key, v, err)
}

func (l *Lists) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := l.c.cli.LRange(ctx, key, start, stop).Result()
	return v, l.c.wrap("LRANGE", key, err)
}

func (l *Lists) Len(ctx context.Context, key string) (int64, error) {
	n, err := l.c.cli.LLen(ctx, key).Result()
	return n, l.c.wrap("LLEN", key, err)
}

// Hashes holds the hash operations.
type Hashes struct {
	c *Client
}

func (h *Hashes) Get(ctx context.Context, key, field string) (string, bool, error) {
	v, err := h.c.cli.HGet(ctx, key, field).Result()
	return optional(h.c, "HGET", key, v, err)
}

// Set accepts field/value pairs or a map, as HSET does.
func (h *Hashes) Set(ctx context.Context, key string, values ...any) (int64, error) {
	n, err := h.c.cli.HSet(ctx, key, values...).Result()
	return n, h.c.wrap("HSET", key, err)
}

func (h *Hashes) GetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := h.c.cli.HGetAll(ctx, key).Result()
	return v, h.c.wrap("HGETALL", key, err)
}

func (h *Hashes) Del(ctx context.Context, key string, fields ...string) (int64, error) {
	n, err := h.c.cli.HDel(ctx, key, fields...).Result()
	return n, h.c.wrap("HDEL", key, err)
}

func (h *Hashes) Exists(ctx context.Context, key, field string) (bool, error) {
	ok, err := h.c.cli.HExists(ctx, key, field).Result()
	return ok, h.c.wrap("HEXISTS", key, err)
}

func (h *Hashes) IncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := h.c.cli.HIncrBy(ctx, key, field, delta).Result()
	return n, h.c.wrap("HINCRBY", key, err)
}

func (h *Hashes) SetJSON(ctx context.Context, key, field string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = h.Set(ctx, key, field, string(b))
	return err
}

func (h *Hashes) GetJSON(ctx context.Context, key, field string, dest any) (bool, error) {
	v, found, err := h.Get(ctx, key, field)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal([]byte(v), dest); err != nil {
		return true, err
	}
	return true, nil
}

// Sets holds the unordered set operations.
type Sets struct {
	c *Client
}

func (s *Sets) Add(ctx context.Context, key string, members ...any) (int64, error) {
	n, err := s.c.cli.SAdd(ctx, key, members...).Result()
	return n, s.c.wrap("SADD", key, err)
}

func (s *Sets) Remove(ctx context.Context, key string, members ...any) (int64, error) {
	n, err := s.c.cli.SRem(ctx, key, members...).Result()
	return n, s.c.wrap("SREM", key, err)
}

func (s *Sets) Members(ctx context.Context, key string) ([]string, error) {
	v, err := s.c.cli.SMembers(ctx, key).Result()
	return v, s.c.wrap("SMEMBERS", key, err)
}

func (s *Sets) IsMember(ctx context.Context, key string, member any) (bool, error) {
	ok, err := s.c.cli.SIsMember(ctx, key, member).Result()
	return ok, s.c.wrap("SISMEMBER", key, err)
}

func (s *Sets) Card(ctx context.Context, key string) (int64, error) {
	n, err := s.c.cli.SCard(ctx, key).Result()
	return n, s.c.wrap("SCARD", key, err)
}

// SortedSets holds the sorted set operations.
type SortedSets struct {
	c *Client
}

func (z *SortedSets) Add(ctx context.Context, key string, members ...redis.Z) (int64, error) {
	n, err := z.c.cli.ZAdd(ctx, key, members...).Result()
	return n, z.c.wrap("ZADD", key, err)
}

func (z *SortedSets) Score(ctx context.Context, key, member string) (float64, bool, error) {
	v, err := z.c.cli.ZScore(ctx, key, member).Result()
	return optional(z.c, "ZSCORE", key, v, err)
}

func (z *SortedSets) Rank(ctx context.Context, key, member string) (int64, bool, error) {
	v, err := z.c.cli.ZRank(ctx, key, member).Result()
	return optional(z.c, "ZRANK", key, v, err)
}

func (z *SortedSets) IncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	v, err := z.c.cli.ZIncrBy(ctx, key, delta, member).Result()
	return v, z.c.wrap("ZINCRBY", key, err)
}

func (z *SortedSets) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := z.c.cli.ZRange(ctx, key, start, stop).Result()
	return v, z.c.wrap("ZRANGE", key, err)
}

func (z *SortedSets) RangeWithScores(ctx context.Context, key string, start, stop int64) ([]redis.Z, error) {
	v, err := z.c.cli.ZRangeWithScores(ctx, key, start, stop).Result()
	return v, z.c.wrap("ZRANGE", key, err)
}

func (z *SortedSets) Remove(ctx context.Context, key string, members ...any) (int64, error) {
	n, err := z.c.cli.ZRem(ctx, key, members...).Result()
	return n, z.c.wrap("ZREM", key, err)
}

func (z *SortedSets) Card(ctx context.Context, key string) (int64, error) {
	n, err := z.c.cli.ZCard(ctx, key).Result()
	return n, z.c.wrap("ZCARD", key, err)
}

func first(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
