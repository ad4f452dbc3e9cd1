// Package store wraps Redis with the ephemeral key-value operations the bot
// builds on: TTL-bounded string values, decaying counters, hash records,
// membership sets, and an atomic compare-and-delete used to claim game
// rounds exactly once.
//
// Redis is treated as externally synchronized: every operation here is a
// single atomic command (or a single Lua script), so callers never need to
// assume atomicity across multiple calls.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store performs all Redis access for the bot's ephemeral state.
type Store struct {
	client      *redis.Client
	claimScript *redis.Script
}

// New creates a Store using the provided Redis client.
func New(client *redis.Client) *Store {
	return &Store{
		client:      client,
		claimScript: redis.NewScript(claimAndDeleteLua),
	}
}

// Dial connects to Redis at addr, verifies the connection, and returns a
// ready Store.
func Dial(addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}

	return New(client), nil
}

// Client exposes the underlying Redis client for health checks and shutdown.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Set writes a value with a bounded TTL. A non-positive TTL makes the value
// immediately unreadable, so the write is skipped and any stale value under
// the key is removed.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.client.Del(ctx, key).Err()
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// SetForever writes a value with no expiry (scores, persistent flags).
func (s *Store) SetForever(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

// Get reads a value. The second return is false when the key is absent or
// has expired.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// ClaimAndDelete atomically deletes key if its current value equals expected.
// Returns true for the single caller that wins the claim; false when the key
// is absent, expired, or holds a different value. Two concurrent claims for
// the same value can never both succeed.
func (s *Store) ClaimAndDelete(ctx context.Context, key, expected string) (bool, error) {
	res, err := s.claimScript.Run(ctx, s.client, []string{key}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("store: claim %s: %w", key, err)
	}
	return res == 1, nil
}

// claimAndDeleteLua compares the stored value against ARGV[1] and deletes
// the key on match, in a single atomic step.
const claimAndDeleteLua = `
local val = redis.call('GET', KEYS[1])
if not val then return 0 end
if val ~= ARGV[1] then return 0 end
redis.call('DEL', KEYS[1])
return 1
`

// Incr increments an unbounded counter and returns the new value.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// IncrWindow increments a decaying counter. On the first increment the key
// gets the given expiry, defining the window boundary; the window does not
// slide on later increments, so the counter silently resets after a quiet
// period.
func (s *Store) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			// The key exists but has no TTL and would count forever.
			// Best effort: remove it rather than leave a stuck window.
			s.client.Del(ctx, key)
			return count, err
		}
	}
	return count, nil
}

// GetInt reads an integer counter, returning 0 when absent.
func (s *Store) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// --- Hash records ---

func (s *Store) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return s.client.HSet(ctx, key, values).Err()
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	return s.client.HDel(ctx, key, fields...).Err()
}

// HIncrBy atomically increments a hash field and returns the new value.
// Concurrent increments for the same field never lose updates.
func (s *Store) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	return s.client.HIncrBy(ctx, key, field, incr).Result()
}

// --- Membership sets ---

func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.client.SAdd(ctx, key, members).Err()
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.client.SRem(ctx, key, members).Err()
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	return s.client.SCard(ctx, key).Result()
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.client.SIsMember(ctx, key, member).Result()
}

// ScanPrefix enumerates keys matching a glob pattern using SCAN, for
// roster-style queries such as "all warned users in chat X". Never uses KEYS.
func (s *Store) ScanPrefix(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", pattern, err)
	}
	return keys, nil
}
