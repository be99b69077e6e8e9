package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jamoran1356/promptmind/internal/models"
)

// hitScript performs the window transition server-side so concurrent hits on
// the same key cannot over-admit. Key expiry stands in for resetAt: an absent
// key means the window has elapsed.
var hitScript = redis.NewScript(`
local count = redis.call('GET', KEYS[1])
if count == false then
	redis.call('SET', KEYS[1], 1, 'PX', ARGV[2])
	return 1
end
if tonumber(count) < tonumber(ARGV[1]) then
	redis.call('INCR', KEYS[1])
	return 1
end
return 0
`)

// RedisStore is a CounterStore backed by Redis, for deployments where
// API replicas must share counters.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisStoreOption func(*RedisStore)

func WithPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "ratelimit",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit implements CounterStore.
func (s *RedisStore) Hit(ctx context.Context, identifier, endpoint string, limit int, window time.Duration) (bool, error) {
	allowed, err := hitScript.Run(ctx, s.rdb, []string{s.key(identifier, endpoint)}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return allowed == 1, nil
}

// GetCounter implements CounterStore. ResetAt is reconstructed from the key
// TTL.
func (s *RedisStore) GetCounter(ctx context.Context, identifier, endpoint string) (*models.RateLimitCounter, error) {
	key := s.key(identifier, endpoint)

	pipe := s.rdb.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	count, err := getCmd.Int()
	if err != nil {
		return nil, err
	}

	return &models.RateLimitCounter{
		Identifier: identifier,
		Endpoint:   endpoint,
		Count:      count,
		ResetAt:    time.Now().Add(ttlCmd.Val()),
	}, nil
}

func (s *RedisStore) key(identifier, endpoint string) string {
	return s.prefix + ":" + identifier + ":" + endpoint
}
