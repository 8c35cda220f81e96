package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const whitelistKey = "adscrub:whitelist"

// RedisStore handles the whitelist, per-domain blocked counters and the
// recently-scanned dedupe keys.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// IsWhitelisted checks domain membership in the user's whitelist set.
func (s *RedisStore) IsWhitelisted(ctx context.Context, domain string) (bool, error) {
	return s.client.SIsMember(ctx, whitelistKey, domain).Result()
}

// AddToWhitelist exempts a domain from all blocking.
func (s *RedisStore) AddToWhitelist(ctx context.Context, domain string) error {
	return s.client.SAdd(ctx, whitelistKey, domain).Err()
}

// RemoveFromWhitelist re-enables blocking for a domain.
func (s *RedisStore) RemoveFromWhitelist(ctx context.Context, domain string) error {
	return s.client.SRem(ctx, whitelistKey, domain).Err()
}

// MarkScanned sets a TTL key to dedupe repeat scans of the same URL.
func (s *RedisStore) MarkScanned(ctx context.Context, url string, ttl time.Duration) error {
	key := fmt.Sprintf("adscrub:scanned:%s", url)
	return s.client.Set(ctx, key, "1", ttl).Err()
}

// IsRecentlyScanned checks whether a URL was scanned within the TTL.
func (s *RedisStore) IsRecentlyScanned(ctx context.Context, url string) (bool, error) {
	key := fmt.Sprintf("adscrub:scanned:%s", url)
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

// IncrBlocked bumps the running blocked counter for a domain.
func (s *RedisStore) IncrBlocked(ctx context.Context, domain string, n int) error {
	key := fmt.Sprintf("adscrub:blocked:%s", domain)
	return s.client.IncrBy(ctx, key, int64(n)).Err()
}

// BlockedCount reads the running blocked counter for a domain.
func (s *RedisStore) BlockedCount(ctx context.Context, domain string) (int64, error) {
	key := fmt.Sprintf("adscrub:blocked:%s", domain)
	val, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}
