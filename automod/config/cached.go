package config

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Purger is implemented by stores which hold a stale view that can be
// explicitly invalidated after a config write.
type Purger interface {
	PurgeCommunity(ctx context.Context, communityID string) error
}

// MemCachedStore wraps a Store with a TTL'd in-process LRU. Reads may be
// stale up to the TTL; writes pass through and invalidate.
type MemCachedStore struct {
	inner Store
	data  *expirable.LRU[string, *Community]
}

var (
	_ Store  = (*MemCachedStore)(nil)
	_ Purger = (*MemCachedStore)(nil)
)

func NewMemCachedStore(inner Store, capacity int, ttl time.Duration) *MemCachedStore {
	return &MemCachedStore{
		inner: inner,
		data:  expirable.NewLRU[string, *Community](capacity, nil, ttl),
	}
}

func (s *MemCachedStore) GetCommunity(ctx context.Context, communityID string) (*Community, error) {
	if c, ok := s.data.Get(communityID); ok {
		return c, nil
	}
	c, err := s.inner.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	s.data.Add(communityID, c)
	return c, nil
}

func (s *MemCachedStore) PutCommunity(ctx context.Context, c *Community) error {
	if err := s.inner.PutCommunity(ctx, c); err != nil {
		return err
	}
	s.data.Remove(c.ID)
	return nil
}

func (s *MemCachedStore) PurgeCommunity(ctx context.Context, communityID string) error {
	s.data.Remove(communityID)
	return nil
}

// RedisCachedStore wraps a Store with a redis-backed cache (plus a small
// local TinyLFU layer), for multi-process deployments.
type RedisCachedStore struct {
	inner Store
	data  *cache.Cache
	ttl   time.Duration
}

var (
	_ Store  = (*RedisCachedStore)(nil)
	_ Purger = (*RedisCachedStore)(nil)
)

func NewRedisCachedStore(inner Store, rdb *redis.Client, ttl time.Duration) *RedisCachedStore {
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisCachedStore{inner: inner, data: data, ttl: ttl}
}

func redisConfigKey(communityID string) string {
	return "config/community/" + communityID
}

func (s *RedisCachedStore) GetCommunity(ctx context.Context, communityID string) (*Community, error) {
	var c Community
	err := s.data.Get(ctx, redisConfigKey(communityID), &c)
	if err == nil {
		return &c, nil
	}
	if err != cache.ErrCacheMiss {
		return nil, err
	}
	fresh, err := s.inner.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if err := s.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisConfigKey(communityID),
		Value: fresh,
		TTL:   s.ttl,
	}); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *RedisCachedStore) PutCommunity(ctx context.Context, c *Community) error {
	if err := s.inner.PutCommunity(ctx, c); err != nil {
		return err
	}
	return s.PurgeCommunity(ctx, c.ID)
}

func (s *RedisCachedStore) PurgeCommunity(ctx context.Context, communityID string) error {
	err := s.data.Delete(ctx, redisConfigKey(communityID))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
