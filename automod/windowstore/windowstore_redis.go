package windowstore

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisWindowPrefix string = "window/"

// RedisWindowStore keeps windows in redis sorted sets, scored by unix
// milliseconds, so multiple engine processes share one view.
type RedisWindowStore struct {
	Client    *redis.Client
	retention time.Duration
	// disambiguates members with identical timestamp and fingerprint
	seq atomic.Uint64
}

var _ WindowStore = (*RedisWindowStore)(nil)

func NewRedisWindowStore(redisURL string, retention time.Duration) (*RedisWindowStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisWindowStore{Client: rdb, retention: retention}, nil
}

func (s *RedisWindowStore) Record(ctx context.Context, key, detector string, e Entry) error {
	k := redisWindowPrefix + windowKey(key, detector)
	ts := e.Time.UnixMilli()
	member := fmt.Sprintf("%d:%d:%s", ts, s.seq.Add(1), e.Fingerprint)

	// trim, append, and refresh expiry in a single round-trip
	multi := s.Client.Pipeline()
	multi.ZRemRangeByScore(ctx, k, "-inf", fmt.Sprintf("(%d", e.Time.Add(-s.retention).UnixMilli()))
	multi.ZAdd(ctx, k, redis.Z{Score: float64(ts), Member: member})
	multi.Expire(ctx, k, s.retention+time.Minute)
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisWindowStore) CountSince(ctx context.Context, key, detector string, since time.Time) (int, error) {
	k := redisWindowPrefix + windowKey(key, detector)
	n, err := s.Client.ZCount(ctx, k, fmt.Sprintf("%d", since.UnixMilli()), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *RedisWindowStore) CountMatchingSince(ctx context.Context, key, detector, fingerprint string, since time.Time) (int, error) {
	k := redisWindowPrefix + windowKey(key, detector)
	members, err := s.Client.ZRangeByScore(ctx, k, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixMilli()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range members {
		// member format is ts:seq:fingerprint
		parts := strings.SplitN(m, ":", 3)
		if len(parts) == 3 && parts[2] == fingerprint {
			count++
		}
	}
	return count, nil
}

func (s *RedisWindowStore) PurgeExpired(ctx context.Context, key, detector string, before time.Time) error {
	k := redisWindowPrefix + windowKey(key, detector)
	return s.Client.ZRemRangeByScore(ctx, k, "-inf", fmt.Sprintf("(%d", before.UnixMilli())).Err()
}
