package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyDedup is dedup:{service}:{event_id}.
const keyDedup = "dedup:%s:%s"

// NewRedisClient connects to Redis at addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// RedisDeduper shares handled event ids between consumer instances.
type RedisDeduper struct {
	Client  *redis.Client
	Service string
	TTL     time.Duration
}

func (r *RedisDeduper) key(id string) string {
	return fmt.Sprintf(keyDedup, r.Service, id)
}

// Seen implements Deduper.
func (r *RedisDeduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := r.Client.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("checking event %s: %w", id, err)
	}
	return n > 0, nil
}

// Mark implements Deduper. The key expires after TTL.
func (r *RedisDeduper) Mark(ctx context.Context, id string) error {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DedupTTL
	}
	if err := r.Client.Set(ctx, r.key(id), "1", ttl).Err(); err != nil {
		return fmt.Errorf("recording event %s: %w", id, err)
	}
	return nil
}
