package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Redis is a Store shared between server replicas. Values are JSON-encoded and
// expire through the server-side key TTL, so expiry stays absolute from insertion.
type Redis[T any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client. Keys are namespaced with prefix.
func NewRedis[T any](client redis.UniversalClient, prefix string, ttl time.Duration) *Redis[T] {
	return &Redis[T]{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis parses a redis:// URL and verifies the server answers PING
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Lookup implements Store. Backend and decode errors are logged and reported as a miss.
func (r *Redis[T]) Lookup(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return zero, false
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"cache_key": key, "error": err}).Warn("Redis cache read failed")
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logrus.WithFields(logrus.Fields{"cache_key": key, "error": err}).Warn("Discarding undecodable cache entry")
		r.client.Del(ctx, r.prefix+key)
		return zero, false
	}
	return v, true
}

// Save implements Store
func (r *Redis[T]) Save(ctx context.Context, key string, value T) {
	raw, err := json.Marshal(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{"cache_key": key, "error": err}).Warn("Cache value not encodable")
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err(); err != nil {
		logrus.WithFields(logrus.Fields{"cache_key": key, "error": err}).Warn("Redis cache write failed")
	}
}

// Clear deletes every key under the prefix
func (r *Redis[T]) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}
