package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/xbridge-api/internal/cache"
	"github.com/yourorg/xbridge-api/internal/config"
	"github.com/yourorg/xbridge-api/internal/model"
)

// quoteKeyPrefix namespaces quote entries in a shared Redis
const quoteKeyPrefix = "xbridge:quote:"

// newQuoteStore builds the quote cache backend. An unreachable Redis falls
// back to the in-process cache so the server still starts.
func newQuoteStore(ctx context.Context, cfg config.Config) (cache.Store[model.Quote], func()) {
	if cfg.QuoteCacheBackend == config.BackendRedis {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		client, err := cache.DialRedis(dialCtx, cfg.RedisURL)
		if err == nil {
			logrus.WithField("ttl", cfg.QuoteCacheTTL).Info("Quote cache backed by Redis")
			return cache.NewRedis[model.Quote](client, quoteKeyPrefix, cfg.QuoteCacheTTL), func() {
				if err := client.Close(); err != nil {
					logrus.Warnf("Redis close failed: %v", err)
				}
			}
		}
		logrus.Warnf("Redis unavailable, using in-memory quote cache: %v", err)
	}
	return cache.NewTTL[model.Quote](cfg.QuoteCacheTTL), func() {}
}
