package providers

import (
	"fmt"
	"log/slog"
	"time"

	"ekadashi.app/config"
	"ekadashi.app/providers/cache"
)

// NewCacheFromConfig selects the geocode cache implementation by
// configuration. A redis connection failure degrades to the in-memory cache
// rather than failing startup; the cache is an optimization, not a dependency.
func NewCacheFromConfig(cfg *config.CacheConfig) Cache {
	switch cfg.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(&cache.RedisCacheConfig{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			slog.Warn("redis cache unavailable, falling back to memory cache", "error", err)
			return cache.NewMemoryCache()
		}
		return redisCache
	case "memory":
		return cache.NewMemoryCache()
	}
	slog.Warn(fmt.Sprintf("unknown cache type %q, using memory cache", cfg.Type))
	return cache.NewMemoryCache()
}
