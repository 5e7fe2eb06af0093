package cache_impl

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type CacheI[K comparable, V any] interface {
	Get(key K) (value V, ok bool)
	Add(key K, value V) (evicted bool)
	Remove(key K) (present bool)
}

type Cache[K comparable, V any] struct {
	cache CacheI[K, V]
	log   logger.Logger
}

func NewCache[K comparable, V any](
	cache CacheI[K, V],
	log logger.Logger,
) *Cache[K, V] {
	return &Cache[K, V]{
		cache: cache,
		log:   log,
	}
}

// NewOrderCache is the read cache of the ordering service, keyed by order id.
func NewOrderCache(size int, ttl time.Duration, log logger.Logger) *Cache[uuid.UUID, models.OrderSnapshot] {
	return NewCache[uuid.UUID, models.OrderSnapshot](expirable.NewLRU[uuid.UUID, models.OrderSnapshot](size, nil, ttl), log)
}

func (c *Cache[K, V]) Add(key K, value V) (evicted bool) {
	const op = "cache_impl.Cache.Add"

	if evicted = c.cache.Add(key, value); evicted {
		c.log.Warn(op, logger.String("msg", "cache size was exceeded"))
	}

	return evicted
}

func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	return c.cache.Get(key)
}

func (c *Cache[K, V]) Remove(key K) (present bool) {
	return c.cache.Remove(key)
}
