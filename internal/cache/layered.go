package cache

import (
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/model"
)

// LayeredCache reads through memory to disk and writes to both
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
	log    *zap.SugaredLogger
}

// NewLayeredCache creates a memory cache in front of a disk cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration, log *zap.SugaredLogger) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
		log:    log,
	}
}

// New builds the cache described by cfg. A disabled cache, or one without a
// directory, is memory only.
func New(cfg model.CacheConfig, log *zap.SugaredLogger) Cache {
	if !cfg.Enabled || cfg.Dir == "" {
		return NewMemoryCache(time.Hour, 10*time.Minute)
	}
	return NewLayeredCache(time.Hour, cfg.Dir, cfg.TTL, log)
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}
	v, ok := c.disk.Get(key)
	if !ok {
		return nil, false
	}
	_ = c.memory.Set(key, v, 0)
	return v, true
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	_ = c.memory.Set(key, value, ttl)
	if err := c.disk.Set(key, value, ttl); err != nil {
		// The memory layer still serves this process
		c.log.Warnw("Disk cache write failed", logger.FieldPath, c.disk.path(key), logger.FieldError, err)
	}
	return nil
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}
