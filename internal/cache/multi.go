package cache

import (
	"strings"
	"time"

	"github.com/akidev/akibot/internal/logger"
)

// Key prefixes select a tier explicitly. Unprefixed keys go through both
// tiers: memory first, database as the durable fallback.
const (
	MemoryOnlyPrefix = "mem:"
	PersistentPrefix = "db:"
)

// promoteTTL bounds how long a database hit stays hot in memory.
const promoteTTL = 24 * time.Hour

type MultiLevelCache struct {
	memory Cache
	db     Cache
	logger logger.Logger
}

func NewMultiLevelCache(memory, db Cache, log logger.Logger) Cache {
	return &MultiLevelCache{
		memory: memory,
		db:     db,
		logger: log,
	}
}

func (c *MultiLevelCache) Get(key string) ([]byte, bool) {
	if rest, ok := strings.CutPrefix(key, MemoryOnlyPrefix); ok {
		return c.memory.Get(rest)
	}
	key = strings.TrimPrefix(key, PersistentPrefix)

	if data, found := c.memory.Get(key); found {
		return data, true
	}
	if data, found := c.db.Get(key); found {
		_ = c.memory.Set(key, data, promoteTTL)
		return data, true
	}
	return nil, false
}

func (c *MultiLevelCache) Set(key string, data []byte, ttl time.Duration) error {
	if rest, ok := strings.CutPrefix(key, MemoryOnlyPrefix); ok {
		return c.memory.Set(rest, data, ttl)
	}
	key = strings.TrimPrefix(key, PersistentPrefix)

	// the durable tier is the source of truth; a memory miss is tolerable
	if err := c.db.Set(key, data, ttl); err != nil {
		return err
	}
	_ = c.memory.Set(key, data, ttl)
	return nil
}

func (c *MultiLevelCache) Delete(key string) error {
	if err := c.memory.Delete(key); err != nil {
		c.logger.WithError(err).Error("Failed to delete from memory cache")
	}
	if err := c.db.Delete(key); err != nil {
		c.logger.WithError(err).Error("Failed to delete from db cache")
		return err
	}
	return nil
}

func (c *MultiLevelCache) Clear() error {
	if err := c.memory.Clear(); err != nil {
		c.logger.WithError(err).Error("Failed to clear memory cache")
	}
	if err := c.db.Clear(); err != nil {
		c.logger.WithError(err).Error("Failed to clear db cache")
		return err
	}
	return nil
}
