package cache

import "time"

// Cache stores opaque byte values under string keys with a per-entry TTL.
// A miss and an expired entry are indistinguishable to callers.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}
