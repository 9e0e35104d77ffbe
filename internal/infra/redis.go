// README: Redis client initialization for the parking-space GEO index.
package infra

import "github.com/redis/go-redis/v9"

// NewRedis returns nil when addr is empty so callers can treat Redis as optional.
func NewRedis(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}
