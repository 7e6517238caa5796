package realtime

import (
	"github.com/redis/go-redis/v9"

	"github.com/projecthub-dev/projecthub/internal/logger"
)

// NewRedis creates the Redis client used to fan notifications out to other
// processes (channel notifications:<user id>).
func NewRedis(addr, password string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	logger.Infof("redis client created (addr: %s)", addr)
	return rdb
}
