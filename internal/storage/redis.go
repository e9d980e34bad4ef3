package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps a *redis.Client used by internal/pubsub to broadcast
// composed-schema cache invalidations across a fleet of gateway
// processes.
type Redis struct {
	*redis.Client
}

// RedisConfig configures the connection.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedis opens a client and verifies connectivity with a ping.
func NewRedis(config RedisConfig) (*Redis, error) {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{Client: client}, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.Client.Close()
}
