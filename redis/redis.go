package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

type RedisConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Password  string `json:"password,omitempty"`
	Namespace string `json:"namespace"`
}

type RedisSentinelConfig struct {
	SentinelHost     string `json:"sentinel_host"`
	SentinelPort     int    `json:"sentinel_port"`
	Password         string `json:"password,omitempty"`
	MasterName       string `json:"master_name"`
	SentinelUsername string `json:"sentinel_username,omitempty"`
	Namespace        string `json:"namespace"`
}

// NewRedisClient connects to a single Redis instance and verifies the
// connection with a ping before handing the client out.
func NewRedisClient(config *RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisSentinelClient connects through a Sentinel and verifies the
// resolved master with a ping.
func NewRedisSentinelClient(config *RedisSentinelConfig) (*redis.Client, error) {
	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       config.MasterName,
		SentinelAddrs:    []string{fmt.Sprintf("%s:%d", config.SentinelHost, config.SentinelPort)},
		SentinelUsername: config.SentinelUsername,
		Password:         config.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis through Sentinel: %w", err)
	}
	return client, nil
}
