package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *pgxpool.Pool and the event producer.
type Pinger interface{ Ping(ctx context.Context) error }

// RedisClient is the minimal interface for a Redis client needed for readiness.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// BuildReadinessChecks returns db, redis and kafka checks. A nil dependency
// yields a nil check, which readiness skips: the memory store and the
// optional Redis/Kafka integrations are valid deployments.
func BuildReadinessChecks(pool Pinger, rdb RedisClient, events Pinger) (
	dbCheck func(ctx context.Context) error,
	redisCheck func(ctx context.Context) error,
	kafkaCheck func(ctx context.Context) error,
) {
	if pool != nil {
		dbCheck = pool.Ping
	}
	if rdb != nil {
		redisCheck = func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			return nil
		}
	}
	if events != nil {
		kafkaCheck = events.Ping
	}
	return dbCheck, redisCheck, kafkaCheck
}
