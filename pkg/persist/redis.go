package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	// KeyPrefix namespaces every key. When empty, Clear flushes the whole DB.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"query:"`
}

// RedisPersistor stores entries as plain Redis strings without expiry.
type RedisPersistor struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	prefix      string
}

// NewRedisPersistor creates and connects a new RedisPersistor.
// It pings the Redis server to ensure connectivity before returning.
func NewRedisPersistor(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisPersistor, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	return &RedisPersistor{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisPersistor").Logger(),
		prefix:      cfg.KeyPrefix,
	}, nil
}

// GetItem retrieves a value. redis.Nil is a normal miss.
func (p *RedisPersistor) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := p.redisClient.Get(ctx, p.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		p.logger.Error().Err(err).Str("key", key).Msg("Unexpected Redis error during get.")
		return "", false, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	p.logger.Debug().Str("key", key).Msg("Redis hit.")
	return value, true, nil
}

// SetItem stores a value with no TTL.
func (p *RedisPersistor) SetItem(ctx context.Context, key, value string) error {
	if err := p.redisClient.Set(ctx, p.prefix+key, value, 0).Err(); err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("Failed to set data in Redis.")
		return fmt.Errorf("failed to set in redis for key %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes a key.
func (p *RedisPersistor) RemoveItem(ctx context.Context, key string) error {
	if err := p.redisClient.Del(ctx, p.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del failed for key %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the configured prefix.
func (p *RedisPersistor) Clear(ctx context.Context) error {
	if p.prefix == "" {
		if err := p.redisClient.FlushDB(ctx).Err(); err != nil {
			return fmt.Errorf("redis flushdb failed: %w", err)
		}
		return nil
	}

	var keys []string
	iter := p.redisClient.Scan(ctx, 0, p.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed for prefix %s: %w", p.prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := p.redisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed during clear: %w", err)
	}
	p.logger.Debug().Int("count", len(keys)).Msg("Cleared Redis entries.")
	return nil
}

// Close closes the Redis client connection.
func (p *RedisPersistor) Close() error {
	if p.redisClient != nil {
		p.logger.Info().Msg("Closing Redis client connection...")
		return p.redisClient.Close()
	}
	return nil
}
