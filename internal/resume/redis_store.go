// SPDX-License-Identifier: MIT

package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "lionplayer:resume:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`     // Redis server address (host:port)
	Password string        `yaml:"password"` // Redis password (optional)
	DB       int           `yaml:"db"`       // Redis database number
	TTL      time.Duration `yaml:"ttl"`      // Expiry of saved positions; 0 keeps them forever
}

// RedisStore implements Store on a shared Redis so positions follow a
// profile across devices.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis resume store")

	return &RedisStore{client: client, ttl: cfg.TTL, logger: logger}, nil
}

func redisKey(profile, mediaID string) string {
	return redisKeyPrefix + profile + ":" + mediaID
}

func (s *RedisStore) Put(ctx context.Context, profile, mediaID string, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode resume state: %w", err)
	}
	return s.client.Set(ctx, redisKey(profile, mediaID), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, profile, mediaID string) (*State, error) {
	val, err := s.client.Get(ctx, redisKey(profile, mediaID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(val, &state); err != nil {
		s.logger.Warn().Err(err).Str("media_id", mediaID).Msg("discarding undecodable resume state")
		return nil, nil
	}
	return &state, nil
}

func (s *RedisStore) Delete(ctx context.Context, profile, mediaID string) error {
	return s.client.Del(ctx, redisKey(profile, mediaID)).Err()
}

// HealthCheck checks if Redis is available.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
