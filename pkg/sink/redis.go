package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisSink.
type RedisConfig struct {
	// Prefix namespaces the keys (default "collector").
	Prefix string `yaml:"prefix"`

	// Provider is part of every key so providers do not collide.
	Provider string `yaml:"-"`

	// TTL expires records; zero keeps them until overwritten.
	TTL time.Duration `yaml:"ttl"`
}

// RedisSink stores records in Redis.
type RedisSink struct {
	redis  *redis.Client
	config RedisConfig
}

var _ Sink = (*RedisSink)(nil)

// NewRedisSink creates a RedisSink on top of an existing client.
func NewRedisSink(redisClient *redis.Client, config RedisConfig) *RedisSink {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisSink{redis: redisClient, config: config}
}

func (s *RedisSink) key(kind, id string) Key {
	return Key{Prefix: s.config.Prefix, Provider: s.config.Provider, Kind: kind, ID: id}
}

// Put writes the record and indexes its id under the kind in one transaction.
func (s *RedisSink) Put(ctx context.Context, kind, id string, value any) error {
	rec, err := newRecord(kind, id, value)
	if err != nil {
		SinkErrors.WithLabelValues("put").Inc()
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		SinkErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal record: %w", err)
	}

	key := s.key(kind, id)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key.String(), data, s.config.TTL)
		pipe.SAdd(ctx, key.IndexKey(), id)
		pipe.SAdd(ctx, key.KindsKey(), kind)
		return nil
	})
	if err != nil {
		SinkErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis put %s: %w", key, err)
	}

	SinkWrites.WithLabelValues("redis").Inc()
	return nil
}

// Get returns the record stored under kind and id.
// Returns ErrNotFound if the key doesn't exist or has expired.
func (s *RedisSink) Get(ctx context.Context, kind, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(kind, id).String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		SinkErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		SinkErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return &rec, nil
}

// List returns the live records of kind ordered by id. Ids whose record has
// expired are pruned from the index.
func (s *RedisSink) List(ctx context.Context, kind string) ([]*Record, error) {
	index := s.key(kind, "").IndexKey()

	ids, err := s.redis.SMembers(ctx, index).Result()
	if err != nil {
		SinkErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(ids)

	out := make([]*Record, 0, len(ids))
	var stale []any
	for _, id := range ids {
		rec, err := s.Get(ctx, kind, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, index, stale...).Err(); err != nil {
			SinkErrors.WithLabelValues("list").Inc()
		}
	}
	return out, nil
}

// Kinds returns the kinds written by this sink's provider, sorted.
func (s *RedisSink) Kinds(ctx context.Context) ([]string, error) {
	kinds, err := s.redis.SMembers(ctx, s.key("", "").KindsKey()).Result()
	if err != nil {
		SinkErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(kinds)
	return kinds, nil
}
