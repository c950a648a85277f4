// Package cache keeps reference-data lists in Redis.
//
// Each kind is one hash keyed by service scope, so a seed run invalidates
// every scope of a kind with a single DEL.
//
// Import Path: approvedpremises.io/cas/internal/cache
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/pkg/logger"
)

const keyPrefix = "cas:reference:"

// ReferenceCache stores reference-data lists per kind and service scope.
// Lookups never fail: a backend error is a miss.
type ReferenceCache interface {
	Get(ctx context.Context, kind domain.ReferenceKind, scope string) ([]domain.ReferenceData, bool)
	Set(ctx context.Context, kind domain.ReferenceKind, scope string, rows []domain.ReferenceData)
	Invalidate(ctx context.Context, kind domain.ReferenceKind) error
}

// NewClient opens a go-redis client. It returns nil when no URL is configured.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Redis is a ReferenceCache on a go-redis client.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps client. Non-positive ttl falls back to ten minutes.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func key(kind domain.ReferenceKind) string { return keyPrefix + string(kind) }

func (r *Redis) Get(ctx context.Context, kind domain.ReferenceKind, scope string) ([]domain.ReferenceData, bool) {
	raw, err := r.client.HGet(ctx, key(kind), scope).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn("Reference cache read failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, false
	}
	var rows []domain.ReferenceData
	if err := json.Unmarshal(raw, &rows); err != nil {
		logger.Warn("Reference cache entry unreadable", zap.String("kind", string(kind)), zap.Error(err))
		return nil, false
	}
	for i := range rows {
		rows[i].Kind = kind
	}
	return rows, true
}

func (r *Redis) Set(ctx context.Context, kind domain.ReferenceKind, scope string, rows []domain.ReferenceData) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key(kind), scope, raw)
		p.Expire(ctx, key(kind), r.ttl)
		return nil
	})
	if err != nil {
		logger.Warn("Reference cache write failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (r *Redis) Invalidate(ctx context.Context, kind domain.ReferenceKind) error {
	if err := r.client.Del(ctx, key(kind)).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", kind, err)
	}
	return nil
}

// Nop is used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, domain.ReferenceKind, string) ([]domain.ReferenceData, bool) {
	return nil, false
}
func (Nop) Set(context.Context, domain.ReferenceKind, string, []domain.ReferenceData) {}
func (Nop) Invalidate(context.Context, domain.ReferenceKind) error { return nil }
