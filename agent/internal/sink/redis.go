package sink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsebridge/pulsebridge/agent/internal/config"
	"github.com/pulsebridge/pulsebridge/pkg/types"
)

// redisClient is the subset of *redis.Client the sink uses.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// redisSink stores each record under {path}:{key} and announces it on the
// {path} channel.
type redisSink struct {
	prefix string
	rdb    redisClient
}

func newRedisSink(cfg config.SinkConfig) (*redisSink, error) {
	opts := &redis.Options{Addr: cfg.Endpoint}
	if cfg.Auth.Mode == "basic" {
		opts.Username = cfg.Auth.Username
		opts.Password = cfg.Auth.Password()
	}
	if cfg.TLS.Enabled {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
		}
	}
	return &redisSink{prefix: cfg.Path, rdb: redis.NewClient(opts)}, nil
}

func (s *redisSink) Name() string { return "redis" }

func (s *redisSink) key(k string) string {
	return s.prefix + ":" + k
}

func (s *redisSink) Write(ctx context.Context, rec types.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(rec.Key), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(rec.Key), err)
	}
	// The record is stored; a failed announcement does not fail the write.
	if err := s.rdb.Publish(ctx, s.prefix, payload).Err(); err != nil {
		slog.Warn("sink: redis publish failed", "channel", s.prefix, "key", rec.Key, "err", err)
	}
	return nil
}

func (s *redisSink) Close() error {
	return s.rdb.Close()
}
