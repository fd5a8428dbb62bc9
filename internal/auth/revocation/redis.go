// Package revocation tracks revoked token ids in Redis.
package revocation

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

const (
	tracerName = "funcauthz/revocation"

	// DefaultKeyPrefix is prepended to every token id.
	DefaultKeyPrefix = "funcauthz:revoked:"

	// DefaultTTL bounds how long a revocation entry is kept when the caller
	// passes no ttl. It should exceed the longest token lifetime.
	DefaultTTL = 24 * time.Hour
)

// Config configures the Redis revocation store.
type Config struct {
	URL          string        `yaml:"url" json:"url"`
	KeyPrefix    string        `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
	PoolSize     int           `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	DialTimeout  time.Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	TLS          bool          `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// RedisStore records revoked token ids as keys with an expiry.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    observability.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg *Config, logger observability.Logger) (*RedisStore, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("revocation: redis url is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("revocation: invalid redis url: %w", err)
	}
	applyOptions(opts, cfg)

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("revocation: redis connection failed: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger.Info("redis revocation store initialized", observability.String("keyPrefix", prefix))

	return &RedisStore{client: client, keyPrefix: prefix, logger: logger}, nil
}

func applyOptions(opts *redis.Options, cfg *Config) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.TLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
}

// IsRevoked reports whether tokenID has been revoked.
func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "revocation.IsRevoked",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "redis")),
	)
	defer span.End()

	n, err := s.client.Exists(ctx, s.keyPrefix+tokenID).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("revocation: lookup failed: %w", err)
	}
	return n > 0, nil
}

// Revoke marks tokenID as revoked for ttl. A non-positive ttl uses DefaultTTL.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return errors.New("revocation: token id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if err := s.client.Set(ctx, s.keyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation: store failed: %w", err)
	}

	s.logger.Info("token revoked",
		observability.String("jti", tokenID),
		observability.Duration("ttl", ttl),
	)
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
