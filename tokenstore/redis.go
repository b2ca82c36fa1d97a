package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authclient"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis command failure other than a missing key.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldAccess  = "access"
	fieldRefresh = "refresh"
)

// Redis stores one session's token pair in a Redis hash at "<prefix>:<session>".
//
// SetTokens replaces both fields and the TTL in one MULTI/EXEC so readers never
// observe a mix of two pairs.
type Redis struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

var _ authclient.TokenStore = (*Redis)(nil)

// RedisConfig configures [NewRedis].
type RedisConfig struct {
	// Prefix namespaces the key; defaults to "authclient".
	Prefix string
	// Session identifies the signed-in session sharing the pair; defaults to "default".
	Session string
	// TTL expires the pair when no refresh happens in time. Zero keeps it forever.
	TTL time.Duration
}

// NewRedis returns a store backed by client.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("TTL must be >= 0")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "authclient"
	}
	session := strings.TrimSpace(cfg.Session)
	if session == "" {
		session = "default"
	}
	return &Redis{
		redis: client,
		key:   prefix + ":" + session,
		ttl:   cfg.TTL,
	}, nil
}

// Key returns the Redis key holding the pair.
func (s *Redis) Key() string {
	return s.key
}

func (s *Redis) AccessToken(ctx context.Context) (string, error) {
	return s.field(ctx, fieldAccess)
}

func (s *Redis) RefreshToken(ctx context.Context) (string, error) {
	return s.field(ctx, fieldRefresh)
}

func (s *Redis) field(ctx context.Context, name string) (string, error) {
	v, err := s.redis.HGet(ctx, s.key, name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v, nil
}

func (s *Redis) SetTokens(ctx context.Context, pair authclient.TokenPair) error {
	if !pair.Complete() {
		return ErrIncompletePair
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, fieldAccess, pair.AccessToken, fieldRefresh, pair.RefreshToken)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Redis) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
