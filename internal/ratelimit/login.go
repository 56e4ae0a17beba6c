package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/finsight/internal/config"
	"go.uber.org/fx"
)

const keyLoginEmail = "finsight:login:"

// LoginLimiter bounds password attempts per email. A nil limiter allows everything.
type LoginLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewLoginLimiter(client redis.Scripter, rate float64, burst int) (*LoginLimiter, error) {
	if client == nil {
		return nil, ErrNotConfigured
	}
	if rate <= 0 || burst <= 0 {
		return nil, ErrInvalidBucket
	}
	return &LoginLimiter{bucket: NewTokenBucket(client), rate: rate, burst: burst}, nil
}

// Allow spends one attempt for email. Keys are hashed so addresses never sit
// in Redis in the clear.
func (l *LoginLimiter) Allow(ctx context.Context, email string) (Result, error) {
	if l == nil {
		return Result{Allowed: true}, nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Result{}, ErrEmptyKey
	}
	sum := sha256.Sum256([]byte(email))
	return l.bucket.Allow(ctx, keyLoginEmail+hex.EncodeToString(sum[:]), l.rate, l.burst)
}

// Provide returns a nil limiter when rate limiting is disabled.
func Provide(lc fx.Lifecycle, cfg config.Config) (*LoginLimiter, error) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(rl.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: rl.RedisPassword,
		DB:       rl.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		OnStop:  func(context.Context) error { return client.Close() },
	})

	limiter, err := NewLoginLimiter(client, rl.LoginRate, rl.LoginBurst)
	if err != nil {
		return nil, err
	}
	return limiter, nil
}

var Module = fx.Module("ratelimit",
	fx.Provide(Provide),
)
