// Package ratelimit provides the token-bucket gate every adapter call
// passes through before the resilience envelope.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Interval is the refill period of a bucket.
type Interval string

const (
	PerSecond Interval = "second"
	PerMinute Interval = "minute"
	PerHour   Interval = "hour"
	PerDay    Interval = "day"
)

// Duration returns the wall-clock length of the interval.
func (i Interval) Duration() (time.Duration, error) {
	switch i {
	case PerSecond:
		return time.Second, nil
	case PerMinute:
		return time.Minute, nil
	case PerHour:
		return time.Hour, nil
	case PerDay:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown rate interval %q", i)
	}
}

// Config describes a token bucket.
type Config struct {
	TokensPerInterval int      `yaml:"tokens_per_interval"`
	Interval          Interval `yaml:"interval"`
	MaxTokens         int      `yaml:"max_tokens"` // burst capacity
}

// Limiter is a continuous-refill token bucket. Safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter from cfg. Refill is continuous-fractional: tokens
// accrue at TokensPerInterval/Interval and cap at MaxTokens.
func New(cfg Config) (*Limiter, error) {
	if cfg.TokensPerInterval <= 0 {
		return nil, fmt.Errorf("tokens per interval must be positive, got %d", cfg.TokensPerInterval)
	}
	iv, err := cfg.Interval.Duration()
	if err != nil {
		return nil, err
	}
	burst := cfg.MaxTokens
	if burst < 1 {
		burst = cfg.TokensPerInterval
	}
	perSecond := float64(cfg.TokensPerInterval) / iv.Seconds()
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}, nil
}

// NewDaily smooths a daily quota into per-minute buckets so a burst at
// midnight cannot drain the whole day. Burst = min(5x per-minute, 50).
func NewDaily(perDay int) (*Limiter, error) {
	perMinute := perDay / (24 * 60)
	if perMinute < 1 {
		perMinute = 1
	}
	burst := perMinute * 5
	if burst > 50 {
		burst = 50
	}
	return New(Config{TokensPerInterval: perMinute, Interval: PerMinute, MaxTokens: burst})
}

// TryAcquire consumes one token if available. Never blocks.
func (l *Limiter) TryAcquire() bool {
	return l.limiter.Allow()
}

// Acquire waits until a token is available or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Tokens reports the tokens currently available, for health output.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}
