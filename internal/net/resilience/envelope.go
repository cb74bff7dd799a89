// Package resilience wraps every outbound adapter call in the shared
// timeout -> retry -> circuit breaker -> bulkhead pipeline. The timeout
// bounds total wall time including retries; retries run inside that
// deadline; the breaker accumulates failures across attempts; the bulkhead
// caps concurrent in-flight calls.
package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

// Config tunes one envelope. Zero values fall back to defaults.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"` // consecutive failures to open
	HalfOpenAfter    time.Duration `yaml:"half_open_after"`
	MaxAttempts      int           `yaml:"max_attempts"`
	InitialDelay     time.Duration `yaml:"initial_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxConcurrent    int64         `yaml:"max_concurrent"`
	QueueSize        int64         `yaml:"queue_size"`
}

// DefaultConfig matches the envelope defaults used by every adapter unless
// overridden in configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		HalfOpenAfter:    30 * time.Second,
		MaxAttempts:      3,
		InitialDelay:     time.Second,
		MaxDelay:         10 * time.Second,
		Timeout:          10 * time.Second,
		MaxConcurrent:    5,
		QueueSize:        10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.HalfOpenAfter <= 0 {
		c.HalfOpenAfter = d.HalfOpenAfter
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}

// Envelope composes the four policies around a call. Safe for concurrent
// use; one envelope per adapter.
type Envelope struct {
	name    string
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	sem     *semaphore.Weighted
	pending atomic.Int64 // in-flight + queued bulkhead entrants
}

// New creates an envelope named after its adapter.
func New(name string, cfg Config) *Envelope {
	cfg = cfg.withDefaults()
	e := &Envelope{
		name: name,
		cfg:  cfg,
		sem:  semaphore.NewWeighted(cfg.MaxConcurrent),
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // single probe in half-open
		Timeout:     cfg.HalfOpenAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("adapter", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return e
}

// State returns the breaker state for health reporting.
func (e *Envelope) State() gobreaker.State {
	return e.breaker.State()
}

// Execute runs fn under the full pipeline. The returned error carries the
// original category: classify it with Classify.
func (e *Envelope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialDelay
	bo.MaxInterval = e.cfg.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var err error
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			sleep := bo.NextBackOff()
			select {
			case <-ctx.Done():
				return e.deadlineError(ctx)
			case <-time.After(sleep):
			}
			log.Debug().Str("adapter", e.name).Int("attempt", attempt+1).Msg("retrying call")
		}

		err = e.guardedCall(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return e.deadlineError(ctx)
		}
		if !Classify(err).Retryable {
			return err
		}
	}
	return err
}

// guardedCall is the breaker-wrapped bulkhead-wrapped invocation.
func (e *Envelope) guardedCall(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.bulkheadCall(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (e *Envelope) bulkheadCall(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.pending.Add(1) > e.cfg.MaxConcurrent+e.cfg.QueueSize {
		e.pending.Add(-1)
		return ErrBulkheadRejected
	}
	defer e.pending.Add(-1)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return fn(ctx)
}

func (e *Envelope) deadlineError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
