package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CooldownCache is the optional Redis fast path for alert cooldown checks.
// It sits between the in-memory ring and the durable ledger: entries expire
// at the cooldown interval, so a hit means "still cooling down" without a
// database round trip. Never authoritative; a miss falls through to the
// ledger.
type CooldownCache struct {
	client   *redis.Client
	cooldown time.Duration
}

// NewCooldownCache connects to Redis. A ping failure is returned so the
// caller can run without the fast path.
func NewCooldownCache(ctx context.Context, url string, cooldown time.Duration) (*CooldownCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &CooldownCache{client: client, cooldown: cooldown}, nil
}

func cooldownKey(eventID, userID string) string {
	return "seatsniper:alert:" + eventID + ":" + userID
}

// MarkSent records a successful send; the key expires when the cooldown
// does. Errors are logged and swallowed: the cache is best-effort.
func (c *CooldownCache) MarkSent(ctx context.Context, eventID, userID string) {
	if err := c.client.Set(ctx, cooldownKey(eventID, userID), time.Now().UTC().Format(time.RFC3339), c.cooldown).Err(); err != nil {
		log.Warn().Err(err).Msg("cooldown cache write failed")
	}
}

// CoolingDown reports whether the pair was alerted within the cooldown.
// The second return is false when the cache could not answer.
func (c *CooldownCache) CoolingDown(ctx context.Context, eventID, userID string) (bool, bool) {
	err := c.client.Get(ctx, cooldownKey(eventID, userID)).Err()
	switch {
	case err == nil:
		return true, true
	case errors.Is(err, redis.Nil):
		return false, true
	default:
		log.Warn().Err(err).Msg("cooldown cache read failed")
		return false, false
	}
}

// Close releases the connection.
func (c *CooldownCache) Close() error {
	return c.client.Close()
}
