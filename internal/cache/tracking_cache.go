// Package cache keeps short-lived redis state in front of the ticket store:
// serialized public tracking projections and Idempotency-Key reservations for
// ticket submission.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/display-support/internal/tracking"
)

const trackingKeyPrefix = "tracking:"

// setIfCurrent stores the projection unless an invalidation already recorded a
// newer version. KEYS: projection, floor. ARGV: payload, version, ttl ms.
var setIfCurrent = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[2]) < floor then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// raiseFloor records version as the oldest acceptable projection and drops
// the cached one. KEYS: projection, floor. ARGV: version, ttl ms.
var raiseFloor = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[1]) > floor then
  redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
else
  redis.call('PEXPIRE', KEYS[2], ARGV[2])
end
redis.call('DEL', KEYS[1])
return 1
`)

// TrackingCache stores redacted projections keyed by normalised ticket number.
// Invalidate takes the ticket's history length after the change; a Set whose
// projection is older than the last invalidation is dropped.
type TrackingCache interface {
	Get(ctx context.Context, ticketNumber string) (*tracking.Projection, bool, error)
	Set(ctx context.Context, ticketNumber string, projection tracking.Projection) error
	Invalidate(ctx context.Context, ticketNumber string, version int) error
}

type redisTrackingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTrackingCache returns nil when client is nil so callers can skip caching.
func NewRedisTrackingCache(client *redis.Client, ttl time.Duration) TrackingCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisTrackingCache{client: client, ttl: ttl}
}

func (c *redisTrackingCache) Get(ctx context.Context, ticketNumber string) (*tracking.Projection, bool, error) {
	raw, err := c.client.Get(ctx, projectionKey(ticketNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var projection tracking.Projection
	if err := json.Unmarshal(raw, &projection); err != nil {
		return nil, false, err
	}
	return &projection, true, nil
}

func (c *redisTrackingCache) Set(ctx context.Context, ticketNumber string, projection tracking.Projection) error {
	raw, err := json.Marshal(projection)
	if err != nil {
		return err
	}
	keys := []string{projectionKey(ticketNumber), floorKey(ticketNumber)}
	return setIfCurrent.Run(ctx, c.client, keys, raw, projection.Version(), c.ttl.Milliseconds()).Err()
}

func (c *redisTrackingCache) Invalidate(ctx context.Context, ticketNumber string, version int) error {
	keys := []string{projectionKey(ticketNumber), floorKey(ticketNumber)}
	return raiseFloor.Run(ctx, c.client, keys, version, c.ttl.Milliseconds()).Err()
}

// Both keys share a hash tag so the scripts stay on one cluster slot.
func projectionKey(ticketNumber string) string {
	return trackingKeyPrefix + "{" + ticketNumber + "}"
}

func floorKey(ticketNumber string) string {
	return trackingKeyPrefix + "{" + ticketNumber + "}:floor"
}
