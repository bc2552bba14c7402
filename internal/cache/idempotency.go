package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idempotency:ticket:"
	pendingMarker        = "pending"
)

// ErrRequestInFlight is returned when another request holds the same key.
var ErrRequestInFlight = errors.New("request with this idempotency key is in flight")

// IdempotencyStore remembers which ticket a submission key produced.
type IdempotencyStore interface {
	// Reserve claims key. When the key already completed, ticketID is the
	// ticket it created and reserved is false.
	Reserve(ctx context.Context, key string) (ticketID string, reserved bool, err error)
	Complete(ctx context.Context, key, ticketID string) error
	Release(ctx context.Context, key string) error
}

type redisIdempotencyStore struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewRedisIdempotencyStore returns nil when client is nil. A completed key
// lives for ttl; a reservation whose request never finished expires after
// pendingTTL.
func NewRedisIdempotencyStore(client *redis.Client, ttl, pendingTTL time.Duration) IdempotencyStore {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if pendingTTL <= 0 || pendingTTL > ttl {
		pendingTTL = time.Minute
	}
	return &redisIdempotencyStore{client: client, ttl: ttl, pendingTTL: pendingTTL}
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string) (string, bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, pendingMarker, s.pendingTTL).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	existing, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = s.client.SetNX(ctx, idempotencyKeyPrefix+key, pendingMarker, s.pendingTTL).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return "", true, nil
		}
		return "", false, ErrRequestInFlight
	}
	if err != nil {
		return "", false, err
	}
	if existing == pendingMarker {
		return "", false, ErrRequestInFlight
	}
	return existing, false, nil
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, key, ticketID string) error {
	return s.client.Set(ctx, idempotencyKeyPrefix+key, ticketID, s.ttl).Err()
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
