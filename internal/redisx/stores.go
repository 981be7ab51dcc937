package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// Idempotency implements orders.IdempotencyStore.
type Idempotency struct{ Redis *redis.Client }

var _ orders.IdempotencyStore = (*Idempotency)(nil)

// Claim sets the key to a pending marker with a short TTL, so a crashed
// request frees it without help.
func (s *Idempotency) Claim(ctx context.Context, key string) (bool, string, error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, key)
	ok, err := s.Redis.SetNX(ctx, k, idemPending, TTLIdempotencyPending).Result()
	if err != nil || ok {
		return ok, "", err
	}
	v, err := s.Redis.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// released between SetNX and Get; report it as still in progress
		return false, "", nil
	case err != nil:
		return false, "", err
	case v == idemPending:
		return false, "", nil
	}
	return false, v, nil
}

func (s *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	return s.Redis.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}

// releasePending deletes the key only while it still holds the pending marker.
var releasePending = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *Idempotency) Release(ctx context.Context, key string) error {
	return releasePending.Run(ctx, s.Redis, []string{fmt.Sprintf(KeyIdemOrderCreate, key)}, idemPending).Err()
}

// OrderCache implements orders.OrderCache with JSON values.
type OrderCache struct{ Redis *redis.Client }

var _ orders.OrderCache = (*OrderCache)(nil)

func (c *OrderCache) Get(ctx context.Context, id string) (orders.Order, bool, error) {
	b, err := c.Redis.Get(ctx, fmt.Sprintf(KeyOrder, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.Order{}, false, nil
	}
	if err != nil {
		return orders.Order{}, false, err
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return orders.Order{}, false, fmt.Errorf("decode cached order %s: %w", id, err)
	}
	return o, true, nil
}

func (c *OrderCache) Put(ctx context.Context, o orders.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache).Err()
}

func (c *OrderCache) Evict(ctx context.Context, id string) error {
	return c.Redis.Del(ctx, fmt.Sprintf(KeyOrder, id)).Err()
}

// Revocations implements auth.RevocationList over the auth service's blacklist keys.
type Revocations struct{ Redis *redis.Client }

func (r *Revocations) Revoked(ctx context.Context, token string) (bool, error) {
	return Exists(ctx, r.Redis, fmt.Sprintf(KeyRevokedToken, token))
}

// Dedup marks event ids as processed for one consumer.
type Dedup struct {
	Redis   *redis.Client
	Service string
}

// FirstSeen returns true exactly once per event id within TTLDedup.
func (d *Dedup) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return d.Redis.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup).Result()
}

// Forget lets a failed event be processed again on redelivery.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.Redis.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}
