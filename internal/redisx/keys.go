package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{user_id}:{key} -> order_id, or
	// idemPending while the first request is running
	KeyIdemOrderCreate = "idem:order:create:%s"
	idemPending        = "pending"

	// Order read cache: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Revoked credentials written by the auth service on logout: blacklist:{token}
	KeyRevokedToken = "blacklist:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency        = 24 * time.Hour
	TTLIdempotencyPending = time.Minute
	TTLOrderCache         = 5 * time.Minute
	TTLDedup              = 48 * time.Hour
)
