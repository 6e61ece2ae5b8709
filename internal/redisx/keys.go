package redisx

import "time"

const (
	// Idempotent invoice create: idem:invoice:create:{store_id}:{key} -> "pending" | invoice_id
	KeyIdemInvoiceCreate = "idem:invoice:create:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cross-instance lock: lock:{name}
	KeyLock = "lock:%s"
)

const idemPending = "pending"

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
