package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/redis/go-redis/v9"
)

// Idempotency guards POST /invoices against client retries. A key is first
// claimed as pending, then bound to the created invoice id.
type Idempotency struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewIdempotency(rdb redis.Cmdable, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &Idempotency{rdb: rdb, ttl: ttl}
}

func idemKey(storeID, key string) string { return fmt.Sprintf(KeyIdemInvoiceCreate, storeID, key) }

// Claim returns ("", true) when the caller owns the key, (invoiceID, false)
// when a previous request already completed, and ErrConflict while another
// request holding the key is still running.
func (i *Idempotency) Claim(ctx context.Context, storeID, key string) (string, bool, error) {
	k := idemKey(storeID, key)
	ok, err := i.rdb.SetNX(ctx, k, idemPending, i.ttl).Result()
	if err != nil {
		return "", false, apperr.Dependency("redis", err)
	}
	if ok {
		return "", true, nil
	}
	v, err := i.rdb.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between SETNX and GET
		return i.Claim(ctx, storeID, key)
	case err != nil:
		return "", false, apperr.Dependency("redis", err)
	case v == idemPending:
		return "", false, fmt.Errorf("request with idempotency key %q in progress: %w", key, apperr.ErrConflict)
	}
	return v, false, nil
}

// Complete binds the key to the invoice created under it.
func (i *Idempotency) Complete(ctx context.Context, storeID, key, invoiceID string) error {
	return i.rdb.Set(ctx, idemKey(storeID, key), invoiceID, i.ttl).Err()
}

// Release drops a claim after a failed request so the client can retry.
func (i *Idempotency) Release(ctx context.Context, storeID, key string) error {
	return i.rdb.Del(ctx, idemKey(storeID, key)).Err()
}
