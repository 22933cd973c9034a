// Package quota is the usage ledger: per-identity admission counters with a
// fixed expiry window anchored to first use.
package quota

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lamnguyen-dev/chat-dispatch/internal/models"
	"github.com/lamnguyen-dev/chat-dispatch/internal/pool"
)

// GuestKey namespaces a guest counter by caller IP.
func GuestKey(ip string) string {
	return fmt.Sprintf("quota:guest:%s", ip)
}

// TenantKey namespaces a tenant counter by account id. Guest and tenant
// limits are independent.
func TenantKey(userID int64) string {
	return fmt.Sprintf("quota:tenant:%d", userID)
}

type Ledger struct {
	pool *pool.Pool
}

func NewLedger(p *pool.Pool) *Ledger {
	return &Ledger{pool: p}
}

// Track counts one request against the identity key and decides admission.
// The counter lives on a sticky backend so one identity never splits state
// across the pool. INCR plus EXPIRE NX keeps the increment atomic and the
// window anchored to the first request: repeated tracking never extends the
// expiry. A counter backend failure admits the request — quota is an
// availability feature, not a correctness gate.
func (l *Ledger) Track(ctx context.Context, key string, limit int, window time.Duration) *models.QuotaDecision {
	backend := l.pool.SelectByKey(key)

	count, err := backend.Client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("quota backend %s unreachable, admitting %s: %v", backend.Addr, key, err)
		return &models.QuotaDecision{Admitted: true, Remaining: limit - 1, Limit: limit, ResetAt: time.Now().Add(window)}
	}

	// Only the first increment of a window sets the expiry.
	if err := backend.Client.ExpireNX(ctx, key, window).Err(); err != nil {
		log.Printf("quota expire for %s failed: %v", key, err)
	}

	resetAt := l.resetAt(ctx, backend, key, window)

	if count > int64(limit) {
		return &models.QuotaDecision{Admitted: false, Remaining: 0, Limit: limit, ResetAt: resetAt}
	}

	return &models.QuotaDecision{
		Admitted:  true,
		Remaining: limit - int(count),
		Limit:     limit,
		ResetAt:   resetAt,
	}
}

// Status reads the current window without consuming quota. An identity that
// has not started a window reports the full limit and a zero ResetAt.
func (l *Ledger) Status(ctx context.Context, key string, limit int, window time.Duration) *models.QuotaDecision {
	backend := l.pool.SelectByKey(key)

	count, err := backend.Client.Get(ctx, key).Int64()
	if err != nil {
		// redis.Nil and unreachable both degrade to "window not started".
		return &models.QuotaDecision{Admitted: true, Remaining: limit, Limit: limit}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &models.QuotaDecision{
		Admitted:  remaining > 0,
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   l.resetAt(ctx, backend, key, window),
	}
}

// Reset is the administrative escape hatch: it drops the identity's current
// window so the next request starts a fresh one.
func (l *Ledger) Reset(ctx context.Context, key string) error {
	backend := l.pool.SelectByKey(key)
	return backend.Client.Del(ctx, key).Err()
}

func (l *Ledger) resetAt(ctx context.Context, backend *pool.Backend, key string, window time.Duration) time.Time {
	ttl, err := backend.Client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return time.Now().Add(window)
	}
	return time.Now().Add(ttl)
}
