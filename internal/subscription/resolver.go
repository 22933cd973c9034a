// Package subscription reconciles a tenant's entitlement tier against the
// partition that owns its record.
package subscription

import (
	"context"
	"log"
	"time"

	"github.com/lamnguyen-dev/chat-dispatch/internal/models"
	"github.com/lamnguyen-dev/chat-dispatch/internal/shard"
)

type Resolver struct {
	locator *shard.Locator
}

func NewResolver(locator *shard.Locator) *Resolver {
	return &Resolver{locator: locator}
}

// Resolve reads the tenant's tier and subscription state. A cancelled
// subscription whose expiry has passed is downgraded in place: tier drops to
// free and status flips to expired on the owning partition. This is the one
// read path that writes shard state; the write is idempotent, so racing
// resolvers converge on the same record. The downgraded view is served even
// if the compensating write fails — the write is retried by whichever
// resolve sees the stale record next.
func (r *Resolver) Resolve(ctx context.Context, identityKey string) (*models.Entitlement, error) {
	user, partitionIdx, err := r.locator.Locate(ctx, identityKey)
	if err != nil {
		return nil, err
	}

	tier := user.Tier
	status := user.SubStatus
	if status == "" {
		status = models.SubStatusNone
	}

	now := time.Now()
	if status == models.SubStatusCancelled && user.SubExpires != nil && user.SubExpires.Before(now) {
		if err := r.locator.Partition(partitionIdx).ExpireSubscription(ctx, user.ID); err != nil {
			log.Printf("subscription downgrade write failed for user %d: %v", user.ID, err)
		}
		tier = models.TierFree
		status = models.SubStatusExpired
	}

	return &models.Entitlement{
		Tier:          tier,
		Status:        status,
		ExpiresAt:     user.SubExpires,
		DaysRemaining: daysRemaining(user.SubExpires, now),
	}, nil
}

func daysRemaining(expires *time.Time, now time.Time) int {
	if expires == nil || !expires.After(now) {
		return 0
	}
	return int(expires.Sub(now).Hours() / 24)
}
