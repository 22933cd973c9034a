package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lamnguyen-dev/chat-dispatch/internal/models"
	"github.com/lamnguyen-dev/chat-dispatch/internal/shard"
)

// GetUserByKey is the point lookup the shard locator issues against each
// partition. A clean miss maps to shard.ErrNotFound; any other error means
// the partition was unreachable.
func (p *Partition) GetUserByKey(ctx context.Context, identityKey string) (*models.User, error) {
	query := `
        SELECT id, identity_key, name, tier, subscription_status, subscription_expires_at, created_at, updated_at
        FROM users
        WHERE identity_key = $1
    `

	var user models.User
	err := p.Pool.QueryRow(ctx, query, identityKey).Scan(
		&user.ID,
		&user.IdentityKey,
		&user.Name,
		&user.Tier,
		&user.SubStatus,
		&user.SubExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shard.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ExpireSubscription downgrades a lapsed cancelled subscription to the free
// tier. The status guard makes it idempotent: re-running against an already
// expired record matches zero rows.
func (p *Partition) ExpireSubscription(ctx context.Context, userID int64) error {
	query := `
        UPDATE users
        SET tier = $2, subscription_status = $3, updated_at = NOW()
        WHERE id = $1 AND subscription_status = $4
    `

	_, err := p.Pool.Exec(ctx, query, userID, models.TierFree, models.SubStatusExpired, models.SubStatusCancelled)
	return err
}
