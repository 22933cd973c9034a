// Package shard locates an identity record among independently-provisioned
// database partitions.
package shard

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lamnguyen-dev/chat-dispatch/internal/models"
)

// ErrNotFound is returned when no partition holds the identity. Partition
// stores return it for a clean miss; any other error from a store is treated
// as an unreachable partition.
var ErrNotFound = errors.New("identity not found in any partition")

// Store is one partition's point-lookup surface. Implemented by internal/db
// over postgres and by fakes in tests.
type Store interface {
	GetUserByKey(ctx context.Context, identityKey string) (*models.User, error)
	ExpireSubscription(ctx context.Context, userID int64) error
}

const defaultProbeTimeout = 2 * time.Second

// Locator probes partitions in fixed index order and returns the first hit.
// Partitions have no cross-partition health signal, so an unreachable one is
// simply skipped: a record that happens to live there reads as absent until
// the partition comes back.
type Locator struct {
	partitions   []Store
	probeTimeout time.Duration
}

func NewLocator(partitions []Store) *Locator {
	return &Locator{partitions: partitions, probeTimeout: defaultProbeTimeout}
}

// Locate returns the record and the index of the owning partition.
// First-found wins: if a record is inconsistently duplicated the
// lowest-indexed copy is the one served, deterministically.
func (l *Locator) Locate(ctx context.Context, identityKey string) (*models.User, int, error) {
	for i, p := range l.partitions {
		probeCtx, cancel := context.WithTimeout(ctx, l.probeTimeout)
		user, err := p.GetUserByKey(probeCtx, identityKey)
		cancel()

		if err == nil {
			return user, i, nil
		}
		if !errors.Is(err, ErrNotFound) {
			// Unreachable partition is a miss, not an error.
			log.Printf("partition %d probe failed for lookup: %v", i, err)
		}
	}
	return nil, -1, ErrNotFound
}

// Partition returns the store at index i, for callers that need to write
// back to the partition that owned a record.
func (l *Locator) Partition(i int) Store {
	return l.partitions[i]
}

func (l *Locator) Size() int {
	return len(l.partitions)
}
