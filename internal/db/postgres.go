package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Partition is one independent postgres instance holding a subset of user
// records. Partitions are provisioned at process start and never created or
// destroyed at runtime.
type Partition struct {
	Index int
	Pool  *pgxpool.Pool
}

func NewPartition(index int, databaseURL string) (*Partition, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("partition %d: %w", index, err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("partition %d: %w", index, err)
	}

	return &Partition{Index: index, Pool: pool}, nil
}

// OpenAll builds the partition list in configuration order. Pool creation is
// lazy in pgx, so a partition that is down at startup still gets a handle and
// is probed (and skipped) per request.
func OpenAll(databaseURLs []string) ([]*Partition, error) {
	partitions := make([]*Partition, 0, len(databaseURLs))
	for i, url := range databaseURLs {
		p, err := NewPartition(i, url)
		if err != nil {
			return nil, err
		}
		partitions = append(partitions, p)
	}
	return partitions, nil
}

func (p *Partition) Close() {
	p.Pool.Close()
}
