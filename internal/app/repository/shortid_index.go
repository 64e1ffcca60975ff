package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// indexCapacity sizes the filter for the expected keyspace; the filter
	// keeps working past this point, it just produces more false positives.
	indexCapacity      = 10_000_000
	indexFalsePositive = 0.001
)

// ShortIDIndex is an in-memory probabilistic index over every short id known
// to exist. It is consulted on the shorten path to discard candidate ids
// that would likely collide before paying for a database round-trip.
//
// The index is advisory: a false positive only costs one extra generation,
// and a stale entry is harmless because the conditional insert in the
// repository stays authoritative. It must never be used to answer resolve
// lookups, where a missed membership would turn into a wrong 404.
type ShortIDIndex interface {
	MayContain(shortID string) bool
	Add(shortID string)
	// Reload replaces the filter contents from the links table.
	Reload(ctx context.Context) error
}

type bloomShortIDIndex struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	pool   *pgxpool.Pool
}

// NewShortIDIndex builds an empty index that reloads itself from the given
// Postgres pool.
func NewShortIDIndex(pool *pgxpool.Pool) ShortIDIndex {
	return &bloomShortIDIndex{
		filter: bloom.NewWithEstimates(indexCapacity, indexFalsePositive),
		pool:   pool,
	}
}

func (i *bloomShortIDIndex) MayContain(shortID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.filter.TestString(shortID)
}

func (i *bloomShortIDIndex) Add(shortID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.filter.AddString(shortID)
}

func (i *bloomShortIDIndex) Reload(ctx context.Context) error {
	// Full keyspace scan through pgx directly; the ORM would allocate a
	// model.Link per row for no benefit here.
	rows, err := i.pool.Query(ctx, "SELECT short_id FROM links")
	if err != nil {
		return fmt.Errorf("shortid index: query short ids: %w", err)
	}
	defer rows.Close()

	fresh := bloom.NewWithEstimates(indexCapacity, indexFalsePositive)
	for rows.Next() {
		var shortID string
		if err := rows.Scan(&shortID); err != nil {
			return fmt.Errorf("shortid index: scan short id: %w", err)
		}
		fresh.AddString(shortID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("shortid index: iterate short ids: %w", err)
	}

	i.mu.Lock()
	i.filter = fresh
	i.mu.Unlock()
	return nil
}
