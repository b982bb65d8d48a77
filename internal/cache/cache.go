// Package cache defines the incremental classification cache: persisted
// per-message classification results that let a run reprocess only new
// or stale messages instead of the full history.
package cache

import (
	"context"
	"errors"
	"time"

	"spendscan/internal/core"
)

var (
	// ErrNotFound is returned by operations addressing a message id
	// that has no cache entry.
	ErrNotFound = errors.New("cache entry not found")
)

// Store persists cache entries keyed by message id, plus the singleton
// analysis metadata record.
//
// Entries are valid indefinitely once written; there is no TTL. StaleIDs
// exposes entries whose ProcessedAt predates a cutoff for opportunistic
// refresh, but an absent refresh is not an error. Upsert is
// last-write-wins per message id and atomic per batch: readers observe
// either the whole batch or none of it, and a failed batch must be
// retried as a unit.
type Store interface {
	// Upsert writes the batch atomically. Every entry must satisfy
	// core.CacheEntry.Validate; one invalid entry rejects the batch.
	Upsert(ctx context.Context, entries []core.CacheEntry) error

	// Get returns the entry for messageID, or ErrNotFound.
	Get(ctx context.Context, messageID int64) (core.CacheEntry, error)

	// TransactionsSince returns entries that classified as transactions
	// with a message timestamp at or after since, ordered by message id.
	TransactionsSince(ctx context.Context, since time.Time) ([]core.CacheEntry, error)

	// StaleIDs returns ids of entries processed before cutoff.
	StaleIDs(ctx context.Context, cutoff time.Time) ([]int64, error)

	// MarkExcluded flags the entry's transaction as excluded from
	// aggregation. Returns ErrNotFound for unknown ids.
	MarkExcluded(ctx context.Context, messageID int64) error

	// Metadata returns the analysis metadata, or ErrNotFound before the
	// first run.
	Metadata(ctx context.Context) (core.AnalysisMetadata, error)

	// SaveMetadata supersedes the metadata record wholesale.
	SaveMetadata(ctx context.Context, meta core.AnalysisMetadata) error

	Close() error
}

func validateBatch(entries []core.CacheEntry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}
