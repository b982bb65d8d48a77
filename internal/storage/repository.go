// Package storage is the sqlite-backed cache store: one row per message
// classification result plus the singleton analysis metadata record.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"spendscan/internal/cache"
	"spendscan/internal/core"
)

// SQLiteStore implements cache.Store on a local sqlite database.
// Amounts are stored as decimal strings, never floats, so values round
// trip exactly.
type SQLiteStore struct {
	db *sql.DB
}

var _ cache.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Upsert writes the batch inside a single transaction: either every
// entry becomes visible or none does. A failed batch can be retried as
// a unit without partial application.
func (s *SQLiteStore) Upsert(ctx context.Context, entries []core.CacheEntry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("validate entry %d: %w", e.MessageID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cache_entries
			(message_id, body, sender, timestamp_ms, has_transaction,
			 amount, direction, description, processed_at_ms, excluded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			body            = excluded.body,
			sender          = excluded.sender,
			timestamp_ms    = excluded.timestamp_ms,
			has_transaction = excluded.has_transaction,
			amount          = excluded.amount,
			direction       = excluded.direction,
			description     = excluded.description,
			processed_at_ms = excluded.processed_at_ms,
			excluded        = excluded.excluded`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var amount, direction sql.NullString
		if e.HasTransaction {
			amount = sql.NullString{String: e.Amount.String(), Valid: true}
			direction = sql.NullString{String: string(e.Direction), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			e.MessageID, e.Body, e.Sender, e.Timestamp.UnixMilli(),
			boolToInt(e.HasTransaction), amount, direction, e.Description,
			e.ProcessedAt.UnixMilli(), boolToInt(e.Excluded))
		if err != nil {
			return fmt.Errorf("upsert entry %d: %w", e.MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	slog.DebugContext(ctx, "Cache batch upserted", "entries", len(entries))
	return nil
}

const entryColumns = `message_id, body, sender, timestamp_ms, has_transaction,
	amount, direction, description, processed_at_ms, excluded`

func (s *SQLiteStore) Get(ctx context.Context, messageID int64) (core.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM cache_entries WHERE message_id = ?`, messageID)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CacheEntry{}, cache.ErrNotFound
	}
	if err != nil {
		return core.CacheEntry{}, fmt.Errorf("get entry %d: %w", messageID, err)
	}
	return entry, nil
}

func (s *SQLiteStore) TransactionsSince(ctx context.Context, since time.Time) ([]core.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM cache_entries
		 WHERE has_transaction = 1 AND timestamp_ms >= ?
		 ORDER BY message_id`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query transactions since: %w", err)
	}
	defer rows.Close()

	var out []core.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) StaleIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id FROM cache_entries
		 WHERE processed_at_ms < ? ORDER BY message_id`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query stale ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) MarkExcluded(ctx context.Context, messageID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET excluded = 1 WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("mark excluded %d: %w", messageID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return cache.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Metadata(ctx context.Context) (core.AnalysisMetadata, error) {
	var meta core.AnalysisMetadata
	var processedMillis, runMillis int64

	err := s.db.QueryRowContext(ctx,
		`SELECT last_processed_id, last_processed_ts_ms, total_processed, last_run_at_ms
		 FROM analysis_metadata WHERE id = 1`).
		Scan(&meta.LastProcessedID, &processedMillis, &meta.TotalProcessed, &runMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AnalysisMetadata{}, cache.ErrNotFound
	}
	if err != nil {
		return core.AnalysisMetadata{}, fmt.Errorf("get metadata: %w", err)
	}

	meta.LastProcessedTimestamp = time.UnixMilli(processedMillis)
	meta.LastRunAt = time.UnixMilli(runMillis)
	return meta, nil
}

// SaveMetadata replaces the single metadata row wholesale.
func (s *SQLiteStore) SaveMetadata(ctx context.Context, meta core.AnalysisMetadata) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_metadata
			(id, last_processed_id, last_processed_ts_ms, total_processed, last_run_at_ms)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			last_processed_id    = excluded.last_processed_id,
			last_processed_ts_ms = excluded.last_processed_ts_ms,
			total_processed      = excluded.total_processed,
			last_run_at_ms       = excluded.last_run_at_ms`,
		meta.LastProcessedID, meta.LastProcessedTimestamp.UnixMilli(),
		meta.TotalProcessed, meta.LastRunAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.CacheEntry, error) {
	var (
		e                  core.CacheEntry
		tsMillis, prMillis int64
		hasTx, excluded    int
		amount, direction  sql.NullString
	)
	err := row.Scan(&e.MessageID, &e.Body, &e.Sender, &tsMillis, &hasTx,
		&amount, &direction, &e.Description, &prMillis, &excluded)
	if err != nil {
		return core.CacheEntry{}, err
	}

	e.Timestamp = time.UnixMilli(tsMillis)
	e.ProcessedAt = time.UnixMilli(prMillis)
	e.HasTransaction = hasTx == 1
	e.Excluded = excluded == 1

	if e.HasTransaction {
		if amount.Valid {
			parsed, err := decimal.NewFromString(amount.String)
			if err != nil {
				return core.CacheEntry{}, fmt.Errorf("parse stored amount %q: %w", amount.String, err)
			}
			e.Amount = parsed
		}
		if direction.Valid {
			e.Direction = core.Direction(direction.String)
		}
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
