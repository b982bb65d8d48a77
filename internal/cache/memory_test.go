package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
)

func entry(id int64, ts time.Time, hasTx bool) core.CacheEntry {
	e := core.CacheEntry{
		MessageID:   id,
		Timestamp:   ts,
		ProcessedAt: time.Now(),
	}
	if hasTx {
		e.HasTransaction = true
		e.Amount = decimal.NewFromInt(id * 10)
		e.Direction = core.Debit
	}
	return e
}

func TestMemoryStoreUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.Upsert(ctx, []core.CacheEntry{entry(1, ts, true), entry(2, ts, false)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasTransaction || !got.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected entry %+v", got)
	}

	if _, err := s.Get(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first := entry(1, ts, true)
	if err := s.Upsert(ctx, []core.CacheEntry{first}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := first
	second.Amount = decimal.NewFromInt(777)
	if err := s.Upsert(ctx, []core.CacheEntry{second}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(777)) {
		t.Fatalf("amount = %s, want last write 777", got.Amount)
	}
}

func TestMemoryStoreInvalidEntryRejectsBatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	bad := core.CacheEntry{MessageID: 2, Amount: decimal.NewFromInt(5)} // amount without transaction
	err := s.Upsert(ctx, []core.CacheEntry{entry(1, ts, true), bad})
	if err == nil {
		t.Fatal("expected batch rejection")
	}

	// Nothing from the batch may be visible.
	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("partial batch applied: %v", err)
	}
}

func TestMemoryStoreTransactionsSince(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	batch := []core.CacheEntry{
		entry(3, base.Add(48*time.Hour), true),
		entry(1, base, true),
		entry(2, base.Add(24*time.Hour), false), // not a transaction
		entry(4, base.Add(-24*time.Hour), true), // before the cutoff
	}
	if err := s.Upsert(ctx, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.TransactionsSince(ctx, base)
	if err != nil {
		t.Fatalf("transactionsSince: %v", err)
	}
	if len(got) != 2 || got[0].MessageID != 1 || got[1].MessageID != 3 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestMemoryStoreStaleIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	old := entry(1, ts, false)
	old.ProcessedAt = ts
	fresh := entry(2, ts, false)
	fresh.ProcessedAt = ts.Add(72 * time.Hour)

	if err := s.Upsert(ctx, []core.CacheEntry{old, fresh}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ids, err := s.StaleIDs(ctx, ts.Add(time.Hour))
	if err != nil {
		t.Fatalf("staleIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("staleIDs = %v, want [1]", ids)
	}
}

func TestMemoryStoreMarkExcluded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Upsert(ctx, []core.CacheEntry{entry(1, ts, true)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.MarkExcluded(ctx, 1); err != nil {
		t.Fatalf("markExcluded: %v", err)
	}

	got, _ := s.Get(ctx, 1)
	if !got.Excluded {
		t.Fatal("entry should be excluded")
	}

	if err := s.MarkExcluded(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreMetadataSupersede(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Metadata(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("before first run: got %v, want ErrNotFound", err)
	}

	first := core.AnalysisMetadata{LastProcessedID: 10, TotalProcessed: 10}
	if err := s.SaveMetadata(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := core.AnalysisMetadata{LastProcessedID: 25, TotalProcessed: 25}
	if err := s.SaveMetadata(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Metadata(ctx)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if got.LastProcessedID != 25 || got.TotalProcessed != 25 {
		t.Fatalf("metadata not superseded wholesale: %+v", got)
	}
}

func TestMemoryStoreConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			batch := make([]core.CacheEntry, 0, 50)
			for i := int64(0); i < 50; i++ {
				batch = append(batch, entry(i, ts, true))
			}
			if err := s.Upsert(ctx, batch); err != nil {
				t.Errorf("worker %d: %v", w, err)
			}
		}(w)
	}
	wg.Wait()

	got, err := s.TransactionsSince(ctx, time.Time{})
	if err != nil {
		t.Fatalf("transactionsSince: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("got %d entries, want 50", len(got))
	}
}
