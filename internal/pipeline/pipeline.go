// Package pipeline orchestrates one analysis run: raw messages are
// classified (in parallel), results land in the incremental cache as an
// atomic batch, and summaries are recomputed fresh from the cached
// transaction set.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"spendscan/internal/aggregate"
	"spendscan/internal/cache"
	"spendscan/internal/classify"
	"spendscan/internal/core"
	"spendscan/internal/rules"
)

const (
	defaultWorkers       = 4
	defaultUpsertRetries = 3
)

// Uncategorized is the breakdown bucket for transactions no rule claims.
var Uncategorized = core.Custom("Uncategorized")

// Options configures a Runner.
type Options struct {
	// Classifier options, including the OTP gate policy flag.
	Classifier classify.Options

	// Location fixes the calendar used for day grouping. Defaults to UTC.
	Location *time.Location

	// Workers bounds the classification fan-out. Defaults to 4.
	Workers int

	// UpsertRetries is how many times a failed cache batch is retried
	// as a unit. Defaults to 3.
	UpsertRetries int

	// ReprocessBefore, when non-zero, forces entries processed before
	// the cutoff through classification again (opportunistic refresh).
	ReprocessBefore time.Time
}

// Result is everything a run hands to the summary consumer: plain
// serializable values, no behavior.
type Result struct {
	NewlyProcessed int
	Transactions   []core.Transaction
	Daily          []core.DailySummary
	Monthly        []core.MonthlySummary
	Yearly         []core.YearlySummary
	TotalSpending  decimal.Decimal
	AverageDaily   decimal.Decimal
	AverageMonthly decimal.Decimal
	ByCategory     []core.CategoryTotal
	Metadata       core.AnalysisMetadata
}

// Runner executes analysis runs against one cache store. A run is a
// batch computation: it may be aborted between batches without
// corrupting cache state, because summaries are always recomputed from
// whatever transactions exist at call time.
type Runner struct {
	classifier *classify.Classifier
	engine     *rules.Engine
	store      cache.Store
	spending   *aggregate.Engine
	workers    int
	retries    int
	refresh    time.Time

	now func() time.Time
}

func NewRunner(store cache.Store, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.UpsertRetries <= 0 {
		opts.UpsertRetries = defaultUpsertRetries
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		classifier: classify.New(opts.Classifier),
		engine:     rules.NewEngine(),
		store:      store,
		spending:   aggregate.NewEngine(loc, core.Debit),
		workers:    opts.Workers,
		retries:    opts.UpsertRetries,
		refresh:    opts.ReprocessBefore,
		now:        time.Now,
	}
}

// Run processes a snapshot of raw messages and returns fresh summaries.
// ruleSet is treated as a read-only snapshot for this run. Messages
// already cached are skipped unless stale under ReprocessBefore.
func (r *Runner) Run(ctx context.Context, msgs []core.RawMessage, ruleSet []core.CategoryRule) (*Result, error) {
	pending, err := r.selectPending(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("select pending messages: %w", err)
	}

	entries, err := r.classifyAll(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("classify batch: %w", err)
	}

	if len(entries) > 0 {
		if err := r.upsertWithRetry(ctx, entries); err != nil {
			return nil, fmt.Errorf("persist batch: %w", err)
		}
	}

	if err := r.supersedeMetadata(ctx, msgs, len(pending)); err != nil {
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	result, err := r.summarize(ctx, ruleSet)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	result.NewlyProcessed = len(pending)

	slog.InfoContext(ctx, "Analysis run complete",
		"messages", len(msgs),
		"newly_processed", len(pending),
		"transactions", len(result.Transactions))
	return result, nil
}

// selectPending keeps messages with no cache entry, plus cached entries
// stale under the refresh cutoff. Input order is preserved.
func (r *Runner) selectPending(ctx context.Context, msgs []core.RawMessage) ([]core.RawMessage, error) {
	stale := make(map[int64]bool)
	if !r.refresh.IsZero() {
		ids, err := r.store.StaleIDs(ctx, r.refresh)
		if err != nil {
			return nil, fmt.Errorf("stale ids: %w", err)
		}
		for _, id := range ids {
			stale[id] = true
		}
	}

	var pending []core.RawMessage
	for _, msg := range msgs {
		if stale[msg.ID] {
			pending = append(pending, msg)
			continue
		}
		_, err := r.store.Get(ctx, msg.ID)
		if errors.Is(err, cache.ErrNotFound) {
			pending = append(pending, msg)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cache lookup %d: %w", msg.ID, err)
		}
	}
	return pending, nil
}

// classifyAll fans classification out across workers. Each message is
// independent; results are collected by input position so the produced
// batch is deterministic regardless of scheduling.
func (r *Runner) classifyAll(ctx context.Context, msgs []core.RawMessage) ([]core.CacheEntry, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	processedAt := r.now()
	entries := make([]core.CacheEntry, len(msgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, msg := range msgs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			entries[i] = toEntry(msg, r.classifier.Classify(msg), processedAt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func toEntry(msg core.RawMessage, tx *core.Transaction, processedAt time.Time) core.CacheEntry {
	entry := core.CacheEntry{
		MessageID:   msg.ID,
		Body:        msg.Body,
		Sender:      msg.Sender,
		Timestamp:   msg.Time(),
		ProcessedAt: processedAt,
	}
	if tx != nil {
		entry.HasTransaction = true
		entry.Amount = tx.Amount
		entry.Direction = tx.Direction
		entry.Description = tx.Description
	}
	return entry
}

// upsertWithRetry retries the whole batch; partial application is a
// store bug, not a state this layer recovers from.
func (r *Runner) upsertWithRetry(ctx context.Context, entries []core.CacheEntry) error {
	var err error
	for attempt := 1; attempt <= r.retries; attempt++ {
		if err = r.store.Upsert(ctx, entries); err == nil {
			return nil
		}
		slog.WarnContext(ctx, "Cache batch upsert failed",
			"attempt", attempt, "entries", len(entries), "error", err)
	}
	return fmt.Errorf("upsert batch after %d attempts: %w", r.retries, err)
}

// supersedeMetadata replaces the analysis metadata wholesale.
func (r *Runner) supersedeMetadata(ctx context.Context, msgs []core.RawMessage, processed int) error {
	previous, err := r.store.Metadata(ctx)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return err
	}

	meta := core.AnalysisMetadata{
		LastProcessedID:        previous.LastProcessedID,
		LastProcessedTimestamp: previous.LastProcessedTimestamp,
		TotalProcessed:         previous.TotalProcessed + int64(processed),
		LastRunAt:              r.now(),
	}
	for _, msg := range msgs {
		if msg.ID > meta.LastProcessedID {
			meta.LastProcessedID = msg.ID
		}
		if t := msg.Time(); t.After(meta.LastProcessedTimestamp) {
			meta.LastProcessedTimestamp = t
		}
	}
	return r.store.SaveMetadata(ctx, meta)
}

// summarize recomputes every view from the full cached transaction set.
func (r *Runner) summarize(ctx context.Context, ruleSet []core.CategoryRule) (*Result, error) {
	cached, err := r.store.TransactionsSince(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("load cached transactions: %w", err)
	}

	txs := make([]core.Transaction, 0, len(cached))
	bodies := make(map[int64]string, len(cached))
	for _, entry := range cached {
		tx, ok := entry.Transaction()
		if !ok {
			continue
		}
		txs = append(txs, tx)
		bodies[entry.MessageID] = entry.Body
	}

	categorize := func(tx core.Transaction) core.Category {
		match := r.engine.Categorize(tx, ruleSet, bodies[tx.SourceMessageID])
		if match == nil {
			return Uncategorized
		}
		return core.ParseCategory(match.Rule.Category)
	}

	daily := r.spending.DailySummaries(txs)
	monthly := r.spending.MonthlySummaries(daily)
	yearly := r.spending.YearlySummaries(monthly)

	meta, err := r.store.Metadata(ctx)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	return &Result{
		Transactions:   txs,
		Daily:          daily,
		Monthly:        monthly,
		Yearly:         yearly,
		TotalSpending:  r.spending.TotalSpending(txs),
		AverageDaily:   aggregate.AverageDaily(daily),
		AverageMonthly: aggregate.AverageMonthly(monthly),
		ByCategory:     r.spending.ByCategory(txs, categorize),
		Metadata:       meta,
	}, nil
}
