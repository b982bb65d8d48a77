// Package worker glues the message source to the analysis pipeline: raw
// messages accumulate into batches, each flush runs the pipeline, and
// fresh summaries fan out to the results queue and the optional sheet
// export.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spendscan/internal/amqp"
	"spendscan/internal/core"
	"spendscan/internal/log"
	"spendscan/internal/pipeline"
	"spendscan/internal/sheets"
)

// ResultPublisher announces completed runs downstream.
type ResultPublisher interface {
	PublishRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error
}

// Options configures an AnalysisWorker.
type Options struct {
	// RuleSet is the categorization snapshot used for every run.
	RuleSet []core.CategoryRule

	// BatchSize triggers a flush once this many messages are buffered.
	BatchSize int

	// Publisher, Summary and Categories are optional fan-out targets.
	Publisher  ResultPublisher
	Summary    sheets.SummaryWriter
	Categories sheets.CategoryWriter

	Logger *log.Logger
}

// AnalysisWorker buffers incoming raw messages and runs the analysis
// pipeline one batch at a time.
type AnalysisWorker struct {
	runner     *pipeline.Runner
	ruleSet    []core.CategoryRule
	batchSize  int
	publisher  ResultPublisher
	summary    sheets.SummaryWriter
	categories sheets.CategoryWriter
	logger     *log.Logger

	mu       sync.Mutex
	pending  []core.RawMessage
	buffered map[int64]bool
}

func NewAnalysisWorker(runner *pipeline.Runner, opts Options) *AnalysisWorker {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	}
	return &AnalysisWorker{
		runner:     runner,
		ruleSet:    opts.RuleSet,
		batchSize:  opts.BatchSize,
		publisher:  opts.Publisher,
		summary:    opts.Summary,
		categories: opts.Categories,
		logger:     logger,
		buffered:   make(map[int64]bool),
	}
}

// Handler returns the AMQP delivery handler. Each message is buffered;
// a full buffer flushes synchronously so a failed run keeps the
// delivery unacked and requeued. A redelivery of a message that is
// still buffered (its flush failed) is dropped, not buffered twice.
func (w *AnalysisWorker) Handler(ctx context.Context) func(*amqp.RawMessageEnvelope) error {
	return func(envelope *amqp.RawMessageEnvelope) error {
		flush := false
		w.mu.Lock()
		if w.buffered[envelope.ID] {
			w.mu.Unlock()
			w.logger.DebugContext(ctx, "Dropping redelivery of buffered message",
				log.FieldMessageID, envelope.ID)
			return nil
		}
		w.pending = append(w.pending, envelope.ToRawMessage())
		w.buffered[envelope.ID] = true
		if len(w.pending) >= w.batchSize {
			flush = true
		}
		w.mu.Unlock()

		w.logger.DebugContext(ctx, "Buffered raw message", log.FieldMessageID, envelope.ID)

		if flush {
			return w.FlushPending(ctx)
		}
		return nil
	}
}

// FlushPending runs the pipeline over the buffered messages. On failure
// the batch goes back into the buffer so the next flush retries it.
func (w *AnalysisWorker) FlushPending(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	result, err := w.runner.Run(ctx, batch, w.ruleSet)
	if err != nil {
		// The batch stays buffered (and its IDs marked) for the next
		// flush attempt.
		w.mu.Lock()
		w.pending = append(batch, w.pending...)
		w.mu.Unlock()
		return fmt.Errorf("analysis run over %d messages: %w", len(batch), err)
	}

	w.mu.Lock()
	for _, msg := range batch {
		delete(w.buffered, msg.ID)
	}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Flushed batch",
		log.FieldBatchSize, len(batch),
		log.FieldNewlyProcessed, result.NewlyProcessed,
		log.FieldTransactions, len(result.Transactions))

	w.fanOut(ctx, result)
	return nil
}

// fanOut delivers run results to the configured targets. Export
// failures are logged, not returned: the run itself succeeded and the
// cache already holds its results.
func (w *AnalysisWorker) fanOut(ctx context.Context, result *pipeline.Result) {
	if w.publisher != nil {
		msg := &amqp.RunCompletedMessage{
			RunAt:          result.Metadata.LastRunAt,
			NewlyProcessed: result.NewlyProcessed,
			Transactions:   len(result.Transactions),
			TotalSpending:  result.TotalSpending.String(),
		}
		if err := w.publisher.PublishRunCompleted(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "Failed to publish run completed event", log.FieldError, err)
		}
	}

	if w.summary != nil {
		ref, err := w.summary.WriteMonthlySummaries(ctx, result.Monthly)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to export monthly summaries", log.FieldError, err)
		} else {
			w.logger.InfoContext(ctx, "Exported monthly summaries", log.FieldSheetsRef, ref)
		}
	}

	if w.categories != nil {
		ref, err := w.categories.WriteCategoryTotals(ctx, result.ByCategory)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to export category totals", log.FieldError, err)
		} else {
			w.logger.InfoContext(ctx, "Exported category totals", log.FieldSheetsRef, ref)
		}
	}
}

// RunPeriodicFlush flushes the buffer on every tick until the context
// is cancelled. A final flush drains whatever is left on shutdown.
func (w *AnalysisWorker) RunPeriodicFlush(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := w.FlushPending(drainCtx); err != nil {
				w.logger.Error("Final flush failed", log.FieldError, err)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := w.FlushPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic flush failed", log.FieldError, err)
			}
		}
	}
}

// PendingCount reports how many messages are buffered.
func (w *AnalysisWorker) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
