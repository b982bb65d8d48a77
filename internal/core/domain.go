package core

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// DirectionHint is the direction suggested by the message source
	// (e.g. an inbox folder), before the body has been inspected.
	DirectionHint string

	// Direction is the resolved money flow of a classified transaction.
	Direction string

	// RawMessage is one record supplied by the message source. Immutable;
	// the core only borrows it for the duration of a run.
	RawMessage struct {
		ID              int64
		Body            string
		Sender          string
		TimestampMillis int64
		Hint            DirectionHint
	}

	// Transaction is a structured financial event extracted from a raw
	// message. Created only by the classifier; never mutated afterwards
	// except for the Excluded flag set by an external moderation action.
	Transaction struct {
		ID              int64
		Amount          decimal.Decimal
		Direction       Direction
		Description     string
		Timestamp       time.Time
		SourceMessageID int64
		Sender          string
		Excluded        bool
	}

	// CategoryRule is one user-defined categorization rule. Owned by the
	// rule store and read-only to the core.
	CategoryRule struct {
		ID             int64
		Name           string
		Keywords       []string
		SenderPatterns []string
		MinAmount      *decimal.Decimal
		MaxAmount      *decimal.Decimal
		Category       string
		Priority       int
		Active         bool
	}

	// CategoryMatch is the transient result of matching one rule against
	// one transaction. Never persisted by the core.
	CategoryMatch struct {
		Rule        CategoryRule
		Transaction Transaction
		Confidence  float64
	}

	// CacheEntry is the persisted classification result for one message,
	// keyed uniquely by MessageID with last-write-wins upsert semantics.
	CacheEntry struct {
		MessageID      int64
		Body           string
		Sender         string
		Timestamp      time.Time
		HasTransaction bool
		Amount         decimal.Decimal
		Direction      Direction
		Description    string
		ProcessedAt    time.Time
		Excluded       bool
	}

	// AnalysisMetadata bounds incremental reprocessing. It is superseded
	// wholesale on each successful run, never partially patched.
	AnalysisMetadata struct {
		LastProcessedID        int64
		LastProcessedTimestamp time.Time
		TotalProcessed         int64
		LastRunAt              time.Time
	}
)

const (
	HintUnknown  DirectionHint = "unknown"
	HintInbound  DirectionHint = "inbound"
	HintOutbound DirectionHint = "outbound"

	Debit  Direction = "debit"
	Credit Direction = "credit"
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrEmptyRuleName    = errors.New("empty rule name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrNoCriteria       = errors.New("rule has no criteria")
	ErrPhantomAmount    = errors.New("cache entry without transaction carries amount")
)

// Time converts the source epoch-millisecond timestamp.
func (m RawMessage) Time() time.Time {
	return time.UnixMilli(m.TimestampMillis)
}

func (d Direction) Valid() bool {
	return d == Debit || d == Credit
}

func (t Transaction) Validate() error {
	if !t.Direction.Valid() {
		return ErrInvalidDirection
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (r CategoryRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyRuleName
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if len(r.Keywords) == 0 && len(r.SenderPatterns) == 0 && r.MinAmount == nil && r.MaxAmount == nil {
		return ErrNoCriteria
	}
	return nil
}

// Validate enforces the cache invariant: an entry that classified as
// "no transaction" never carries an amount or direction.
func (e CacheEntry) Validate() error {
	if !e.HasTransaction && (!e.Amount.IsZero() || e.Direction != "") {
		return ErrPhantomAmount
	}
	if e.HasTransaction && !e.Direction.Valid() {
		return ErrInvalidDirection
	}
	return nil
}

// Transaction rebuilds the classified transaction from a cache entry.
// The second return is false for entries that did not classify.
func (e CacheEntry) Transaction() (Transaction, bool) {
	if !e.HasTransaction {
		return Transaction{}, false
	}
	return Transaction{
		ID:              e.MessageID,
		Amount:          e.Amount,
		Direction:       e.Direction,
		Description:     e.Description,
		Timestamp:       e.Timestamp,
		SourceMessageID: e.MessageID,
		Sender:          e.Sender,
		Excluded:        e.Excluded,
	}, true
}

// SortRules orders rules by descending priority, ties broken by name.
// The sort is stable so equal rules keep their store order.
func SortRules(rules []CategoryRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})
}
