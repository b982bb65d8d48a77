// Package classify decides whether a raw message represents a financial
// transaction and extracts its structured fields.
package classify

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
)

// MaxDescriptionLen bounds the sanitized description excerpt.
const MaxDescriptionLen = 100

// Options configures the classifier.
type Options struct {
	// RequireOTP enables the stricter gate that only treats messages
	// carrying an OTP-like numeric code as transactions. Off by default:
	// genuine transaction notifications do not generally carry a
	// verification code, so the strict gate suppresses real spending.
	RequireOTP bool
}

// Classifier turns raw messages into transactions. Safe for concurrent
// use; it holds no mutable state.
type Classifier struct {
	opts Options
}

func New(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

// Classify returns the transaction extracted from msg, or nil when the
// message is not a transaction. It never returns an error: ambiguity is
// resolved by heuristic defaults, and any panic during extraction drops
// just this message so a malformed body cannot abort a batch.
func (c *Classifier) Classify(msg core.RawMessage) (tx *core.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("classification panicked, dropping message",
				"message_id", msg.ID, "panic", r)
			tx = nil
		}
	}()

	if !c.gate(msg.Body) {
		return nil
	}

	numeric, ok := extractAmount(msg.Body)
	if !ok {
		return nil
	}
	amount, err := parseAmount(numeric)
	if err != nil {
		// A parse failure on matched text means "no amount found",
		// not a classification error.
		return nil
	}

	return &core.Transaction{
		ID:              msg.ID,
		Amount:          amount,
		Direction:       resolveDirection(msg.Body, msg.Hint),
		Description:     describe(msg.Body),
		Timestamp:       msg.Time(),
		SourceMessageID: msg.ID,
		Sender:          msg.Sender,
	}
}

// gate is the cheap reject path: a message is only worth full
// classification if it carries a currency-marked amount or at least one
// debit/credit keyword.
func (c *Classifier) gate(body string) bool {
	if !currencyRe.MatchString(body) && !gateKeywordRe.MatchString(body) {
		return false
	}
	if c.opts.RequireOTP && !otpRe.MatchString(body) {
		return false
	}
	return true
}

// extractAmount runs the ordered pattern chain and returns the captured
// numeric text of the first pattern that matches.
func extractAmount(body string) (string, bool) {
	for _, p := range amountPatterns {
		if m := p.re.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func parseAmount(numeric string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(numeric, ",", ""))
}

// resolveDirection is a majority vote over debit and credit keywords,
// with DEBIT winning ties. When the body carries no direction keyword at
// all, the source's direction hint breaks the 0-0 tie before the debit
// default applies.
func resolveDirection(body string, hint core.DirectionHint) core.Direction {
	debits := len(debitWordRe.FindAllString(body, -1))
	credits := len(creditWordRe.FindAllString(body, -1))

	if debits == 0 && credits == 0 {
		switch hint {
		case core.HintInbound:
			return core.Credit
		case core.HintOutbound:
			return core.Debit
		}
	}
	if credits > debits {
		return core.Credit
	}
	return core.Debit
}

// describe strips currency amounts and direction keywords from the
// body, collapses whitespace and truncates to MaxDescriptionLen runes.
func describe(body string) string {
	s := currencyRe.ReplaceAllString(body, " ")
	s = directionWordRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > MaxDescriptionLen {
		// The ellipsis marker counts against the limit.
		s = strings.TrimSpace(string(runes[:MaxDescriptionLen-1])) + "…"
	}
	return s
}
