// Package rules matches classified transactions against user-defined
// category rules, producing a best category with a confidence score.
package rules

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
)

// MinConfidence is the floor below which a rule match is discarded and
// the transaction stays uncategorized.
const MinConfidence = 0.3

// scorer is one independent match criterion. Each returns a contribution
// in [0, 1/totalCriteria]; contributions are summed and capped at 1.
// New criteria slot in here without touching the combination logic.
type scorer func(tx core.Transaction, rawBody string, share float64) float64

// Engine evaluates rule sets. Stateless and safe for concurrent use;
// the rule list is treated as a fresh snapshot on every call.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Categorize returns the best rule match for tx, or nil when no active
// rule reaches MinConfidence. Selection is greedy in priority order: the
// first rule at or above the floor wins unless a later rule scores
// strictly higher. rawBody is the original message body; keywords match
// against description and body combined.
func (e *Engine) Categorize(tx core.Transaction, ruleSet []core.CategoryRule, rawBody string) *core.CategoryMatch {
	ordered := make([]core.CategoryRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Active {
			ordered = append(ordered, r)
		}
	}
	core.SortRules(ordered)

	var best *core.CategoryMatch
	for _, rule := range ordered {
		confidence := score(rule, tx, rawBody)
		if confidence < MinConfidence {
			continue
		}
		if best == nil || confidence > best.Confidence {
			best = &core.CategoryMatch{Rule: rule, Transaction: tx, Confidence: confidence}
		}
	}
	return best
}

// score computes the confidence of one rule against one transaction.
// Every configured criterion contributes an equal share.
func score(rule core.CategoryRule, tx core.Transaction, rawBody string) float64 {
	total := len(rule.Keywords) + len(rule.SenderPatterns)
	if rule.MinAmount != nil || rule.MaxAmount != nil {
		total++
	}
	if total == 0 {
		return 0
	}
	share := 1.0 / float64(total)

	confidence := 0.0
	for _, s := range []scorer{
		keywordScorer(rule.Keywords),
		senderScorer(rule.SenderPatterns),
		amountScorer(rule.MinAmount, rule.MaxAmount),
	} {
		confidence += s(tx, rawBody, share)
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// keywordScorer matches each keyword as a case-insensitive substring of
// the description and raw body combined.
func keywordScorer(keywords []string) scorer {
	return func(tx core.Transaction, rawBody string, share float64) float64 {
		haystack := strings.ToLower(tx.Description + " " + rawBody)
		contribution := 0.0
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(haystack, kw) {
				contribution += share
			}
		}
		return contribution
	}
}

// senderScorer matches each sender pattern as a regular expression
// against the transaction sender. An invalid pattern contributes zero
// and never aborts evaluation of the remaining criteria or rules.
func senderScorer(patterns []string) scorer {
	return func(tx core.Transaction, _ string, share float64) float64 {
		contribution := 0.0
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				slog.Debug("skipping invalid sender pattern", "pattern", p, "error", err)
				continue
			}
			if re.MatchString(tx.Sender) {
				contribution += share
			}
		}
		return contribution
	}
}

// amountScorer checks the configured amount range: min-only means
// amount >= min, max-only means amount <= max, both means the inclusive
// range.
func amountScorer(min, max *decimal.Decimal) scorer {
	return func(tx core.Transaction, _ string, share float64) float64 {
		if min == nil && max == nil {
			return 0
		}
		if min != nil && tx.Amount.LessThan(*min) {
			return 0
		}
		if max != nil && tx.Amount.GreaterThan(*max) {
			return 0
		}
		return share
	}
}
