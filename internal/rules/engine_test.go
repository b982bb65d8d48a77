package rules

import (
	"testing"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
)

func tx(amount string, description, sender string) core.Transaction {
	return core.Transaction{
		Amount:      decimal.RequireFromString(amount),
		Direction:   core.Debit,
		Description: description,
		Sender:      sender,
	}
}

func TestCategorizeSingleKeywordFullConfidence(t *testing.T) {
	e := NewEngine()
	ruleSet := []core.CategoryRule{
		{ID: 1, Name: "amazon", Keywords: []string{"amazon"}, Category: "Shopping", Priority: 5, Active: true},
	}

	match := e.Categorize(tx("1250.50", "Amazon purchase", "HDFCBK"), ruleSet, "Rs. 1,250.50 debited from your account for Amazon purchase")
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", match.Confidence)
	}
	if match.Rule.Category != "Shopping" {
		t.Fatalf("category = %q, want Shopping", match.Rule.Category)
	}
}

func TestCategorizeConfidenceShares(t *testing.T) {
	min := decimal.NewFromInt(100)
	max := decimal.NewFromInt(2000)

	e := NewEngine()
	rule := core.CategoryRule{
		ID:             2,
		Name:           "online-shopping",
		Keywords:       []string{"amazon", "flipkart"},
		SenderPatterns: []string{`^HDFC`},
		MinAmount:      &min,
		MaxAmount:      &max,
		Category:       "Shopping",
		Priority:       1,
		Active:         true,
	}

	// 4 criteria; amazon keyword + sender + amount match, flipkart does not.
	match := e.Categorize(tx("1250.50", "Amazon purchase", "HDFCBK"), []core.CategoryRule{rule}, "")
	if match == nil {
		t.Fatal("expected a match")
	}
	if got, want := match.Confidence, 0.75; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("confidence = %v, want %v", got, want)
	}
}

func TestCategorizeBelowThreshold(t *testing.T) {
	e := NewEngine()
	ruleSet := []core.CategoryRule{
		{ID: 3, Name: "weak", Keywords: []string{"a", "b", "c", "d"}, Category: "Misc", Priority: 1, Active: true},
	}

	// Only one of four keywords matches: confidence 0.25 < 0.3.
	if match := e.Categorize(tx("10", "a thing", ""), ruleSet, ""); match != nil {
		t.Fatalf("expected nil below threshold, got %+v", match)
	}
}

func TestCategorizeConfidenceBounds(t *testing.T) {
	e := NewEngine()
	ruleSets := [][]core.CategoryRule{
		{{Name: "r1", Keywords: []string{"coffee"}, Category: "Food", Priority: 1, Active: true}},
		{{Name: "r2", Keywords: []string{"coffee", "tea"}, SenderPatterns: []string{`.*`}, Category: "Food", Priority: 2, Active: true}},
		{{Name: "r3", SenderPatterns: []string{`^X`, `.*`, `[A-Z]+`}, Category: "Misc", Priority: 3, Active: true}},
	}

	sample := tx("55", "coffee and tea at the corner shop", "CAFEBK")
	for _, rs := range ruleSets {
		if match := e.Categorize(sample, rs, "coffee and tea"); match != nil {
			if match.Confidence < MinConfidence || match.Confidence > 1.0 {
				t.Fatalf("confidence %v outside [%v, 1.0]", match.Confidence, MinConfidence)
			}
		}
	}
}

func TestCategorizePriorityGreedySelection(t *testing.T) {
	e := NewEngine()
	ruleSet := []core.CategoryRule{
		{ID: 1, Name: "generic", Keywords: []string{"store", "mart"}, Category: "Shopping", Priority: 1, Active: true},
		{ID: 2, Name: "grocery", Keywords: []string{"mart"}, Category: "Groceries", Priority: 10, Active: true},
	}

	// grocery (priority 10) scores 1.0 first; generic scores 0.5 and
	// cannot displace it.
	match := e.Categorize(tx("200", "DMart store visit", ""), ruleSet, "")
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Rule.Name != "grocery" {
		t.Fatalf("matched %q, want grocery", match.Rule.Name)
	}

	// A later rule only wins by scoring strictly higher.
	ruleSet = []core.CategoryRule{
		{ID: 3, Name: "half", Keywords: []string{"fuel", "toll"}, Category: "Transport", Priority: 10, Active: true},
		{ID: 4, Name: "full", Keywords: []string{"fuel"}, Category: "Fuel", Priority: 1, Active: true},
	}
	match = e.Categorize(tx("900", "fuel stop", ""), ruleSet, "")
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Rule.Name != "full" {
		t.Fatalf("matched %q, want full (1.0 beats 0.5)", match.Rule.Name)
	}
}

func TestCategorizeSkipsInactiveRules(t *testing.T) {
	e := NewEngine()
	ruleSet := []core.CategoryRule{
		{ID: 1, Name: "off", Keywords: []string{"amazon"}, Category: "Shopping", Priority: 10, Active: false},
	}
	if match := e.Categorize(tx("10", "amazon order", ""), ruleSet, ""); match != nil {
		t.Fatalf("inactive rule must not match, got %+v", match)
	}
}

func TestCategorizeInvalidSenderPattern(t *testing.T) {
	e := NewEngine()
	ruleSet := []core.CategoryRule{
		{
			ID:             1,
			Name:           "broken-pattern",
			Keywords:       []string{"uber"},
			SenderPatterns: []string{`([`},
			Category:       "Transport",
			Priority:       5,
			Active:         true,
		},
	}

	// The invalid regex contributes zero; the keyword still scores 0.5.
	match := e.Categorize(tx("320", "uber ride", "UBER"), ruleSet, "")
	if match == nil {
		t.Fatal("invalid pattern must not abort the rule")
	}
	if got, want := match.Confidence, 0.5; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("confidence = %v, want %v", got, want)
	}
}

func TestCategorizeAmountBounds(t *testing.T) {
	min := decimal.NewFromInt(100)
	max := decimal.NewFromInt(500)

	cases := []struct {
		name  string
		rule  core.CategoryRule
		tx    core.Transaction
		match bool
	}{
		{"min only at bound", core.CategoryRule{Name: "m", Category: "c", MinAmount: &min, Active: true}, tx("100", "", ""), true},
		{"min only below", core.CategoryRule{Name: "m", Category: "c", MinAmount: &min, Active: true}, tx("99.99", "", ""), false},
		{"max only at bound", core.CategoryRule{Name: "m", Category: "c", MaxAmount: &max, Active: true}, tx("500", "", ""), true},
		{"max only above", core.CategoryRule{Name: "m", Category: "c", MaxAmount: &max, Active: true}, tx("500.01", "", ""), false},
		{"both inclusive", core.CategoryRule{Name: "m", Category: "c", MinAmount: &min, MaxAmount: &max, Active: true}, tx("250", "", ""), true},
	}

	e := NewEngine()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			match := e.Categorize(tc.tx, []core.CategoryRule{tc.rule}, "")
			if tc.match && match == nil {
				t.Fatal("expected a match")
			}
			if !tc.match && match != nil {
				t.Fatalf("expected no match, got %+v", match)
			}
		})
	}
}

func TestCategorizeEmptyRuleSet(t *testing.T) {
	e := NewEngine()
	if match := e.Categorize(tx("10", "anything", ""), nil, ""); match != nil {
		t.Fatalf("expected nil for empty rule set, got %+v", match)
	}
}
