package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"spendscan/internal/core"
)

// ruleFile is the JSON form of one categorization rule. Amounts are
// decimal strings.
type ruleFile struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Keywords       []string         `json:"keywords,omitempty"`
	SenderPatterns []string         `json:"sender_patterns,omitempty"`
	MinAmount      *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount      *decimal.Decimal `json:"max_amount,omitempty"`
	Category       string           `json:"category"`
	Priority       int              `json:"priority"`
	Active         *bool            `json:"active,omitempty"`
}

// LoadFile reads a rule set snapshot from a JSON file. Rules default to
// active when the field is omitted; every rule must pass validation.
func LoadFile(path string) ([]core.CategoryRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return parseRules(data)
}

func parseRules(data []byte) ([]core.CategoryRule, error) {
	var raw []ruleFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	ruleSet := make([]core.CategoryRule, 0, len(raw))
	for i, r := range raw {
		active := true
		if r.Active != nil {
			active = *r.Active
		}
		rule := core.CategoryRule{
			ID:             r.ID,
			Name:           r.Name,
			Keywords:       r.Keywords,
			SenderPatterns: r.SenderPatterns,
			MinAmount:      r.MinAmount,
			MaxAmount:      r.MaxAmount,
			Category:       r.Category,
			Priority:       r.Priority,
			Active:         active,
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, r.Name, err)
		}
		ruleSet = append(ruleSet, rule)
	}
	return ruleSet, nil
}
