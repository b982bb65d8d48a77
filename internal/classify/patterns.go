package classify

import "regexp"

// amountGroup matches a currency-marked amount and captures the numeric
// text. Grouping separators (Indian or western) are kept in the capture
// and stripped before parsing.
const amountGroup = `(?:rs\.?|inr|₹|\$|usd|€|eur)\s*([0-9][0-9,]*(?:\.[0-9]+)?)`

const directionWords = `debited|credited|withdrawn|deposited|refunded|deducted|debit|credit|refund|cashback|received|spent|paid|sent|charged`

// amountPattern is one step of the extraction chain. Patterns are tried
// in order and the first match wins; the chain runs from most specific
// (direction keyword adjacent to a currency amount) to least specific
// (bare currency amount anywhere). First-match-wins is a deliberate
// precision/recall trade-off, not an exhaustive search.
type amountPattern struct {
	name string
	re   *regexp.Regexp
}

var amountPatterns = []amountPattern{
	{
		name: "keyword-before-amount",
		re:   regexp.MustCompile(`(?i)(?:` + directionWords + `)[^0-9]{0,30}` + amountGroup),
	},
	{
		name: "amount-before-keyword",
		re:   regexp.MustCompile(`(?i)` + amountGroup + `[^0-9]{0,40}(?:` + directionWords + `)`),
	},
	{
		name: "bare-amount",
		re:   regexp.MustCompile(`(?i)` + amountGroup),
	},
}

var (
	// currencyRe is the cheap gate: a currency-marked amount anywhere.
	currencyRe = regexp.MustCompile(`(?i)` + amountGroup)

	// gateKeywordRe is the other half of the gate: any debit/credit word.
	gateKeywordRe = regexp.MustCompile(`(?i)\b(?:` + directionWords + `)\b`)

	// otpRe matches an OTP-like standalone numeric code. Only consulted
	// when the OTP-gated policy is enabled.
	otpRe = regexp.MustCompile(`\b[0-9]{4,8}\b`)

	debitWordRe  = regexp.MustCompile(`(?i)\b(?:debited|withdrawn|deducted|debit|spent|paid|sent|charged)\b`)
	creditWordRe = regexp.MustCompile(`(?i)\b(?:credited|deposited|refunded|credit|refund|cashback|received)\b`)

	directionWordRe = regexp.MustCompile(`(?i)\b(?:` + directionWords + `)\b`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)
