package scoring

import (
	"regexp"
	"strconv"
	"strings"
)

// Threshold validators re-check a DETECTED signal's claimed quantity
// against the grille's definition and override the verdict to
// NOT_DETECTED when the claim fails the bar. The quantity is parsed
// from the signal value first, then from the evidence. An unparseable
// quantity leaves the verdict unchanged.
var validators = map[string]func(value, evidence string) bool{
	"new_cio_appointed":        tenureAtMost(12),
	"new_ceo_appointed":        tenureAtMost(12),
	"cio_in_seat_over_5_years": tenureAtLeast(60),
	"it_team_over_40":          countAtLeast(40),
	"it_team_under_10":         countAtMost(10),
	"headcount_over_1000":      countAtLeast(1000),
	"headcount_under_500":      countAtMost(500),
	"transformation_posts":     countAtLeast(2),
	"strong_revenue_growth":    percentAtLeast(10),
	"strong_headcount_growth":  percentAtLeast(10),
	"structural_turnover":      turnoverHolds,
}

// thresholdHolds reports whether a DETECTED verdict survives the
// signal's threshold. Signals without a validator always hold.
func thresholdHolds(signalID, value, evidence string) bool {
	validate, ok := validators[signalID]
	if !ok {
		return true
	}
	return validate(value, evidence)
}

var (
	monthsPattern   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:months?|mois)\b`)
	yearsPattern    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:years?|ans?)\b`)
	percentPattern  = regexp.MustCompile(`(-?\d+(?:[.,]\d+)?)\s*(?:%|percent)`)
	numberPattern   = regexp.MustCompile(`\d[\d\s.,]*`)
	commaThousands  = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	periodThousands = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
)

// parseTenureMonths reads a duration as months: "16 months in role",
// "5 ans", "2 years".
func parseTenureMonths(text string) (float64, bool) {
	if m := monthsPattern.FindStringSubmatch(text); m != nil {
		if v, err := parseDecimal(m[1]); err == nil {
			return v, true
		}
	}
	if m := yearsPattern.FindStringSubmatch(text); m != nil {
		if v, err := parseDecimal(m[1]); err == nil {
			return v * 12, true
		}
	}
	return 0, false
}

// parseCount reads the first integer quantity, tolerating thousand
// separators: "1,200 employees", "1 200", "45 engineers".
func parseCount(text string) (float64, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := parseDecimal(strings.TrimRight(m, " .,"))
	if err != nil {
		return 0, false
	}
	return v, true
}

// parsePercent reads a percentage: "+12%", "12,5 %", "8 percent".
func parsePercent(text string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := parseDecimal(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDecimal normalizes thousand separators and the comma decimal
// point before parsing.
func parseDecimal(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	switch {
	case commaThousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case periodThousands.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}

func firstParsed(parse func(string) (float64, bool), value, evidence string) (float64, bool) {
	if v, ok := parse(value); ok {
		return v, true
	}
	return parse(evidence)
}

func tenureAtMost(months float64) func(string, string) bool {
	return func(value, evidence string) bool {
		v, ok := firstParsed(parseTenureMonths, value, evidence)
		return !ok || v <= months
	}
}

func tenureAtLeast(months float64) func(string, string) bool {
	return func(value, evidence string) bool {
		v, ok := firstParsed(parseTenureMonths, value, evidence)
		return !ok || v >= months
	}
}

func countAtLeast(n float64) func(string, string) bool {
	return func(value, evidence string) bool {
		v, ok := firstParsed(parseCount, value, evidence)
		return !ok || v >= n
	}
}

func countAtMost(n float64) func(string, string) bool {
	return func(value, evidence string) bool {
		v, ok := firstParsed(parseCount, value, evidence)
		return !ok || v <= n
	}
}

func percentAtLeast(p float64) func(string, string) bool {
	return func(value, evidence string) bool {
		v, ok := firstParsed(parsePercent, value, evidence)
		return !ok || v >= p
	}
}

// turnoverHolds checks both halves of the structural-turnover bar: at
// least three departures inside an at-most-eighteen-month window.
// Each half only overrides when its quantity parsed.
func turnoverHolds(value, evidence string) bool {
	if n, ok := firstParsed(parseCount, value, evidence); ok && n < 3 {
		return false
	}
	if months, ok := firstParsed(parseTenureMonths, value, evidence); ok && months > 18 {
		return false
	}
	return true
}
