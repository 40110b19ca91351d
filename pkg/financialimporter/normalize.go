package financialimporter

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date representation.
const DateLayout = "2006-01-02"

const currencyCodes = "EUR|USD|GBP|CHF|JPY|CAD|AUD|SEK|NOK|DKK|PLN|CZK|HUF"

var (
	leadingCurrency  = regexp.MustCompile(`(?i)^(` + currencyCodes + `)\s*`)
	trailingCurrency = regexp.MustCompile(`(?i)\s*(` + currencyCodes + `)$`)
	// currency glyphs, whitespace (including no-break spaces) and Swiss
	// apostrophe grouping
	amountNoise = regexp.MustCompile(`[€$£¥₣'’\s\x{00A0}\x{202F}]`)
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-1-2",
}

// ParseAmount turns a bank formatted amount into a decimal. decimalSeparator
// is '.' or ','. Parenthesized values and a DR suffix are negative, a CR
// suffix is dropped. ok is false when raw is empty or unparsable, in which
// case the amount is zero.
func ParseAmount(raw string, decimalSeparator byte) (amount decimal.Decimal, ok bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, false
	}

	value = leadingCurrency.ReplaceAllString(value, "")
	value = trailingCurrency.ReplaceAllString(value, "")
	value = amountNoise.ReplaceAllString(value, "")

	if decimalSeparator == ',' {
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	} else {
		value = strings.ReplaceAll(value, ",", "")
	}

	if len(value) >= 2 && strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		value = "-" + value[1:len(value)-1]
	}

	upper := strings.ToUpper(value)
	switch {
	case strings.HasSuffix(upper, "CR"):
		value = value[:len(value)-2]
	case strings.HasSuffix(upper, "DR"):
		value = "-" + value[:len(value)-2]
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}

	return amount, true
}

// ParseDate tries each layout in order, then ISO-8601. The result is a UTC
// midnight calendar date.
func ParseDate(raw string, layouts []string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return calendarDate(t), true
		}
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return calendarDate(t), true
		}
	}

	return time.Time{}, false
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
