// Package subscriptions finds recurring charges in the transaction history.
package subscriptions

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
	"github.com/bcaldwell/finimporter/pkg/store"
)

type Frequency string

const (
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// DefaultMonths is how much history Detect looks at by default.
const DefaultMonths = 6

// maxAmountDeviation is the largest relative distance of a single charge
// from the average charge.
var maxAmountDeviation = decimal.RequireFromString("0.15")

//go:embed known.yml
var rawKnown []byte

// Merchant is a merchant known to bill on a schedule.
type Merchant struct {
	Pattern  string `json:"pattern"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

var known = mustLoadKnown(rawKnown)

func mustLoadKnown(raw []byte) []Merchant {
	var doc struct {
		Merchants []Merchant `json:"merchants"`
	}

	err := yaml.Unmarshal(raw, &doc)
	if err != nil {
		panic(fmt.Sprintf("invalid known subscriptions: %v", err))
	}

	return doc.Merchants
}

// Subscription is a recurring charge found in the history.
type Subscription struct {
	Name     string `json:"name"`
	Merchant string `json:"merchant"`
	Category string `json:"category"`
	// Amount is the average charge, positive
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Frequency   Frequency       `json:"frequency"`
	LastCharge  time.Time       `json:"lastCharge"`
	Charges     int             `json:"charges"`
	Confidence  float64         `json:"confidence"`
	MonthlyCost decimal.Decimal `json:"monthlyCost"`
}

// Lister is the part of the store detection reads from.
type Lister interface {
	Transactions(ctx context.Context, filter store.Filter) ([]financialimporter.Transaction, error)
}

// Detect analyzes the outflows booked since from.
func Detect(ctx context.Context, s Lister, from time.Time) ([]Subscription, error) {
	transactions, err := s.Transactions(ctx, store.Filter{From: from, OutflowOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return Analyze(transactions), nil
}

// Analyze groups outflows by merchant and keeps the groups charged at a
// regular interval with a stable amount, largest amount first.
func Analyze(transactions []financialimporter.Transaction) []Subscription {
	byMerchant := map[string][]financialimporter.Transaction{}
	for _, t := range transactions {
		if !t.Amount.IsNegative() {
			continue
		}

		merchant, ok := NormalizeMerchant(t)
		if !ok {
			continue
		}
		byMerchant[merchant] = append(byMerchant[merchant], t)
	}

	found := []Subscription{}
	for merchant, charges := range byMerchant {
		if s, ok := analyzeMerchant(merchant, charges); ok {
			found = append(found, s)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].Amount.Equal(found[j].Amount) {
			return found[i].Amount.GreaterThan(found[j].Amount)
		}
		return found[i].Merchant < found[j].Merchant
	})

	return found
}

var (
	merchantPrefix = regexp.MustCompile(`^(payment to|direct debit|recurring|subscription)\s*`)
	companySuffix  = regexp.MustCompile(`\s*(gmbh|ltd|inc|llc|ag|sa|bv)\.?$`)
	embeddedDate   = regexp.MustCompile(`\d{2}[./]\d{2}[./]\d{2,4}`)
	reference      = regexp.MustCompile(`(?i)ref[:\s]*\d+`)
	spaces         = regexp.MustCompile(`\s+`)
)

// NormalizeMerchant reduces the creditor (or description) of t to a stable
// merchant key. Known merchants map to their pattern.
func NormalizeMerchant(t financialimporter.Transaction) (string, bool) {
	text := t.CreditorName
	if strings.TrimSpace(text) == "" {
		text = t.Description
	}

	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return "", false
	}

	text = merchantPrefix.ReplaceAllString(text, "")
	text = companySuffix.ReplaceAllString(text, "")
	text = embeddedDate.ReplaceAllString(text, "")
	text = reference.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaces.ReplaceAllString(text, " "))

	for _, m := range known {
		if strings.Contains(text, m.Pattern) {
			return m.Pattern, true
		}
	}

	if len([]rune(text)) <= 3 {
		return "", false
	}

	if r := []rune(text); len(r) > 50 {
		text = string(r[:50])
	}

	return text, true
}

func analyzeMerchant(merchant string, charges []financialimporter.Transaction) (Subscription, bool) {
	if len(charges) < 2 {
		return Subscription{}, false
	}

	sort.SliceStable(charges, func(i, j int) bool {
		return charges[i].BookingDate.Before(charges[j].BookingDate)
	})

	total := decimal.Zero
	for _, t := range charges {
		total = total.Add(t.Amount.Abs())
	}
	average := total.Div(decimal.NewFromInt(int64(len(charges))))
	if average.IsZero() {
		return Subscription{}, false
	}

	for _, t := range charges {
		deviation := t.Amount.Abs().Sub(average).Abs().Div(average)
		if deviation.GreaterThan(maxAmountDeviation) {
			return Subscription{}, false
		}
	}

	first, last := charges[0].BookingDate, charges[len(charges)-1].BookingDate
	interval := last.Sub(first).Hours() / 24 / float64(len(charges)-1)

	frequency, confidence, ok := classify(interval, len(charges))
	if !ok {
		return Subscription{}, false
	}

	s := Subscription{
		Name:       cases.Title(language.Und).String(merchant),
		Merchant:   merchant,
		Category:   "other",
		Amount:     average.Round(2),
		Currency:   charges[len(charges)-1].Currency,
		Frequency:  frequency,
		LastCharge: last,
		Charges:    len(charges),
		Confidence: confidence,
	}
	s.MonthlyCost = MonthlyCost(s.Amount, frequency)

	for _, m := range known {
		if m.Pattern == merchant {
			s.Name = m.Name
			s.Category = m.Category
			break
		}
	}

	return s, true
}

// classify maps the average interval in days between charges to a billing
// frequency and a confidence between 0 and 1.
func classify(interval float64, charges int) (Frequency, float64, bool) {
	var (
		frequency  Frequency
		confidence float64
	)

	switch {
	case interval >= 25 && interval <= 35:
		frequency, confidence = Monthly, 0.9
	case interval >= 350 && interval <= 380:
		frequency, confidence = Yearly, 0.85
	case interval >= 6 && interval <= 8:
		frequency, confidence = Weekly, 0.8
	case interval >= 85 && interval <= 95:
		frequency, confidence = Quarterly, 0.85
	case charges >= 3 && interval >= 20 && interval <= 40:
		frequency, confidence = Monthly, 0.6
	default:
		return "", 0, false
	}

	switch {
	case charges >= 6:
		confidence += 0.1
		if confidence > 1 {
			confidence = 1
		}
	case charges == 2:
		confidence -= 0.2
		if confidence < 0.4 {
			confidence = 0.4
		}
	}

	return frequency, confidence, true
}

// MonthlyCost converts a charge billed at frequency to its cost per month.
func MonthlyCost(amount decimal.Decimal, frequency Frequency) decimal.Decimal {
	switch frequency {
	case Weekly:
		return amount.Mul(decimal.NewFromInt(52)).Div(decimal.NewFromInt(12)).Round(2)
	case Quarterly:
		return amount.Div(decimal.NewFromInt(3)).Round(2)
	case Yearly:
		return amount.Div(decimal.NewFromInt(12)).Round(2)
	default:
		return amount.Round(2)
	}
}
