package categorizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
	"github.com/bcaldwell/finimporter/pkg/store"
)

type SuggestionReason string

const (
	// ReasonRuleMatch: the current rules give a different category.
	ReasonRuleMatch     SuggestionReason = "rule_match"
	ReasonUnusuallyHigh SuggestionReason = "unusually_high"
	ReasonUnusuallyLow  SuggestionReason = "unusually_low"
)

const (
	suggestionHistory  = 6 // months of outflows the category averages use
	suggestionRecent   = 1 // months of transactions checked against them
	minCategorySamples = 5
	maxAmountSuggest   = 20
)

var two = decimal.NewFromInt(2)

// Suggestion points at a transaction whose category looks wrong.
type Suggestion struct {
	Transaction financialimporter.Transaction `json:"transaction"`
	Reason      SuggestionReason              `json:"reason"`
	// Suggested is set for rule matches
	Suggested Category `json:"suggested,omitempty"`
	// CategoryAverage is set for unusual amounts
	CategoryAverage decimal.Decimal `json:"categoryAverage"`
}

// TransactionLister is the part of the store suggestions read from.
type TransactionLister interface {
	Transactions(ctx context.Context, filter store.Filter) ([]financialimporter.Transaction, error)
}

// SuggestRecategorization looks for transactions that may be miscategorized.
// Uncategorized or automatically categorized transactions the current rules
// place elsewhere come first. Then, newest first, recent outflows more than
// twice or less than half the average outflow of their category.
// Transactions categorized by the user are never suggested for a rule match.
func (c *Categorizer) SuggestRecategorization(ctx context.Context, s TransactionLister, now time.Time) ([]Suggestion, error) {
	since := now.AddDate(0, -suggestionHistory, 0)

	transactions, err := s.Transactions(ctx, store.Filter{From: since})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	suggestions := c.ruleSuggestions(transactions)
	suggestions = append(suggestions, amountSuggestions(transactions, now.AddDate(0, -suggestionRecent, 0))...)

	return suggestions, nil
}

func (c *Categorizer) ruleSuggestions(transactions []financialimporter.Transaction) []Suggestion {
	suggestions := []Suggestion{}

	for _, t := range transactions {
		if t.CategorySource == financialimporter.CategoryUser {
			continue
		}

		current := Category(t.Category)
		if current == "" {
			current = Other
		}

		suggested := c.Categorize(t)
		if suggested == Other || suggested == current {
			continue
		}

		suggestions = append(suggestions, Suggestion{Transaction: t, Reason: ReasonRuleMatch, Suggested: suggested})
	}

	return suggestions
}

func amountSuggestions(transactions []financialimporter.Transaction, recent time.Time) []Suggestion {
	type stat struct {
		total decimal.Decimal
		count int64
	}

	stats := map[string]*stat{}
	for _, t := range transactions {
		if t.Category == "" || !t.Amount.IsNegative() {
			continue
		}

		st, ok := stats[t.Category]
		if !ok {
			st = &stat{}
			stats[t.Category] = st
		}
		st.total = st.total.Add(t.Amount.Abs())
		st.count++
	}

	suggestions := []Suggestion{}
	for _, t := range transactions {
		if t.BookingDate.Before(recent) || t.Category == "" || !t.Amount.IsNegative() {
			continue
		}

		st := stats[t.Category]
		if st.count < minCategorySamples {
			continue
		}

		average := st.total.Div(decimal.NewFromInt(st.count)).Round(2)
		amount := t.Amount.Abs()

		var reason SuggestionReason
		switch {
		case amount.GreaterThan(average.Mul(two)):
			reason = ReasonUnusuallyHigh
		case amount.LessThan(average.Div(two)):
			reason = ReasonUnusuallyLow
		default:
			continue
		}

		suggestions = append(suggestions, Suggestion{Transaction: t, Reason: reason, CategoryAverage: average})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Transaction.BookingDate.After(suggestions[j].Transaction.BookingDate)
	})

	if len(suggestions) > maxAmountSuggest {
		suggestions = suggestions[:maxAmountSuggest]
	}

	return suggestions
}
