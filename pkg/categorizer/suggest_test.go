package categorizer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
	"github.com/bcaldwell/finimporter/pkg/store"
)

func categorized(id, description, amount string, day time.Time, category string, source financialimporter.CategorySource) financialimporter.Transaction {
	return financialimporter.Transaction{
		ID:             id,
		AccountID:      "a",
		BookingDate:    day,
		Amount:         decimal.RequireFromString(amount),
		Description:    description,
		Category:       category,
		CategorySource: source,
	}
}

func wednesday(month time.Month, d int) time.Time {
	year := 2025
	if month == time.December {
		year = 2024
	}
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestSuggestRecategorization(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	auto := financialimporter.CategoryAuto
	transactions := []financialimporter.Transaction{
		categorized("r1", "FRESSNAPF Bern", "-30", weekday, "other", auto),
		categorized("r2", "FRESSNAPF Zug", "-30", weekday, "pets", auto),
		categorized("r3", "FRESSNAPF Basel", "-30", weekday, "gifts", financialimporter.CategoryUser),
		categorized("r4", "Fressnapf online", "-30", weekday, "", financialimporter.CategoryPending),

		categorized("g1", "Market Hall", "-40", wednesday(time.December, 4), "groceries", auto),
		categorized("g2", "Market Hall", "-40", wednesday(time.January, 8), "groceries", auto),
		categorized("g3", "Market Hall", "-40", wednesday(time.January, 22), "groceries", auto),
		categorized("g4", "Market Hall", "-40", wednesday(time.February, 5), "groceries", auto),
		categorized("g5", "Market Hall", "-40", wednesday(time.February, 12), "groceries", auto),
		categorized("g6", "Market Hall", "-200", wednesday(time.March, 12), "groceries", auto),
		// a monday
		categorized("g7", "Market Hall", "-10", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "groceries", auto),
	}
	err := s.WithTx(ctx, func(w financialimporter.Writer) error {
		for i := range transactions {
			if _, err := w.InsertIfAbsent(ctx, &transactions[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	c := New(RuleSet{Categories: []Rule{{Name: "pets", Keywords: []string{"fressnapf"}}}})
	now := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	suggestions, err := c.SuggestRecategorization(ctx, s, now)
	require.NoError(t, err)
	require.Len(t, suggestions, 4)

	ruleMatches := map[string]Category{}
	for _, sg := range suggestions[:2] {
		assert.Equal(t, ReasonRuleMatch, sg.Reason)
		ruleMatches[sg.Transaction.ID] = sg.Suggested
	}
	// r2 already matches and r3 was set by the user
	assert.Equal(t, map[string]Category{"r1": "pets", "r4": "pets"}, ruleMatches)

	high := suggestions[2]
	assert.Equal(t, "g6", high.Transaction.ID)
	assert.Equal(t, ReasonUnusuallyHigh, high.Reason)
	assert.Equal(t, "58.57", high.CategoryAverage.String())

	low := suggestions[3]
	assert.Equal(t, "g7", low.Transaction.ID)
	assert.Equal(t, ReasonUnusuallyLow, low.Reason)
}

func TestSuggestRecategorizationNeedsHistory(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	transactions := []financialimporter.Transaction{
		categorized("g1", "Market Hall", "-40", wednesday(time.February, 5), "groceries", financialimporter.CategoryAuto),
		categorized("g2", "Market Hall", "-400", wednesday(time.March, 12), "groceries", financialimporter.CategoryAuto),
	}
	err := s.WithTx(ctx, func(w financialimporter.Writer) error {
		for i := range transactions {
			if _, err := w.InsertIfAbsent(ctx, &transactions[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	suggestions, err := New(DefaultRules()).SuggestRecategorization(ctx, s, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}
