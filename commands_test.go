package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/finimporter/pkg/categorizer"
	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

func TestAddMerchantRuleSavesOnce(t *testing.T) {
	rs := &categorizer.MemoryRuleStore{}

	added, err := addMerchantRule(rs, "Bäckerei Zentrum", categorizer.Dining)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, rs.Saves)

	added, err = addMerchantRule(rs, "Bäckerei Zentrum", categorizer.Dining)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, rs.Saves)

	_, err = addMerchantRule(rs, "Acme", "pets")
	assert.ErrorIs(t, err, categorizer.ErrUnknownCategory)
	assert.Equal(t, 1, rs.Saves)
}

func TestImportRulesSavesOnce(t *testing.T) {
	rs := &categorizer.MemoryRuleStore{}

	count, err := importRules(rs, []byte(`
categories:
  - name: pets
    keywords: [fressnapf]
    patterns: []
`))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, rs.Saves)

	saved, err := rs.Load()
	require.NoError(t, err)
	require.Len(t, saved.Categories, 1)
	assert.Equal(t, categorizer.Category("pets"), saved.Categories[0].Name)

	_, err = importRules(rs, []byte("categories: []\n"))
	assert.Error(t, err)
	assert.Equal(t, 1, rs.Saves)
}

func TestRuleMatchCategories(t *testing.T) {
	suggestions := []categorizer.Suggestion{
		{Transaction: financialimporter.Transaction{ID: "t1"}, Reason: categorizer.ReasonRuleMatch, Suggested: categorizer.Groceries},
		{Transaction: financialimporter.Transaction{ID: "t2"}, Reason: categorizer.ReasonUnusuallyHigh},
		{Transaction: financialimporter.Transaction{ID: "t3"}, Reason: categorizer.ReasonRuleMatch, Suggested: "pets"},
	}

	assert.Equal(t, map[string]string{"t1": "groceries", "t3": "pets"}, ruleMatchCategories(suggestions))
}

func TestParseMonth(t *testing.T) {
	fallback := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	month, err := parseMonth("", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, month)

	month, err = parseMonth("2024-11", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), month)

	_, err = parseMonth("11/2024", fallback)
	assert.Error(t, err)
}
