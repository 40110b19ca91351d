package categorizer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
	"github.com/bcaldwell/finimporter/pkg/store"
)

// 2025-03-05 is a Wednesday, 2025-03-08 a Saturday
var (
	weekday  = time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	saturday = time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	sunday   = time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
)

func tx(amount string, description string) financialimporter.Transaction {
	return financialimporter.Transaction{
		ID:          description + amount,
		BookingDate: weekday,
		Amount:      decimal.RequireFromString(amount),
		Description: description,
	}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	require.Len(t, rules.Categories, 10)

	names := []Category{}
	for _, r := range rules.Categories {
		names = append(names, r.Name)
	}
	assert.Equal(t, []Category{Groceries, Dining, Transport, Shopping, Subscriptions, Utilities, Entertainment, Health, Housing, Transfers}, names)
	assert.Equal(t, Groceries, rules.MCCMappings["5411"])
	assert.Len(t, rules.MCCMappings, 11)
	assert.Equal(t, "🛒", rules.Emoji(Groceries))
}

func TestUserOverrideWins(t *testing.T) {
	c := New(DefaultRules())

	user := tx("-45", "MIGROS ZURICH")
	user.Category = "custom"
	user.CategorySource = financialimporter.CategoryUser
	assert.Equal(t, Category("custom"), c.Categorize(user))

	// auto categories are recomputed
	auto := tx("-45", "MIGROS ZURICH")
	auto.Category = "custom"
	auto.CategorySource = financialimporter.CategoryAuto
	assert.Equal(t, Groceries, c.Categorize(auto))
}

func TestMerchantTextMatch(t *testing.T) {
	c := New(DefaultRules())

	migros := financialimporter.Transaction{CreditorName: "MIGROS ZURICH", Amount: decimal.RequireFromString("-2000"), BookingDate: saturday}
	assert.Equal(t, Groceries, c.Categorize(migros))

	assert.Equal(t, Subscriptions, c.Categorize(tx("-3", "spotify")))
	assert.Equal(t, Transport, c.Categorize(financialimporter.Transaction{DebtorName: "SBB CFF FFS", Amount: decimal.RequireFromString("-23.40")}))
	assert.Equal(t, Dining, c.Categorize(tx("-6.80", "Starbucks Coffee")))
}

func TestRuleOrderBreaksTies(t *testing.T) {
	c := New(DefaultRules())

	// "manor" is a groceries and a shopping keyword, groceries is first
	assert.Equal(t, Groceries, c.Categorize(tx("-80", "MANOR AG")))
	// swisscom is listed under subscriptions before utilities
	assert.Equal(t, Subscriptions, c.Categorize(tx("-60", "Swisscom Rechnung")))

	rules := DefaultRules()
	rules.Categories[0], rules.Categories[3] = rules.Categories[3], rules.Categories[0]
	assert.Equal(t, Shopping, New(rules).Categorize(tx("-80", "MANOR AG")))
}

func TestMCCLookup(t *testing.T) {
	c := New(DefaultRules())

	withCode := tx("-42", "ACME 1234")
	withCode.MCCCode = "5812"
	assert.Equal(t, Dining, c.Categorize(withCode))

	// text rules run first
	withCode.Description = "LIDL"
	assert.Equal(t, Groceries, c.Categorize(withCode))

	unknown := tx("-42", "ACME 1234")
	unknown.MCCCode = "9999"
	assert.Equal(t, Other, c.Categorize(unknown))
}

func TestAmountHeuristics(t *testing.T) {
	empty := RuleSet{Categories: []Rule{{Name: "misc"}}}
	c := New(empty)

	assert.Equal(t, Income, c.Categorize(tx("1500", "")))
	assert.Equal(t, Transfers, c.Categorize(tx("50", "")))
	assert.Equal(t, Transfers, c.Categorize(tx("1000", "")))
	assert.Equal(t, Utilities, c.Categorize(tx("-3", "monthly fee")))
	assert.Equal(t, Utilities, c.Categorize(tx("-1.20", "Gebühr Karte")))
	assert.Equal(t, Subscriptions, c.Categorize(tx("-4.99", "app purchase")))
	assert.Equal(t, Housing, c.Categorize(tx("-1800", "")))
	assert.Equal(t, Other, c.Categorize(tx("-1000", "")))
	assert.Equal(t, Other, c.Categorize(tx("-45", "")))
}

func TestDefaultRulesMatchMonthlyBeforeFeeHeuristic(t *testing.T) {
	// "monthly" is a subscriptions pattern, so text matching wins
	assert.Equal(t, Subscriptions, New(DefaultRules()).Categorize(tx("-3", "monthly fee")))
}

func TestWeekendDining(t *testing.T) {
	c := New(DefaultRules())

	onSaturday := tx("-45", "ACME 1234")
	onSaturday.BookingDate = saturday
	assert.Equal(t, Dining, c.Categorize(onSaturday))

	onSunday := tx("-150", "ACME 1234")
	onSunday.BookingDate = sunday
	assert.Equal(t, Dining, c.Categorize(onSunday))

	tooLarge := tx("-150.01", "ACME 1234")
	tooLarge.BookingDate = saturday
	assert.Equal(t, Other, c.Categorize(tooLarge))

	assert.Equal(t, Other, c.Categorize(tx("-45", "ACME 1234")))

	noDate := tx("-45", "ACME 1234")
	noDate.BookingDate = time.Time{}
	assert.Equal(t, Other, c.Categorize(noDate))
}

func TestCategorizeBatch(t *testing.T) {
	c := New(DefaultRules())

	got := c.CategorizeBatch([]financialimporter.Transaction{
		{ID: "a", Description: "Netflix", Amount: decimal.RequireFromString("-15")},
		{ID: "b", Amount: decimal.RequireFromString("2500")},
		{ID: "c", Amount: decimal.RequireFromString("-60"), BookingDate: weekday},
	})

	assert.Equal(t, map[string]Category{"a": Subscriptions, "b": Income, "c": Other}, got)
}

func TestAddMerchantRule(t *testing.T) {
	rs := &MemoryRuleStore{}
	c, err := Load(rs)
	require.NoError(t, err)

	assert.Equal(t, Other, c.Categorize(tx("-60", "Bäckerei (Zentrum)")))

	added, err := c.AddMerchantRule("Bäckerei (Zentrum)", "Dining")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, Dining, c.Categorize(tx("-60", "BÄCKEREI (ZENTRUM) 12")))

	added, err = c.AddMerchantRule("Bäckerei (Zentrum)", Dining)
	require.NoError(t, err)
	assert.False(t, added)

	count := 0
	for _, r := range c.Rules().Categories {
		for _, p := range r.Patterns {
			if p == MerchantPattern("Bäckerei (Zentrum)") {
				count++
			}
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, rs.Saves)

	saved, err := rs.Load()
	require.NoError(t, err)
	assert.Equal(t, c.Rules(), saved)

	added, err = c.AddMerchantRule("Acme", "pets")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.False(t, added)
	assert.Equal(t, 1, rs.Saves)
}

func TestFileRuleStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules", "categories.yml")
	fs := FileRuleStore{Path: path}

	rules, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)

	c, err := Load(fs)
	require.NoError(t, err)
	_, err = c.AddMerchantRule("corner shop", Groceries)
	require.NoError(t, err)

	reloaded, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, Groceries, reloaded.Categorize(tx("-12", "The Corner Shop")))
}

func TestParseRules(t *testing.T) {
	_, err := ParseRules([]byte(`{"categories": []}`))
	assert.ErrorIs(t, err, ErrNoCategories)

	_, err = ParseRules([]byte("categories:\n- name: a\n  patterns: ['(']\n"))
	assert.Error(t, err)

	_, err = ParseRules([]byte("categories:\n- name: a\n- name: a\n"))
	assert.Error(t, err)

	rules, err := ParseRules([]byte(`{"categories": [{"name": "pets", "keywords": ["fressnapf"]}], "mcc_mappings": {"5995": "pets"}}`))
	require.NoError(t, err)

	raw, err := MarshalRules(rules)
	require.NoError(t, err)
	again, err := ParseRules(raw)
	require.NoError(t, err)
	assert.Equal(t, rules, again)
}

func TestReplaceRules(t *testing.T) {
	rs := &MemoryRuleStore{}
	c, err := Load(rs)
	require.NoError(t, err)

	err = c.ReplaceRules(RuleSet{})
	assert.ErrorIs(t, err, ErrNoCategories)
	assert.Equal(t, 0, rs.Saves)

	err = c.ReplaceRules(RuleSet{Categories: []Rule{{Name: "pets", Keywords: []string{"Fressnapf"}}}})
	require.NoError(t, err)
	assert.Equal(t, Category("pets"), c.Categorize(tx("-30", "FRESSNAPF Bern")))
	assert.Equal(t, 1, rs.Saves)
}

func TestInvalidPatternsAreSkipped(t *testing.T) {
	c := New(RuleSet{Categories: []Rule{{Name: "pets", Patterns: []string{"(", "(?i)fress"}}}})
	assert.Equal(t, Category("pets"), c.Categorize(tx("-30", "Fressnapf")))
}

func TestCategorizePending(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	transactions := []financialimporter.Transaction{
		{ID: "t1", AccountID: "a", CreditorName: "COOP", Amount: decimal.RequireFromString("-30"), BookingDate: weekday},
		{ID: "t2", AccountID: "a", Description: "ACME 1234", Amount: decimal.RequireFromString("-60"), BookingDate: weekday},
		{ID: "t3", AccountID: "a", Description: "Salary", Amount: decimal.RequireFromString("4000"), BookingDate: weekday},
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

	_, err = s.SetCategory(ctx, "t3", "salary")
	require.NoError(t, err)

	result, err := New(DefaultRules()).CategorizePending(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, map[Category]int{Groceries: 1}, result.ByCategory)

	stored, err := s.Transactions(ctx, store.Filter{})
	require.NoError(t, err)
	byID := map[string]financialimporter.Transaction{}
	for _, txn := range stored {
		byID[txn.ID] = txn
	}

	assert.Equal(t, "groceries", byID["t1"].Category)
	assert.Equal(t, financialimporter.CategoryAuto, byID["t1"].CategorySource)
	assert.Equal(t, "", byID["t2"].Category)
	assert.Equal(t, financialimporter.CategoryPending, byID["t2"].CategorySource)
	assert.Equal(t, "salary", byID["t3"].Category)
	assert.Equal(t, financialimporter.CategoryUser, byID["t3"].CategorySource)

	// other stays pending and is examined again
	result, err = New(DefaultRules()).CategorizePending(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 0, result.Updated)
}
