package store

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// UncategorizedLabel is what reports show for transactions without a category.
const UncategorizedLabel = "other"

// CategoryTotal is the outflow of one category. Total is positive.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

type CategoryStat struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
	Average  decimal.Decimal `json:"average"`
}

type BudgetLine struct {
	Category  string          `json:"category"`
	Currency  string          `json:"currency"`
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Over      bool            `json:"over"`
}

// MonthRange returns the half open range covering the calendar month of t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// CategoryStats aggregates outflows between from and to by category, largest
// total first.
func CategoryStats(ctx context.Context, s Store, from, to time.Time) ([]CategoryStat, error) {
	transactions, err := s.Transactions(ctx, Filter{From: from, To: to, OutflowOnly: true})
	if err != nil {
		return nil, err
	}

	byCategory := map[string]*CategoryStat{}
	for _, t := range transactions {
		category := t.Category
		if category == "" {
			category = UncategorizedLabel
		}

		stat, ok := byCategory[category]
		if !ok {
			stat = &CategoryStat{Category: category}
			byCategory[category] = stat
		}

		stat.Count++
		stat.Total = stat.Total.Add(t.Amount.Abs())
	}

	stats := make([]CategoryStat, 0, len(byCategory))
	for _, stat := range byCategory {
		stat.Average = stat.Total.Div(decimal.NewFromInt(int64(stat.Count))).Round(2)
		stats = append(stats, *stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		if !stats[i].Total.Equal(stats[j].Total) {
			return stats[i].Total.GreaterThan(stats[j].Total)
		}
		return stats[i].Category < stats[j].Category
	})

	return stats, nil
}

// CategorySpending is CategoryStats reduced to totals.
func CategorySpending(ctx context.Context, s Store, from, to time.Time) ([]CategoryTotal, error) {
	stats, err := CategoryStats(ctx, s, from, to)
	if err != nil {
		return nil, err
	}

	totals := make([]CategoryTotal, 0, len(stats))
	for _, stat := range stats {
		totals = append(totals, CategoryTotal{Category: stat.Category, Total: stat.Total})
	}

	return totals, nil
}

// BudgetStatus compares every budget with the spending of month.
func BudgetStatus(ctx context.Context, s Store, month time.Time) ([]BudgetLine, error) {
	budgets, err := s.Budgets(ctx)
	if err != nil {
		return nil, err
	}

	from, to := MonthRange(month)
	spending, err := CategorySpending(ctx, s, from, to)
	if err != nil {
		return nil, err
	}

	spent := map[string]decimal.Decimal{}
	for _, total := range spending {
		spent[total.Category] = total.Total
	}

	lines := make([]BudgetLine, 0, len(budgets))
	for _, b := range budgets {
		line := BudgetLine{
			Category: b.Category,
			Currency: b.Currency,
			Limit:    b.MonthlyLimit,
			Spent:    spent[b.Category],
		}
		line.Remaining = line.Limit.Sub(line.Spent)
		line.Over = line.Remaining.IsNegative()

		lines = append(lines, line)
	}

	return lines, nil
}

// AnomalyHistoryMonths is how many earlier months SpendingAnomalies averages.
const AnomalyHistoryMonths = 6

var (
	hundred       = decimal.NewFromInt(100)
	anomalyFactor = decimal.NewFromInt(2)
)

// CategoryChange is the spending of one category in two months.
type CategoryChange struct {
	Category string          `json:"category"`
	Current  decimal.Decimal `json:"current"`
	Previous decimal.Decimal `json:"previous"`
	Change   decimal.Decimal `json:"change"`
	// Percent is the change relative to Previous. It is 100 for a category
	// without previous spending.
	Percent decimal.Decimal `json:"percent"`
}

type MonthComparison struct {
	Current    time.Time        `json:"current"`
	Previous   time.Time        `json:"previous"`
	Categories []CategoryChange `json:"categories"`
	Total      CategoryChange   `json:"total"`
}

// CompareMonths compares the category spending of the months containing
// current and previous. Categories are sorted by name.
func CompareMonths(ctx context.Context, s Store, current, previous time.Time) (*MonthComparison, error) {
	currentFrom, currentTo := MonthRange(current)
	previousFrom, previousTo := MonthRange(previous)

	now, err := spendingByCategory(ctx, s, currentFrom, currentTo)
	if err != nil {
		return nil, err
	}

	before, err := spendingByCategory(ctx, s, previousFrom, previousTo)
	if err != nil {
		return nil, err
	}

	categories := map[string]bool{}
	for c := range now {
		categories[c] = true
	}
	for c := range before {
		categories[c] = true
	}

	comparison := &MonthComparison{
		Current:  currentFrom,
		Previous: previousFrom,
		Total:    CategoryChange{Category: "total"},
	}

	for c := range categories {
		change := newChange(c, now[c], before[c])
		comparison.Categories = append(comparison.Categories, change)

		comparison.Total.Current = comparison.Total.Current.Add(change.Current)
		comparison.Total.Previous = comparison.Total.Previous.Add(change.Previous)
	}

	sort.Slice(comparison.Categories, func(i, j int) bool {
		return comparison.Categories[i].Category < comparison.Categories[j].Category
	})

	comparison.Total = newChange("total", comparison.Total.Current, comparison.Total.Previous)

	return comparison, nil
}

func newChange(category string, current, previous decimal.Decimal) CategoryChange {
	change := CategoryChange{
		Category: category,
		Current:  current,
		Previous: previous,
		Change:   current.Sub(previous),
	}

	switch {
	case previous.IsPositive():
		change.Percent = change.Change.Div(previous).Mul(hundred).Round(0)
	case current.IsPositive():
		change.Percent = hundred
	}

	return change
}

func spendingByCategory(ctx context.Context, s Store, from, to time.Time) (map[string]decimal.Decimal, error) {
	totals, err := CategorySpending(ctx, s, from, to)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]decimal.Decimal, len(totals))
	for _, t := range totals {
		byCategory[t.Category] = t.Total
	}

	return byCategory, nil
}

// CategoryMonthlyAverages averages the monthly spending of each category over
// the months calendar months before month. Months without spending in a
// category do not count towards its average.
func CategoryMonthlyAverages(ctx context.Context, s Store, month time.Time, months int) (map[string]decimal.Decimal, error) {
	start, _ := MonthRange(month)

	sums := map[string]decimal.Decimal{}
	counts := map[string]int64{}

	for i := 1; i <= months; i++ {
		from, to := MonthRange(start.AddDate(0, -i, 0))

		spending, err := spendingByCategory(ctx, s, from, to)
		if err != nil {
			return nil, err
		}

		for c, total := range spending {
			sums[c] = sums[c].Add(total)
			counts[c]++
		}
	}

	averages := make(map[string]decimal.Decimal, len(sums))
	for c, sum := range sums {
		averages[c] = sum.Div(decimal.NewFromInt(counts[c])).Round(2)
	}

	return averages, nil
}

// SpendingAnomaly is a category spending more than twice its average.
type SpendingAnomaly struct {
	Category string          `json:"category"`
	Current  decimal.Decimal `json:"current"`
	Average  decimal.Decimal `json:"average"`
	// Increase over the average in percent
	Increase decimal.Decimal `json:"increase"`
}

// SpendingAnomalies flags the categories whose spending in the month of month
// exceeds twice their average over the history earlier months, largest
// increase first.
func SpendingAnomalies(ctx context.Context, s Store, month time.Time, history int) ([]SpendingAnomaly, error) {
	averages, err := CategoryMonthlyAverages(ctx, s, month, history)
	if err != nil {
		return nil, err
	}

	from, to := MonthRange(month)
	current, err := spendingByCategory(ctx, s, from, to)
	if err != nil {
		return nil, err
	}

	anomalies := []SpendingAnomaly{}
	for c, amount := range current {
		average, ok := averages[c]
		if !ok || !average.IsPositive() || !amount.GreaterThan(average.Mul(anomalyFactor)) {
			continue
		}

		anomalies = append(anomalies, SpendingAnomaly{
			Category: c,
			Current:  amount,
			Average:  average,
			Increase: amount.Div(average).Sub(decimal.NewFromInt(1)).Mul(hundred).Round(0),
		})
	}

	sort.Slice(anomalies, func(i, j int) bool {
		if !anomalies[i].Increase.Equal(anomalies[j].Increase) {
			return anomalies[i].Increase.GreaterThan(anomalies[j].Increase)
		}
		return anomalies[i].Category < anomalies[j].Category
	})

	return anomalies, nil
}
