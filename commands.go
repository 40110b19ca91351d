package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/finimporter/internal/csvimporter"
	"github.com/bcaldwell/finimporter/internal/ynabimporter"
	"github.com/bcaldwell/finimporter/pkg/categorizer"
	"github.com/bcaldwell/finimporter/pkg/financialimporter"
	"github.com/bcaldwell/finimporter/pkg/formats"
	"github.com/bcaldwell/finimporter/pkg/store"
	"github.com/bcaldwell/finimporter/pkg/subscriptions"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"

	// row errors printed after an import
	shownErrors = 5
)

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

///////////////////////////////////////////////////////////////////////////////////////
// Import
///////////////////////////////////////////////////////////////////////////////////////

type importCmd struct {
	File      string `arg:"" help:"CSV file exported by the bank."`
	Account   string `required:"" help:"Display name of the account."`
	AccountID string `name:"account-id" help:"Account id, derived from the account name when empty."`
	Bank      string `help:"Force a bank format instead of detecting it, see list-banks."`
	Currency  string `help:"Currency of the account, defaults to the configured currency."`
}

func (cmd *importCmd) Run(g *globals, ctx *runContext) error {
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	accountID := cmd.AccountID
	if accountID == "" {
		accountID = financialimporter.AccountIDFromName(cmd.Account)
	}

	currency := cmd.Currency
	if currency == "" {
		currency = a.cfg.Import.DefaultCurrency
	}

	runner := csvimporter.NewImportCSVRunner(a.importer, cmd.File, accountID, financialimporter.ImportOptions{
		AccountName: cmd.Account,
		Format:      formats.Key(cmd.Bank),
		Currency:    currency,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	a.recordImport(result)

	printImportResult(result)

	if result.Imported > 0 {
		pass, err := a.categorize(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Categorized %d of %d pending transactions\n", pass.Updated, pass.Examined)
	}

	return nil
}

func printImportResult(result *financialimporter.ImportResult) {
	fmt.Printf("Format:     %s (%s)\n", result.FormatName, result.FormatKey)
	fmt.Printf("Account:    %s (%s)\n", result.AccountName, result.AccountID)
	fmt.Printf("Rows:       %d\n", result.TotalRows)
	fmt.Printf("Imported:   %d\n", result.Imported)
	fmt.Printf("Duplicates: %d\n", result.DuplicateCount)
	fmt.Printf("Errors:     %d\n", result.ErrorCount)

	for i, rowErr := range result.ErrorSamples {
		if i == shownErrors {
			break
		}
		fmt.Printf("  %s\n", rowErr)
	}
}

type listBanksCmd struct{}

func (cmd *listBanksCmd) Run() error {
	w := newTable()
	fmt.Fprintln(w, "KEY\tNAME")
	for _, f := range formats.Supported() {
		fmt.Fprintf(w, "%s\t%s\n", f.Key, f.Name)
	}
	return w.Flush()
}

///////////////////////////////////////////////////////////////////////////////////////
// Accounts
///////////////////////////////////////////////////////////////////////////////////////

type accountsCmd struct{}

func (cmd *accountsCmd) Run(g *globals, ctx *runContext) error {
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	accounts, err := a.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintln(w, "ID\tNAME\tCURRENCY\tSOURCE\tTRANSACTIONS\tLATEST")
	for _, account := range accounts {
		latest := "-"
		if !account.LatestBooking.IsZero() {
			latest = account.LatestBooking.Format(dayLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			account.ID, account.Name, account.Currency, account.Source, account.TransactionCount, latest)
	}
	return w.Flush()
}

type removeAccountCmd struct {
	ID  string `arg:"" help:"Account id."`
	Yes bool   `help:"Confirm removal of the account and its transactions."`
}

func (cmd *removeAccountCmd) Run(g *globals, ctx *runContext) error {
	if !cmd.Yes {
		return fmt.Errorf("refusing to remove account %s without --yes", cmd.ID)
	}

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.store.DeleteAccount(ctx, cmd.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Removed account %s and %d transactions\n", cmd.ID, removed)
	return nil
}

///////////////////////////////////////////////////////////////////////////////////////
// Categories
///////////////////////////////////////////////////////////////////////////////////////

type categorizeCmd struct{}

func (cmd *categorizeCmd) Run(g *globals, ctx *runContext) error {
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.categorize(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Categorized %d of %d pending transactions\n", result.Updated, result.Examined)

	rules := a.categorizer.Rules()
	w := newTable()
	for _, rule := range rules.Categories {
		if count := result.ByCategory[rule.Name]; count > 0 {
			fmt.Fprintf(w, "%s %s\t%d\n", rule.Emoji, rule.Name, count)
		}
	}
	if count := result.ByCategory[categorizer.Other]; count > 0 {
		fmt.Fprintf(w, "%s\t%d\n", categorizer.Other, count)
	}
	return w.Flush()
}

type setCategoryCmd struct {
	ID       string `arg:"" help:"Transaction id or a unique prefix of it."`
	Category string `arg:"" help:"Category to assign."`
}

func (cmd *setCategoryCmd) Run(g *globals, ctx *runContext) error {
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	updated, err := a.store.SetCategory(ctx, cmd.ID, cmd.Category)
	if err != nil {
		return err
	}
	if updated == 0 {
		return fmt.Errorf("no transaction id starts with %s", cmd.ID)
	}

	fmt.Printf("Set category %s on %d transactions\n", cmd.Category, updated)
	return nil
}

type addRuleCmd struct {
	Pattern  string `arg:"" help:"Merchant name, matched case insensitively."`
	Category string `arg:"" help:"Existing category the merchant belongs to."`
}

func (cmd *addRuleCmd) Run(g *globals) error {
	cfg, _, err := loadConfig(g)
	if err != nil {
		return err
	}

	added, err := addMerchantRule(rulesStore(cfg), cmd.Pattern, categorizer.Category(cmd.Category))
	if err != nil {
		return err
	}

	if !added {
		fmt.Printf("%s is already mapped to %s\n", cmd.Pattern, cmd.Category)
		return nil
	}

	fmt.Printf("Added %s to %s\n", cmd.Pattern, cmd.Category)
	return nil
}

// addMerchantRule adds pattern to category. The categorizer saves the rules
// to rs.
func addMerchantRule(rs categorizer.RuleStore, pattern string, category categorizer.Category) (bool, error) {
	c, err := categorizer.Load(rs)
	if err != nil {
		return false, err
	}

	return c.AddMerchantRule(pattern, category)
}

type exportRulesCmd struct {
	Output string `short:"o" help:"Write the rules to a file instead of stdout."`
}

func (cmd *exportRulesCmd) Run(g *globals) error {
	cfg, _, err := loadConfig(g)
	if err != nil {
		return err
	}

	rules, err := rulesStore(cfg).Load()
	if err != nil {
		return err
	}

	b, err := categorizer.MarshalRules(rules)
	if err != nil {
		return err
	}

	if cmd.Output == "" {
		_, err = os.Stdout.Write(b)
		return err
	}

	return os.WriteFile(cmd.Output, b, 0644)
}

type importRulesCmd struct {
	File string `arg:"" help:"Rules file in yaml or json."`
}

func (cmd *importRulesCmd) Run(g *globals) error {
	cfg, _, err := loadConfig(g)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(cmd.File)
	if err != nil {
		return err
	}

	count, err := importRules(rulesStore(cfg), raw)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d categories\n", count)
	return nil
}

// importRules replaces the rules in rs with the rule file raw and returns the
// number of categories.
func importRules(rs categorizer.RuleStore, raw []byte) (int, error) {
	rules, err := categorizer.ParseRules(raw)
	if err != nil {
		return 0, err
	}

	c, err := categorizer.Load(rs)
	if err != nil {
		return 0, err
	}

	err = c.ReplaceRules(rules)
	if err != nil {
		return 0, err
	}

	return len(rules.Categories), nil
}

///////////////////////////////////////////////////////////////////////////////////////
// Reports
///////////////////////////////////////////////////////////////////////////////////////

type budgetCmd struct {
	Set  budgetSetCmd  `cmd:"" help:"Set the monthly limit of a category."`
	Show budgetShowCmd `cmd:"" help:"Compare budgets with the spending of a month."`
}

type budgetSetCmd struct {
	Category string `arg:"" help:"Category to budget."`
	Amount   string `arg:"" help:"Monthly limit."`
	Currency string `help:"Budget currency, defaults to the configured currency."`
}

func (cmd *budgetSetCmd) Run(g *globals, ctx *runContext) error {
	limit, err := decimal.NewFromString(cmd.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", cmd.Amount, err)
	}
	if limit.IsNegative() {
		return errors.New("budget limit must not be negative")
	}

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	currency := cmd.Currency
	if currency == "" {
		currency = a.cfg.Import.DefaultCurrency
	}

	err = a.store.SetBudget(ctx, store.Budget{Category: cmd.Category, MonthlyLimit: limit, Currency: currency})
	if err != nil {
		return err
	}

	fmt.Printf("Budget for %s set to %s %s\n", cmd.Category, limit.StringFixed(2), currency)
	return nil
}

type budgetShowCmd struct {
	Month string `help:"Month as YYYY-MM, defaults to the current month."`
}

func (cmd *budgetShowCmd) Run(g *globals, ctx *runContext) error {
	month, err := parseMonth(cmd.Month, time.Now())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	lines, err := store.BudgetStatus(ctx, a.store, month)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintf(w, "BUDGET %s\n", month.Format(monthLayout))
	fmt.Fprintln(w, "CATEGORY\tLIMIT\tSPENT\tREMAINING\t")
	for _, line := range lines {
		flag := ""
		if line.Over {
			flag = "over"
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n", line.Category, line.Limit.StringFixed(2), line.Currency,
			line.Spent.StringFixed(2), line.Remaining.StringFixed(2), flag)
	}
	return w.Flush()
}

type spendingCmd struct {
	From string `help:"First day as YYYY-MM-DD, defaults to the start of the current month."`
	To   string `help:"Day after the last one as YYYY-MM-DD, defaults to the start of next month."`
}

func (cmd *spendingCmd) Run(g *globals, ctx *runContext) error {
	from, to := store.MonthRange(time.Now())

	var err error
	if cmd.From != "" {
		if from, err = time.Parse(dayLayout, cmd.From); err != nil {
			return fmt.Errorf("invalid --from %q, expected YYYY-MM-DD", cmd.From)
		}
	}
	if cmd.To != "" {
		if to, err = time.Parse(dayLayout, cmd.To); err != nil {
			return fmt.Errorf("invalid --to %q, expected YYYY-MM-DD", cmd.To)
		}
	}
	if !from.Before(to) {
		return errors.New("--from must be before --to")
	}

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := store.CategoryStats(ctx, a.store, from, to)
	if err != nil {
		return err
	}

	rules := a.categorizer.Rules()
	total := decimal.Zero

	w := newTable()
	fmt.Fprintf(w, "SPENDING %s - %s\n", from.Format(dayLayout), to.AddDate(0, 0, -1).Format(dayLayout))
	fmt.Fprintln(w, "CATEGORY\tCOUNT\tTOTAL\tAVERAGE")
	for _, stat := range stats {
		total = total.Add(stat.Total)
		fmt.Fprintf(w, "%s %s\t%d\t%s\t%s\n", rules.Emoji(categorizer.Category(stat.Category)), stat.Category,
			stat.Count, stat.Total.StringFixed(2), stat.Average.StringFixed(2))
	}
	fmt.Fprintf(w, "total\t\t%s\t\n", total.StringFixed(2))
	return w.Flush()
}

func parseMonth(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}

	month, err := time.Parse(monthLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", value)
	}
	return month, nil
}

///////////////////////////////////////////////////////////////////////////////////////
// Insights
///////////////////////////////////////////////////////////////////////////////////////

type compareCmd struct {
	Month    string `help:"Month as YYYY-MM, defaults to the current month."`
	Previous string `help:"Month to compare with as YYYY-MM, defaults to the month before."`
}

func (cmd *compareCmd) Run(g *globals, ctx *runContext) error {
	current, err := parseMonth(cmd.Month, time.Now())
	if err != nil {
		return err
	}
	currentFrom, _ := store.MonthRange(current)

	previous, err := parseMonth(cmd.Previous, currentFrom.AddDate(0, -1, 0))
	if err != nil {
		return err
	}

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	comparison, err := store.CompareMonths(ctx, a.store, current, previous)
	if err != nil {
		return err
	}

	anomalies, err := store.SpendingAnomalies(ctx, a.store, current, store.AnomalyHistoryMonths)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintf(w, "SPENDING %s vs %s\n", comparison.Current.Format(monthLayout), comparison.Previous.Format(monthLayout))
	fmt.Fprintln(w, "CATEGORY\tCURRENT\tPREVIOUS\tCHANGE\t")
	for _, c := range append(comparison.Categories, comparison.Total) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%%\n", c.Category, c.Current.StringFixed(2), c.Previous.StringFixed(2),
			c.Change.StringFixed(2), c.Percent.String())
	}

	if len(anomalies) > 0 {
		fmt.Fprintf(w, "\nUNUSUAL SPENDING (%d month average)\n", store.AnomalyHistoryMonths)
		fmt.Fprintln(w, "CATEGORY\tCURRENT\tAVERAGE\tINCREASE")
		for _, an := range anomalies {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s%%\n", an.Category, an.Current.StringFixed(2), an.Average.StringFixed(2),
				an.Increase.String())
		}
	}
	return w.Flush()
}

type subscriptionsCmd struct {
	Months int `default:"6" help:"Months of history to analyze."`
}

func (cmd *subscriptionsCmd) Run(g *globals, ctx *runContext) error {
	if cmd.Months < 1 {
		return errors.New("--months must be at least 1")
	}

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	found, err := subscriptions.Detect(ctx, a.store, time.Now().AddDate(0, -cmd.Months, 0))
	if err != nil {
		return err
	}

	if len(found) == 0 {
		fmt.Println("No recurring charges found")
		return nil
	}

	total := decimal.Zero
	w := newTable()
	fmt.Fprintln(w, "NAME\tCATEGORY\tAMOUNT\tFREQUENCY\tMONTHLY\tLAST CHARGE\tCONFIDENCE")
	for _, s := range found {
		total = total.Add(s.MonthlyCost)
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\t%.0f%%\n", s.Name, s.Category, s.Amount.StringFixed(2), s.Currency,
			s.Frequency, s.MonthlyCost.StringFixed(2), s.LastCharge.Format(dayLayout), s.Confidence*100)
	}
	fmt.Fprintf(w, "total per month\t\t\t\t%s\t\t\n", total.StringFixed(2))
	return w.Flush()
}

type suggestCmd struct {
	Apply bool `help:"Store the categories the current rules suggest."`
}

func (cmd *suggestCmd) Run(g *globals, ctx *runContext) error {
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	suggestions, err := a.categorizer.SuggestRecategorization(ctx, a.store, time.Now())
	if err != nil {
		return err
	}

	if len(suggestions) == 0 {
		fmt.Println("No suggestions")
		return nil
	}

	w := newTable()
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tDESCRIPTION\tCATEGORY\tSUGGESTION")
	for _, s := range suggestions {
		t := s.Transaction
		hint := string(s.Suggested)
		if s.Reason != categorizer.ReasonRuleMatch {
			hint = fmt.Sprintf("%s, average %s", s.Reason, s.CategoryAverage.StringFixed(2))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", shortID(t.ID), t.BookingDate.Format(dayLayout), t.Amount.StringFixed(2),
			payee(t), t.Category, hint)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !cmd.Apply {
		return nil
	}

	updated, err := a.store.UpdateCategories(ctx, ruleMatchCategories(suggestions))
	if err != nil {
		return err
	}

	fmt.Printf("Updated %d transactions\n", updated)
	return nil
}

// shortID is enough of an id for set-category to find it.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func payee(t financialimporter.Transaction) string {
	for _, name := range []string{t.CreditorName, t.DebtorName, t.Description} {
		if name != "" {
			return name
		}
	}
	return "-"
}

// ruleMatchCategories keys the categories of rule match suggestions by
// transaction id. Amount suggestions have nothing to apply.
func ruleMatchCategories(suggestions []categorizer.Suggestion) map[string]string {
	categories := map[string]string{}
	for _, s := range suggestions {
		if s.Reason == categorizer.ReasonRuleMatch {
			categories[s.Transaction.ID] = string(s.Suggested)
		}
	}
	return categories
}

///////////////////////////////////////////////////////////////////////////////////////
// Sources
///////////////////////////////////////////////////////////////////////////////////////

type ynabCmd struct{}

func (cmd *ynabCmd) Run(g *globals, ctx *runContext) error {
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	return newSyncRunner(a).importYNAB(ctx)
}

type watchCmd struct {
	SingleRun bool `name:"single-run" help:"Run the import once and exit."`
}

func (cmd *watchCmd) Run(g *globals, ctx *runContext) error {
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	return watch(ctx, a.cfg.Schedule.UpdateFrequency, newSyncRunner(a), cmd.SingleRun)
}

var errNoYnabToken = errors.New("ynab access token is not configured")

func ynabRunner(a *app) (*ynabimporter.ImportYNABRunner, error) {
	token := a.secrets.Ynab.YnabAccessToken
	if token == "" {
		return nil, errNoYnabToken
	}

	return ynabimporter.NewImportYNABRunner(token, a.importer, a.cfg.Ynab.Budgets, a.cfg.Import.DefaultCurrency), nil
}
