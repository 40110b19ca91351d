// Package categorizer assigns spending categories to transactions with a
// fixed precedence of rules and heuristics.
package categorizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

var (
	incomeThreshold      = decimal.NewFromInt(1000)
	housingThreshold     = decimal.NewFromInt(1000)
	smallAmountThreshold = decimal.NewFromInt(5)
	weekendDiningMin     = decimal.NewFromInt(20)
	weekendDiningMax     = decimal.NewFromInt(150)

	feeKeywords = []string{"fee", "gebühr", "charge"}
)

type compiledRule struct {
	name     Category
	patterns []*regexp.Regexp
	keywords []string
}

// Categorizer runs the category cascade. It is safe for concurrent use.
type Categorizer struct {
	mu       sync.RWMutex
	rules    RuleSet
	compiled []compiledRule
	store    RuleStore
}

// New builds a categorizer over rules. Rule changes are not persisted.
func New(rules RuleSet) *Categorizer {
	c := &Categorizer{}
	c.setRules(rules)
	return c
}

// Load builds a categorizer from the rules in store. Rule changes are saved
// back to it.
func Load(store RuleStore) (*Categorizer, error) {
	rules, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load category rules: %w", err)
	}

	c := New(rules)
	c.store = store
	return c, nil
}

func (c *Categorizer) setRules(rules RuleSet) {
	rules = rules.Clone()
	compiled := make([]compiledRule, 0, len(rules.Categories))

	for _, r := range rules.Categories {
		cr := compiledRule{name: r.Name}

		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				klog.Warningf("skipping invalid pattern %q of category %s: %v", p, r.Name, err)
				continue
			}
			cr.patterns = append(cr.patterns, re)
		}

		for _, k := range r.Keywords {
			cr.keywords = append(cr.keywords, strings.ToLower(k))
		}

		compiled = append(compiled, cr)
	}

	c.rules = rules
	c.compiled = compiled
}

// Rules returns a copy of the active rule set.
func (c *Categorizer) Rules() RuleSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules.Clone()
}

// Categorize returns the category for t. The first matching step wins:
// user override, merchant text rules in rule order, merchant category code,
// amount heuristics, weekend dining, then Other.
func (c *Categorizer) Categorize(t financialimporter.Transaction) Category {
	if t.CategorySource == financialimporter.CategoryUser {
		if t.Category == "" {
			return Other
		}
		return Category(t.Category)
	}

	text := strings.ToLower(t.CreditorName + " " + t.DebtorName + " " + t.Description)

	c.mu.RLock()
	category, ok := c.matchText(text)
	if !ok {
		category, ok = c.matchMCC(t.MCCCode)
	}
	c.mu.RUnlock()

	if ok {
		return category
	}

	if category, ok := amountHeuristic(t.Amount, text); ok {
		return category
	}

	if weekendDining(t.BookingDate, t.Amount) {
		return Dining
	}

	return Other
}

// CategorizeBatch categorizes each transaction independently, keyed by id.
func (c *Categorizer) CategorizeBatch(transactions []financialimporter.Transaction) map[string]Category {
	results := make(map[string]Category, len(transactions))
	for _, t := range transactions {
		results[t.ID] = c.Categorize(t)
	}
	return results
}

func (c *Categorizer) matchText(text string) (Category, bool) {
	for _, r := range c.compiled {
		for _, re := range r.patterns {
			if re.MatchString(text) {
				return r.name, true
			}
		}

		for _, k := range r.keywords {
			if strings.Contains(text, k) {
				return r.name, true
			}
		}
	}

	return "", false
}

func (c *Categorizer) matchMCC(code string) (Category, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}

	category, ok := c.rules.MCCMappings[code]
	return category, ok
}

// amountHeuristic guesses from sign and size. Inflows are income or
// transfers; tiny outflows are fees or digital purchases and large ones are
// rent or mortgage. Thresholds are in account currency units.
func amountHeuristic(amount decimal.Decimal, text string) (Category, bool) {
	if amount.IsPositive() {
		if amount.GreaterThan(incomeThreshold) {
			return Income, true
		}
		return Transfers, true
	}

	abs := amount.Abs()

	if abs.LessThan(smallAmountThreshold) {
		for _, k := range feeKeywords {
			if strings.Contains(text, k) {
				return Utilities, true
			}
		}
		return Subscriptions, true
	}

	if abs.GreaterThan(housingThreshold) {
		return Housing, true
	}

	return "", false
}

func weekendDining(day time.Time, amount decimal.Decimal) bool {
	if day.IsZero() {
		return false
	}

	switch day.Weekday() {
	case time.Saturday, time.Sunday:
	default:
		return false
	}

	abs := amount.Abs()
	return abs.GreaterThanOrEqual(weekendDiningMin) && abs.LessThanOrEqual(weekendDiningMax)
}

// AddMerchantRule adds a pattern matching merchant anywhere in the text to
// category and saves the rule set. added is false when the pattern already
// existed. An unknown category returns ErrUnknownCategory.
func (c *Categorizer) AddMerchantRule(merchant string, category Category) (added bool, err error) {
	merchant = strings.TrimSpace(merchant)
	if merchant == "" {
		return false, errors.New("merchant pattern must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rules := c.rules.Clone()

	added, err = rules.addPattern(category, MerchantPattern(merchant))
	if err != nil || !added {
		return false, err
	}

	if c.store != nil {
		err = c.store.Save(rules)
		if err != nil {
			return false, fmt.Errorf("failed to save category rules: %w", err)
		}
	}

	c.setRules(rules)
	klog.V(1).Infof("Added merchant rule %q to %s", merchant, category)

	return true, nil
}

// ReplaceRules validates rules, saves them and makes them active.
func (c *Categorizer) ReplaceRules(rules RuleSet) error {
	err := rules.Validate()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		err = c.store.Save(rules)
		if err != nil {
			return fmt.Errorf("failed to save category rules: %w", err)
		}
	}

	c.setRules(rules)
	return nil
}
