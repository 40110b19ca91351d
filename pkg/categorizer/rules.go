package categorizer

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ghodss/yaml"
)

// Category is a spending category label.
type Category string

// Categories the heuristics can produce on their own. Rule sets may define
// any other names.
const (
	Groceries     Category = "groceries"
	Dining        Category = "dining"
	Transport     Category = "transport"
	Shopping      Category = "shopping"
	Subscriptions Category = "subscriptions"
	Utilities     Category = "utilities"
	Entertainment Category = "entertainment"
	Health        Category = "health"
	Housing       Category = "housing"
	Transfers     Category = "transfers"
	Income        Category = "income"
	Other         Category = "other"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrNoCategories    = errors.New("rule set has no categories")
)

//go:embed defaults.yml
var defaultRules []byte

// Rule matches transaction text to one category.
type Rule struct {
	Name     Category `json:"name"`
	Emoji    string   `json:"emoji,omitempty"`
	Keywords []string `json:"keywords"`
	Patterns []string `json:"patterns"`
}

// RuleSet is the ordered list of category rules plus the merchant category
// code table. Order is significant: the first matching rule wins.
type RuleSet struct {
	Categories  []Rule              `json:"categories"`
	MCCMappings map[string]Category `json:"mcc_mappings"`
}

// DefaultRules returns a fresh copy of the built in rule set.
func DefaultRules() RuleSet {
	rules, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("invalid default category rules: %v", err))
	}
	return rules
}

// ParseRules reads a yaml or json rule set and validates it.
func ParseRules(raw []byte) (RuleSet, error) {
	rules := RuleSet{}

	err := yaml.Unmarshal(raw, &rules)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse category rules: %w", err)
	}

	return rules, rules.Validate()
}

// MarshalRules renders rules as yaml.
func MarshalRules(rules RuleSet) ([]byte, error) {
	return yaml.Marshal(rules)
}

// Validate checks names are present and unique and every pattern compiles.
func (rs RuleSet) Validate() error {
	if len(rs.Categories) == 0 {
		return ErrNoCategories
	}

	seen := map[Category]bool{}
	for i, r := range rs.Categories {
		if r.Name == "" {
			return fmt.Errorf("category %d has no name", i)
		}

		if seen[r.Name] {
			return fmt.Errorf("category %s is defined twice", r.Name)
		}
		seen[r.Name] = true

		for _, p := range r.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("category %s: invalid pattern %q: %w", r.Name, p, err)
			}
		}
	}

	return nil
}

// Clone deep copies rs.
func (rs RuleSet) Clone() RuleSet {
	c := RuleSet{
		Categories:  make([]Rule, len(rs.Categories)),
		MCCMappings: make(map[string]Category, len(rs.MCCMappings)),
	}

	for i, r := range rs.Categories {
		c.Categories[i] = Rule{
			Name:     r.Name,
			Emoji:    r.Emoji,
			Keywords: append([]string(nil), r.Keywords...),
			Patterns: append([]string(nil), r.Patterns...),
		}
	}

	for code, category := range rs.MCCMappings {
		c.MCCMappings[code] = category
	}

	return c
}

// Emoji returns the display glyph of category, if the rule set has one.
func (rs RuleSet) Emoji(category Category) string {
	for _, r := range rs.Categories {
		if r.Name == category {
			return r.Emoji
		}
	}
	return ""
}

// MerchantPattern is the case insensitive pattern that matches text
// containing merchant literally.
func MerchantPattern(merchant string) string {
	return "(?i).*" + regexp.QuoteMeta(merchant) + ".*"
}

// addPattern appends pattern to category, reporting false when it was already
// there.
func (rs *RuleSet) addPattern(category Category, pattern string) (bool, error) {
	name := Category(strings.ToLower(string(category)))

	for i := range rs.Categories {
		if rs.Categories[i].Name != name {
			continue
		}

		for _, p := range rs.Categories[i].Patterns {
			if p == pattern {
				return false, nil
			}
		}

		rs.Categories[i].Patterns = append(rs.Categories[i].Patterns, pattern)
		return true, nil
	}

	return false, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
}
