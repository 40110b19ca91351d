// Package store persists canonical transactions, accounts and budgets.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrEmptyPrefix = errors.New("transaction id prefix must not be empty")
)

// Store is everything the CLI and the background jobs need from persistence.
type Store interface {
	financialimporter.Store

	// TransactionsNeedingCategory returns transactions without a category that
	// were not categorized by the user.
	TransactionsNeedingCategory(ctx context.Context) ([]financialimporter.Transaction, error)
	// UpdateCategories writes automatic categories by transaction id. User
	// categories are left untouched.
	UpdateCategories(ctx context.Context, categories map[string]string) (int, error)
	// SetCategory marks every transaction whose id starts with idPrefix as
	// categorized by the user.
	SetCategory(ctx context.Context, idPrefix, category string) (int, error)

	Transactions(ctx context.Context, filter Filter) ([]financialimporter.Transaction, error)
	ListAccounts(ctx context.Context) ([]AccountSummary, error)
	// DeleteAccount removes the account and its transactions, returning the
	// number of transactions removed.
	DeleteAccount(ctx context.Context, id string) (int, error)

	SetBudget(ctx context.Context, budget Budget) error
	Budgets(ctx context.Context) ([]Budget, error)

	Close() error
}

// Filter narrows Transactions. Zero values do not filter. The date range is
// half open: From <= booking date < To.
type Filter struct {
	AccountID   string
	From        time.Time
	To          time.Time
	OutflowOnly bool
}

func (f Filter) matches(t financialimporter.Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}

	if !f.From.IsZero() && t.BookingDate.Before(f.From) {
		return false
	}

	if !f.To.IsZero() && !t.BookingDate.Before(f.To) {
		return false
	}

	if f.OutflowOnly && !t.Amount.IsNegative() {
		return false
	}

	return true
}

type AccountSummary struct {
	ID               string                       `json:"id"`
	Name             string                       `json:"name"`
	Currency         string                       `json:"currency"`
	Source           financialimporter.SourceType `json:"source"`
	TransactionCount int                          `json:"transactionCount"`
	// LatestBooking is zero for accounts without transactions
	LatestBooking time.Time `json:"latestBooking"`
}

// Budget is a monthly spending limit for one category.
type Budget struct {
	Category     string          `json:"category"`
	MonthlyLimit decimal.Decimal `json:"monthlyLimit"`
	Currency     string          `json:"currency"`
}

var (
	_ Store = (*SQL)(nil)
	_ Store = (*Memory)(nil)
)
