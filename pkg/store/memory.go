package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

// Memory keeps everything in process. It is used by tests and one-off runs.
type Memory struct {
	mu           sync.Mutex
	transactions map[string]financialimporter.Transaction
	accounts     map[string]financialimporter.Account
	budgets      map[string]Budget
}

func NewMemory() *Memory {
	return &Memory{
		transactions: map[string]financialimporter.Transaction{},
		accounts:     map[string]financialimporter.Account{},
		budgets:      map[string]Budget{},
	}
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) ExistingIDs(_ context.Context, accountID string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := map[string]struct{}{}
	for id, t := range m.transactions {
		if t.AccountID == accountID {
			known[id] = struct{}{}
		}
	}

	return known, nil
}

// WithTx stages inserts and applies them only when fn succeeds.
func (m *Memory) WithTx(_ context.Context, fn func(financialimporter.Writer) error) error {
	w := &memoryWriter{
		store:    m,
		staged:   map[string]financialimporter.Transaction{},
		accounts: map[string]financialimporter.Account{},
	}

	err := fn(w)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range w.staged {
		m.transactions[id] = t
	}

	for id, account := range w.accounts {
		m.accounts[id] = account
	}

	return nil
}

type memoryWriter struct {
	store    *Memory
	staged   map[string]financialimporter.Transaction
	accounts map[string]financialimporter.Account
}

func (w *memoryWriter) UpsertAccount(_ context.Context, account financialimporter.Account) error {
	w.accounts[account.ID] = account
	return nil
}

func (w *memoryWriter) InsertIfAbsent(_ context.Context, t *financialimporter.Transaction) (bool, error) {
	if _, ok := w.staged[t.ID]; ok {
		return false, nil
	}

	w.store.mu.Lock()
	_, exists := w.store.transactions[t.ID]
	w.store.mu.Unlock()

	if exists {
		return false, nil
	}

	stored := *t
	if stored.CategorySource == "" {
		stored.CategorySource = financialimporter.CategoryPending
	}
	w.staged[t.ID] = stored

	return true, nil
}

func (m *Memory) UpsertAccount(_ context.Context, account financialimporter.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[account.ID] = account
	return nil
}

func (m *Memory) TransactionsNeedingCategory(_ context.Context) ([]financialimporter.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := []financialimporter.Transaction{}
	for _, t := range m.transactions {
		if t.Category == "" && t.CategorySource != financialimporter.CategoryUser {
			pending = append(pending, t)
		}
	}

	sortTransactions(pending)
	return pending, nil
}

func (m *Memory) UpdateCategories(_ context.Context, categories map[string]string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for id, category := range categories {
		t, ok := m.transactions[id]
		if !ok || t.CategorySource == financialimporter.CategoryUser {
			continue
		}

		t.Category = category
		t.CategorySource = financialimporter.CategoryAuto
		m.transactions[id] = t
		updated++
	}

	return updated, nil
}

func (m *Memory) SetCategory(_ context.Context, idPrefix, category string) (int, error) {
	if idPrefix == "" {
		return 0, ErrEmptyPrefix
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for id, t := range m.transactions {
		if !strings.HasPrefix(id, idPrefix) {
			continue
		}

		t.Category = category
		t.CategorySource = financialimporter.CategoryUser
		m.transactions[id] = t
		updated++
	}

	return updated, nil
}

func (m *Memory) Transactions(_ context.Context, filter Filter) ([]financialimporter.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []financialimporter.Transaction{}
	for _, t := range m.transactions {
		if filter.matches(t) {
			matched = append(matched, t)
		}
	}

	sortTransactions(matched)
	return matched, nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]AccountSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summaries := make([]AccountSummary, 0, len(m.accounts))
	for _, a := range m.accounts {
		summary := AccountSummary{ID: a.ID, Name: a.Name, Currency: a.Currency, Source: a.Source}

		for _, t := range m.transactions {
			if t.AccountID != a.ID {
				continue
			}

			summary.TransactionCount++
			if t.BookingDate.After(summary.LatestBooking) {
				summary.LatestBooking = t.BookingDate
			}
		}

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Name != summaries[j].Name {
			return summaries[i].Name < summaries[j].Name
		}
		return summaries[i].ID < summaries[j].ID
	})

	return summaries, nil
}

func (m *Memory) DeleteAccount(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for txID, t := range m.transactions {
		if t.AccountID == id {
			delete(m.transactions, txID)
			removed++
		}
	}

	_, ok := m.accounts[id]
	if !ok && removed == 0 {
		return 0, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	delete(m.accounts, id)

	return removed, nil
}

func (m *Memory) SetBudget(_ context.Context, budget Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.budgets[budget.Category] = budget
	return nil
}

func (m *Memory) Budgets(_ context.Context) ([]Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	budgets := make([]Budget, 0, len(m.budgets))
	for _, b := range m.budgets {
		budgets = append(budgets, b)
	}

	sort.Slice(budgets, func(i, j int) bool { return budgets[i].Category < budgets[j].Category })
	return budgets, nil
}

func sortTransactions(ts []financialimporter.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].BookingDate.Equal(ts[j].BookingDate) {
			return ts[i].BookingDate.Before(ts[j].BookingDate)
		}
		return ts[i].ID < ts[j].ID
	})
}
