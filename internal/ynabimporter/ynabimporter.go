package ynabimporter

import (
	"context"
	"fmt"
	"time"

	"github.com/davidsteinsland/ynab-go/ynab"
	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/pkg/config"
	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

const importAfterLayout = "01-02-2006"

type listTransactionsFunc func(budgetID string) ([]ynab.TransactionDetail, error)

// ImportYNABRunner pulls transactions of the configured YNAB budgets into the
// pipeline. Every budget is stored as one linked account.
type ImportYNABRunner struct {
	listTransactions listTransactionsFunc
	importer         *financialimporter.TransactionImporter
	budgets          []config.YnabBudget
	defaultCurrency  string
}

func NewImportYNABRunner(token string, importer *financialimporter.TransactionImporter, budgets []config.YnabBudget, defaultCurrency string) *ImportYNABRunner {
	ynabClient := ynab.NewDefaultClient(token)

	return &ImportYNABRunner{
		// need to get transactions from transaction service to have the memo and payee data
		listTransactions: ynabClient.TransactionsService.List,
		importer:         importer,
		budgets:          budgets,
		defaultCurrency:  defaultCurrency,
	}
}

func (r *ImportYNABRunner) Run(ctx context.Context) ([]*financialimporter.ImportResult, error) {
	results := make([]*financialimporter.ImportResult, 0, len(r.budgets))

	for _, b := range r.budgets {
		result, err := r.importBudget(ctx, b)
		if err != nil {
			return results, fmt.Errorf("failed to import budget %s: %w", b.Name, err)
		}

		klog.Infof("Wrote %d transactions to sql from budget %s (%d duplicates, %d errors)",
			result.Imported, b.Name, result.DuplicateCount, result.ErrorCount)

		results = append(results, result)
	}

	return results, nil
}

func (r *ImportYNABRunner) importBudget(ctx context.Context, b config.YnabBudget) (*financialimporter.ImportResult, error) {
	importAfterDate := time.Time{}
	if b.ImportAfterDate != "" {
		var err error
		importAfterDate, err = time.Parse(importAfterLayout, b.ImportAfterDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse import after date %s: %w", b.ImportAfterDate, err)
		}
	}

	transactions, err := r.listTransactions(b.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting transactions: %w", err)
	}

	return r.importer.IngestRecords(ctx, budgetAccount(b, r.defaultCurrency), toRecords(transactions, importAfterDate))
}

func budgetAccount(b config.YnabBudget, defaultCurrency string) financialimporter.Account {
	id := b.AccountID
	if id == "" {
		id = financialimporter.AccountIDFromName("ynab " + b.Name)
	}

	currency := b.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	return financialimporter.Account{
		ID:       id,
		Name:     b.Name,
		Currency: currency,
		Source:   financialimporter.SourceLinked,
	}
}
