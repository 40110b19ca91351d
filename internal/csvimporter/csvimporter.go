package csvimporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

// ImportCSVRunner imports a single CSV file into one account.
type ImportCSVRunner struct {
	importer  *financialimporter.TransactionImporter
	csvFile   string
	accountID string
	opts      financialimporter.ImportOptions
}

func NewImportCSVRunner(importer *financialimporter.TransactionImporter, csvFile, accountID string, opts financialimporter.ImportOptions) *ImportCSVRunner {
	if opts.Filename == "" {
		opts.Filename = filepath.Base(csvFile)
	}

	return &ImportCSVRunner{
		importer:  importer,
		csvFile:   csvFile,
		accountID: accountID,
		opts:      opts,
	}
}

func (i *ImportCSVRunner) Run(ctx context.Context) (*financialimporter.ImportResult, error) {
	content, err := os.ReadFile(i.csvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s csv file: %w", i.csvFile, err)
	}

	result, err := i.importer.ImportCSV(ctx, content, i.accountID, i.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", i.csvFile, err)
	}

	klog.Infof("Wrote %d transactions to sql from csv file %s (%s, %d duplicates, %d errors)",
		result.Imported, i.csvFile, result.FormatName, result.DuplicateCount, result.ErrorCount)

	return result, nil
}
