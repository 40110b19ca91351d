package csvimporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// FileResult is the outcome of importing one inbox file. Exactly one of
// Result and Err is set.
type FileResult struct {
	File      string
	AccountID string
	Result    *financialimporter.ImportResult
	Err       error
}

// InboxRunner imports every CSV file below dir. Each subdirectory of dir is an
// account id: <dir>/<account-id>/*.csv. Imported files are moved to
// <account-id>/processed and files failing with a structural error to
// <account-id>/failed.
type InboxRunner struct {
	importer *financialimporter.TransactionImporter
	dir      string
	currency string
}

func NewInboxRunner(importer *financialimporter.TransactionImporter, dir, currency string) *InboxRunner {
	return &InboxRunner{importer: importer, dir: dir, currency: currency}
}

func (r *InboxRunner) Run(ctx context.Context) ([]FileResult, error) {
	accounts, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		klog.V(1).Infof("Inbox %s does not exist, nothing to import", r.dir)
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read inbox %s: %w", r.dir, err)
	}

	results := []FileResult{}

	for _, account := range accounts {
		if !account.IsDir() {
			continue
		}

		accountID := account.Name()
		accountDir := filepath.Join(r.dir, accountID)

		files, err := csvFiles(accountDir)
		if err != nil {
			return results, err
		}

		for _, file := range files {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}

			results = append(results, r.importFile(ctx, accountDir, accountID, file))
		}
	}

	return results, nil
}

func (r *InboxRunner) importFile(ctx context.Context, accountDir, accountID, file string) FileResult {
	path := filepath.Join(accountDir, file)
	fileResult := FileResult{File: path, AccountID: accountID}

	runner := NewImportCSVRunner(r.importer, path, accountID, financialimporter.ImportOptions{
		AccountName: accountID,
		Currency:    r.currency,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		fileResult.Err = err

		var importErr *financialimporter.ImportError
		if errors.As(err, &importErr) {
			klog.Warningf("Moving %s to %s: %v", path, FailedDir, err)
			if moveErr := move(accountDir, FailedDir, file); moveErr != nil {
				klog.Warningf("Failed to move %s: %v", path, moveErr)
			}
		}

		return fileResult
	}

	fileResult.Result = result

	err = move(accountDir, ProcessedDir, file)
	if err != nil {
		// the file is re-read next run, which only produces duplicates
		klog.Warningf("Failed to move %s to %s: %v", path, ProcessedDir, err)
	}

	return fileResult
}

func csvFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	files := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, e.Name())
		}
	}

	sort.Strings(files)
	return files, nil
}

func move(accountDir, target, file string) error {
	targetDir := filepath.Join(accountDir, target)

	err := os.MkdirAll(targetDir, 0755)
	if err != nil {
		return err
	}

	return os.Rename(filepath.Join(accountDir, file), filepath.Join(targetDir, file))
}
