package csvimporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
	"github.com/bcaldwell/finimporter/pkg/formats"
	"github.com/bcaldwell/finimporter/pkg/store"
)

const statement = "Date,Amount,Description\n2025-04-01,-20.00,Migros\n2025-04-02,1500.00,Salary\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestImportCSVRunner(t *testing.T) {
	s := store.NewMemory()
	importer := financialimporter.NewTransactionImporter(s, formats.Default(), 0)

	path := filepath.Join(t.TempDir(), "statement.csv")
	writeFile(t, path, statement)

	runner := NewImportCSVRunner(importer, path, "acct", financialimporter.ImportOptions{AccountName: "Checking"})
	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, "Checking", result.AccountName)

	_, err = NewImportCSVRunner(importer, filepath.Join(t.TempDir(), "missing.csv"), "acct", financialimporter.ImportOptions{}).Run(context.Background())
	assert.Error(t, err)
}

func TestImportCSVRunnerUsesFilenameHint(t *testing.T) {
	importer := financialimporter.NewTransactionImporter(store.NewMemory(), formats.Default(), 0)

	path := filepath.Join(t.TempDir(), "postfinance-2025-04.csv")
	writeFile(t, path, "Datum;Gutschrift;Lastschrift;Buchungsdetails\n01.04.2025;;12.50;Migros\n")

	result, err := NewImportCSVRunner(importer, path, "acct", financialimporter.ImportOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "postfinance", result.FormatKey)
	require.Equal(t, 1, result.Imported)
	assert.Equal(t, "-12.5", result.NewTransactions[0].Amount.String())
}

func TestInboxRunner(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	importer := financialimporter.NewTransactionImporter(s, formats.Default(), 0)

	inbox := t.TempDir()
	writeFile(t, filepath.Join(inbox, "checking", "a.csv"), statement)
	writeFile(t, filepath.Join(inbox, "checking", "b.CSV"), statement)
	writeFile(t, filepath.Join(inbox, "checking", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(inbox, "card", "broken.csv"), "Description\nno date or amount\n")
	writeFile(t, filepath.Join(inbox, "stray.csv"), statement)

	results, err := NewInboxRunner(importer, inbox, "CHF").Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// directories are read in name order
	assert.Equal(t, "card", results[0].AccountID)
	assert.ErrorIs(t, results[0].Err, financialimporter.ErrMissingColumn)
	assert.Nil(t, results[0].Result)

	require.NoError(t, results[1].Err)
	assert.Equal(t, 2, results[1].Result.Imported)
	require.NoError(t, results[2].Err)
	assert.Equal(t, 0, results[2].Result.Imported)
	assert.Equal(t, 2, results[2].Result.DuplicateCount)

	assert.FileExists(t, filepath.Join(inbox, "checking", ProcessedDir, "a.csv"))
	assert.FileExists(t, filepath.Join(inbox, "checking", ProcessedDir, "b.CSV"))
	assert.FileExists(t, filepath.Join(inbox, "checking", "notes.txt"))
	assert.FileExists(t, filepath.Join(inbox, "card", FailedDir, "broken.csv"))
	assert.FileExists(t, filepath.Join(inbox, "stray.csv"))

	stored, err := s.Transactions(ctx, store.Filter{AccountID: "checking"})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "CHF", stored[0].Currency)

	// processed files are not picked up again
	results, err = NewInboxRunner(importer, inbox, "CHF").Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInboxRunnerMissingDir(t *testing.T) {
	importer := financialimporter.NewTransactionImporter(store.NewMemory(), formats.Default(), 0)

	results, err := NewInboxRunner(importer, filepath.Join(t.TempDir(), "nope"), "EUR").Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
