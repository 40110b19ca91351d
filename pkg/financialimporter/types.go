package financialimporter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CategorySource records who assigned a transaction's category.
type CategorySource string

const (
	CategoryPending CategorySource = "pending"
	CategoryAuto    CategorySource = "auto"
	CategoryUser    CategorySource = "user"
)

// SourceType is how an account's transactions reach the importer.
type SourceType string

const (
	SourceCSV    SourceType = "csv_import"
	SourceLinked SourceType = "linked"
	SourceWallet SourceType = "wallet"
)

// Transaction is the canonical, deduplicated unit of record.
type Transaction struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"accountId"`
	BookingDate    time.Time       `json:"bookingDate"`
	ValueDate      time.Time       `json:"valueDate"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CreditorName   string          `json:"creditorName,omitempty"`
	DebtorName     string          `json:"debtorName,omitempty"`
	Description    string          `json:"description"`
	MCCCode        string          `json:"mccCode,omitempty"`
	ExternalID     string          `json:"externalId,omitempty"`
	Category       string          `json:"category,omitempty"`
	CategorySource CategorySource  `json:"categorySource"`
}

type Account struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Currency string     `json:"currency"`
	Source   SourceType `json:"source"`
}

// Record is a source-neutral transaction ready for deduplication. CSV rows and
// API sources both produce records.
type Record struct {
	// Row is the 1-based line the record came from, 0 for non file sources
	Row          int
	BookingDate  time.Time
	ValueDate    time.Time
	Amount       decimal.Decimal
	Currency     string
	CreditorName string
	DebtorName   string
	Description  string
	MCCCode      string
	ExternalID   string
}

// DuplicateSample describes a row skipped because its id was already known.
type DuplicateSample struct {
	Row         int             `json:"row"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ImportResult summarizes one import run.
type ImportResult struct {
	RunID            string            `json:"runId"`
	FormatKey        string            `json:"formatKey"`
	FormatName       string            `json:"formatName"`
	AccountID        string            `json:"accountId"`
	AccountName      string            `json:"accountName"`
	TotalRows        int               `json:"totalRows"`
	Imported         int               `json:"imported"`
	DuplicateCount   int               `json:"duplicateCount"`
	DuplicateSamples []DuplicateSample `json:"duplicateSamples"`
	ErrorSamples     []RowError        `json:"errorSamples"`
	ErrorCount       int               `json:"errorCount"`
	NewTransactions  []Transaction     `json:"newTransactions"`
}

// Writer inserts transactions inside a store transaction.
type Writer interface {
	// InsertIfAbsent stores t unless a transaction with the same id exists and
	// reports whether it was stored.
	InsertIfAbsent(ctx context.Context, t *Transaction) (bool, error)
	UpsertAccount(ctx context.Context, account Account) error
}

// Store is the persistence the pipeline needs.
type Store interface {
	ExistingIDs(ctx context.Context, accountID string) (map[string]struct{}, error)
	// WithTx runs fn with a writer bound to a single store transaction.
	WithTx(ctx context.Context, fn func(Writer) error) error
	UpsertAccount(ctx context.Context, account Account) error
}
