package financialimporter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bcaldwell/finimporter/pkg/formats"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"k8s.io/klog"
)

const (
	DefaultCurrency    = "EUR"
	DefaultSampleLimit = 10

	sampleDescriptionLength = 50
)

// Header names of separate debit and credit columns, across the languages the
// format catalog covers.
var (
	debitHeaders  = []string{"Debit", "Lastschrift", "Débit", "Money Out", "Paid Out", "Debit Amount"}
	creditHeaders = []string{"Credit", "Gutschrift", "Crédit", "Money In", "Paid In", "Credit Amount"}
)

// ImportOptions tune a single CSV import.
type ImportOptions struct {
	AccountName string
	// Format forces a catalog entry instead of detecting one
	Format   formats.Key
	Currency string
	// Filename is used as a detection hint
	Filename string
}

type TransactionImporter struct {
	store       Store
	registry    *formats.Registry
	sampleLimit int
}

func NewTransactionImporter(store Store, registry *formats.Registry, sampleLimit int) *TransactionImporter {
	if registry == nil {
		registry = formats.Default()
	}

	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}

	return &TransactionImporter{
		store:       store,
		registry:    registry,
		sampleLimit: sampleLimit,
	}
}

type columns struct {
	date, amount, description int
	debit, credit             int
}

func (c columns) required() int {
	return max(c.date, c.amount) + 1
}

func (c columns) split() bool {
	return c.debit >= 0 && c.credit >= 0
}

// ImportCSV imports a bank CSV export into accountID. Structural problems
// return an *ImportError before anything is written; row problems are
// collected in the result.
func (importer *TransactionImporter) ImportCSV(ctx context.Context, content []byte, accountID string, opts ImportOptions) (*ImportResult, error) {
	detection, err := importer.resolveFormat(content, opts)
	if err != nil {
		return nil, err
	}

	format := detection.Format
	klog.V(1).Infof("using format %s (score %d, filename hint %t) for account %s", format.Key, detection.Score, detection.ByFilename, accountID)

	currency := opts.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	result := importer.newResult(accountID)
	result.FormatKey = string(format.Key)
	result.FormatName = format.Name
	result.AccountName = opts.AccountName
	if result.AccountName == "" {
		result.AccountName = "CSV Import - " + format.Name
	}

	text := decodeContent(content, format.Encoding)

	records, err := importer.parseRows(text, detection, currency, result)
	if err != nil {
		return nil, err
	}

	account := Account{
		ID:       accountID,
		Name:     result.AccountName,
		Currency: currency,
		Source:   SourceCSV,
	}

	err = importer.ingest(ctx, account, records, result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// IngestRecords runs already parsed records from a non file source through
// deduplication and storage.
func (importer *TransactionImporter) IngestRecords(ctx context.Context, account Account, records []Record) (*ImportResult, error) {
	result := importer.newResult(account.ID)
	result.FormatKey = string(account.Source)
	result.FormatName = string(account.Source)
	result.AccountName = account.Name
	result.TotalRows = len(records)

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.BookingDate.IsZero() {
			importer.addError(result, r.Row, "missing booking date")
			continue
		}

		if r.Amount.IsZero() {
			continue
		}

		if r.Currency == "" {
			r.Currency = account.Currency
		}

		kept = append(kept, r)
	}

	err := importer.ingest(ctx, account, kept, result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (importer *TransactionImporter) resolveFormat(content []byte, opts ImportOptions) (formats.Detection, error) {
	if opts.Format != "" {
		f, ok := importer.registry.Lookup(opts.Format)
		if !ok {
			return formats.Detection{}, &ImportError{Err: ErrUnknownFormat, Detail: string(opts.Format)}
		}
		return formats.Detection{Format: f, Delimiter: f.Comma()}, nil
	}

	return importer.registry.Detect(decodeContent(content, previewEncoding), opts.Filename), nil
}

func (importer *TransactionImporter) parseRows(text string, detection formats.Detection, currency string, result *ImportResult) ([]Record, error) {
	format := detection.Format

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detection.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err == io.EOF || (err == nil && len(headers) == 0) {
		return nil, &ImportError{Format: string(format.Key), Err: ErrEmptyFile}
	} else if err != nil {
		return nil, &ImportError{Format: string(format.Key), Err: ErrEmptyFile, Detail: err.Error()}
	}

	cols := columns{
		date:        formats.FindColumn(headers, format.DateColumns),
		amount:      formats.FindColumn(headers, format.AmountColumns),
		description: formats.FindColumn(headers, format.DescriptionColumns),
		debit:       findFirstColumn(headers, debitHeaders),
		credit:      findFirstColumn(headers, creditHeaders),
	}

	if cols.date < 0 {
		return nil, &ImportError{
			Format: string(format.Key),
			Err:    ErrMissingColumn,
			Detail: fmt.Sprintf("could not find date column, expected one of: %s", strings.Join(format.DateColumns, ", ")),
		}
	}

	if cols.amount < 0 {
		return nil, &ImportError{
			Format: string(format.Key),
			Err:    ErrMissingColumn,
			Detail: fmt.Sprintf("could not find amount column, expected one of: %s", strings.Join(format.AmountColumns, ", ")),
		}
	}

	records := []Record{}
	row := 1

	for {
		line, err := reader.Read()
		if err == io.EOF {
			break
		}

		row++
		result.TotalRows++

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				importer.addError(result, row, parseErr.Err.Error())
				continue
			}
			importer.addError(result, row, err.Error())
			continue
		}

		if len(line) < cols.required() {
			importer.addError(result, row, fmt.Sprintf("row has %d columns, expected at least %d", len(line), cols.required()))
			continue
		}

		dateString := strings.TrimSpace(line[cols.date])
		bookingDate, ok := ParseDate(dateString, format.DateLayouts)
		if !ok {
			importer.addError(result, row, fmt.Sprintf("could not parse date '%s'", dateString))
			continue
		}

		amount, err := cols.parseAmount(line, format.Decimal())
		if err != nil {
			importer.addError(result, row, err.Error())
			continue
		}

		// zero amount rows are balance lines and similar noise
		if amount.IsZero() {
			continue
		}

		records = append(records, Record{
			Row:         row,
			BookingDate: bookingDate,
			ValueDate:   bookingDate,
			Amount:      amount,
			Currency:    currency,
			Description: cell(line, cols.description),
		})
	}

	return records, nil
}

func (c columns) parseAmount(line []string, decimalSeparator byte) (decimal.Decimal, error) {
	if c.split() {
		debit, _ := ParseAmount(cell(line, c.debit), decimalSeparator)
		credit, _ := ParseAmount(cell(line, c.credit), decimalSeparator)

		if !credit.IsZero() {
			return credit.Sub(debit), nil
		}

		return debit.Abs().Neg(), nil
	}

	raw := strings.TrimSpace(line[c.amount])
	if raw == "" {
		return decimal.Zero, nil
	}

	amount, ok := ParseAmount(raw, decimalSeparator)
	if !ok {
		return decimal.Zero, fmt.Errorf("could not parse amount '%s'", raw)
	}

	return amount, nil
}

// ingest deduplicates records against the ids already stored for the account
// and inserts the rest together with the account in one store transaction.
func (importer *TransactionImporter) ingest(ctx context.Context, account Account, records []Record, result *ImportResult) error {
	accountID := account.ID

	known, err := importer.store.ExistingIDs(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load existing transactions for %s: %w", accountID, err)
	}

	fresh := make([]Transaction, 0, len(records))
	freshRecords := make([]Record, 0, len(records))

	for _, r := range records {
		id := TransactionID(accountID, r.BookingDate, r.Amount, r.Description)

		if _, ok := known[id]; ok {
			importer.addDuplicate(result, r)
			continue
		}

		known[id] = struct{}{}
		fresh = append(fresh, newTransaction(id, accountID, r))
		freshRecords = append(freshRecords, r)
	}

	return importer.store.WithTx(ctx, func(w Writer) error {
		err := w.UpsertAccount(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to store account %s: %w", accountID, err)
		}

		for i := range fresh {
			stored, err := w.InsertIfAbsent(ctx, &fresh[i])
			if err != nil {
				return fmt.Errorf("failed to store transaction %s: %w", fresh[i].ID, err)
			}

			if !stored {
				// written by someone else since ExistingIDs
				importer.addDuplicate(result, freshRecords[i])
				continue
			}

			result.Imported++
			result.NewTransactions = append(result.NewTransactions, fresh[i])
		}

		return nil
	})
}

func newTransaction(id, accountID string, r Record) Transaction {
	valueDate := r.ValueDate
	if valueDate.IsZero() {
		valueDate = r.BookingDate
	}

	return Transaction{
		ID:             id,
		AccountID:      accountID,
		BookingDate:    r.BookingDate,
		ValueDate:      valueDate,
		Amount:         r.Amount,
		Currency:       r.Currency,
		CreditorName:   r.CreditorName,
		DebtorName:     r.DebtorName,
		Description:    r.Description,
		MCCCode:        r.MCCCode,
		ExternalID:     r.ExternalID,
		CategorySource: CategoryPending,
	}
}

func (importer *TransactionImporter) newResult(accountID string) *ImportResult {
	return &ImportResult{
		RunID:            uuid.NewString(),
		AccountID:        accountID,
		DuplicateSamples: []DuplicateSample{},
		ErrorSamples:     []RowError{},
		NewTransactions:  []Transaction{},
	}
}

func (importer *TransactionImporter) addError(result *ImportResult, row int, msg string) {
	result.ErrorCount++
	if len(result.ErrorSamples) < importer.sampleLimit {
		result.ErrorSamples = append(result.ErrorSamples, RowError{Row: row, Message: msg})
	}
}

func (importer *TransactionImporter) addDuplicate(result *ImportResult, r Record) {
	result.DuplicateCount++
	if len(result.DuplicateSamples) < importer.sampleLimit {
		result.DuplicateSamples = append(result.DuplicateSamples, DuplicateSample{
			Row:         r.Row,
			Date:        r.BookingDate.Format(DateLayout),
			Amount:      r.Amount,
			Description: truncate(r.Description, sampleDescriptionLength),
		})
	}
}

func findFirstColumn(headers []string, names []string) int {
	for _, name := range names {
		if i := formats.FindColumn(headers, []string{name}); i >= 0 {
			return i
		}
	}
	return -1
}

func cell(line []string, i int) string {
	if i < 0 || i >= len(line) {
		return ""
	}
	return strings.TrimSpace(line[i])
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
