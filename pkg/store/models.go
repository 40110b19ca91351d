package store

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

type SQLTransaction struct {
	bun.BaseModel  `bun:"table:transactions"`
	ID             string          `bun:",pk"`
	AccountID      string          `bun:",notnull"`
	BookingDate    time.Time       `bun:",notnull"`
	ValueDate      time.Time       `bun:",nullzero"`
	Amount         decimal.Decimal `bun:"type:numeric(14,2),notnull"`
	Currency       string
	CreditorName   string    `bun:",nullzero"`
	DebtorName     string    `bun:",nullzero"`
	Description    string    `bun:"type:text"`
	MCCCode        string    `bun:"mcc_code,nullzero"`
	ExternalID     string    `bun:",nullzero"`
	Category       string    `bun:",nullzero"`
	CategorySource string    `bun:",notnull,default:'pending'"`
	CreatedAt      time.Time `bun:",notnull"`
}

type SQLAccount struct {
	bun.BaseModel `bun:"table:accounts"`
	ID            string `bun:",pk"`
	Name          string `bun:",notnull"`
	Currency      string
	Source        string
	CreatedAt     time.Time `bun:",notnull"`
	LastImportAt  time.Time `bun:",nullzero"`
}

type SQLBudget struct {
	bun.BaseModel `bun:"table:budgets"`
	Category      string          `bun:",pk"`
	MonthlyLimit  decimal.Decimal `bun:"type:numeric(14,2),notnull"`
	Currency      string
	UpdatedAt     time.Time `bun:",nullzero"`
}

func fromTransaction(t *financialimporter.Transaction) SQLTransaction {
	source := t.CategorySource
	if source == "" {
		source = financialimporter.CategoryPending
	}

	return SQLTransaction{
		ID:             t.ID,
		AccountID:      t.AccountID,
		BookingDate:    t.BookingDate,
		ValueDate:      t.ValueDate,
		Amount:         t.Amount,
		Currency:       t.Currency,
		CreditorName:   t.CreditorName,
		DebtorName:     t.DebtorName,
		Description:    t.Description,
		MCCCode:        t.MCCCode,
		ExternalID:     t.ExternalID,
		Category:       t.Category,
		CategorySource: string(source),
	}
}

func (t SQLTransaction) toTransaction() financialimporter.Transaction {
	valueDate := t.ValueDate
	if valueDate.IsZero() {
		valueDate = t.BookingDate
	}

	return financialimporter.Transaction{
		ID:             t.ID,
		AccountID:      t.AccountID,
		BookingDate:    dateOnly(t.BookingDate),
		ValueDate:      dateOnly(valueDate),
		Amount:         t.Amount,
		Currency:       t.Currency,
		CreditorName:   t.CreditorName,
		DebtorName:     t.DebtorName,
		Description:    t.Description,
		MCCCode:        t.MCCCode,
		ExternalID:     t.ExternalID,
		Category:       t.Category,
		CategorySource: financialimporter.CategorySource(t.CategorySource),
	}
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
