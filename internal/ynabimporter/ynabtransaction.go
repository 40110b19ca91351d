package ynabimporter

import (
	"strings"
	"time"

	"github.com/davidsteinsland/ynab-go/ynab"
	"github.com/shopspring/decimal"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

// toRecords maps YNAB transactions to pipeline records, skipping those
// booked before importAfter. Split transactions are kept whole.
func toRecords(transactions []ynab.TransactionDetail, importAfter time.Time) []financialimporter.Record {
	records := make([]financialimporter.Record, 0, len(transactions))

	for i := range transactions {
		r := toRecord(&transactions[i])
		r.Row = i + 1

		if !r.BookingDate.IsZero() && r.BookingDate.Before(importAfter) {
			continue
		}

		records = append(records, r)
	}

	return records
}

func toRecord(t *ynab.TransactionDetail) financialimporter.Record {
	// a zero date is reported as a row error by the pipeline
	date, _ := time.Parse(financialimporter.DateLayout, t.Date)

	// ynab amounts are milliunits
	amount := decimal.New(int64(t.Amount), -3)

	memo := ""
	if t.Memo != nil {
		memo = *t.Memo
	}

	r := financialimporter.Record{
		BookingDate: date,
		ValueDate:   date,
		Amount:      amount,
		Description: strings.TrimSpace(t.PayeeName + " " + memo),
		ExternalID:  t.Id,
	}

	if amount.IsNegative() {
		r.CreditorName = t.PayeeName
	} else {
		r.DebtorName = t.PayeeName
	}

	return r
}
