package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
	"github.com/bcaldwell/finimporter/pkg/postgresutils"
)

// SQL is the bun backed store, used with Postgres or SQLite.
type SQL struct {
	db *bun.DB
}

func NewSQL(db *bun.DB) *SQL {
	return &SQL{db: db}
}

// Migrate creates missing tables and indexes.
func (s *SQL) Migrate(ctx context.Context) error {
	models := []interface{}{
		(*SQLAccount)(nil),
		(*SQLTransaction)(nil),
		(*SQLBudget)(nil),
	}

	for _, model := range models {
		_, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	_, err := s.db.NewCreateIndex().
		Model((*SQLTransaction)(nil)).
		Index("transactions_account_id_idx").
		Column("account_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create transactions index: %w", err)
	}

	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) ExistingIDs(ctx context.Context, accountID string) (map[string]struct{}, error) {
	var ids []string

	err := s.db.NewSelect().
		Model((*SQLTransaction)(nil)).
		Column("id").
		Where("account_id = ?", accountID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}

	return known, nil
}

func (s *SQL) WithTx(ctx context.Context, fn func(financialimporter.Writer) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(txWriter{tx: tx})
	})
}

type txWriter struct {
	tx bun.Tx
}

func (w txWriter) InsertIfAbsent(ctx context.Context, t *financialimporter.Transaction) (bool, error) {
	row := fromTransaction(t)
	row.CreatedAt = time.Now().UTC()

	res, err := w.tx.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *SQL) UpsertAccount(ctx context.Context, account financialimporter.Account) error {
	return upsertAccount(ctx, s.db, account)
}

func (w txWriter) UpsertAccount(ctx context.Context, account financialimporter.Account) error {
	return upsertAccount(ctx, w.tx, account)
}

func upsertAccount(ctx context.Context, db bun.IDB, account financialimporter.Account) error {
	now := time.Now().UTC()
	row := SQLAccount{
		ID:           account.ID,
		Name:         account.Name,
		Currency:     account.Currency,
		Source:       string(account.Source),
		CreatedAt:    now,
		LastImportAt: now,
	}

	_, err := db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set(postgresutils.TableSetString(db, (*SQLAccount)(nil), "id", "created_at")).
		Exec(ctx)

	return err
}

func (s *SQL) TransactionsNeedingCategory(ctx context.Context) ([]financialimporter.Transaction, error) {
	var rows []SQLTransaction

	err := s.db.NewSelect().
		Model(&rows).
		Where("category IS NULL").
		Where("category_source != ?", financialimporter.CategoryUser).
		Order("booking_date", "id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return toTransactions(rows), nil
}

func (s *SQL) UpdateCategories(ctx context.Context, categories map[string]string) (int, error) {
	updated := 0

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for id, category := range categories {
			res, err := tx.NewUpdate().
				Model((*SQLTransaction)(nil)).
				Set("category = ?", category).
				Set("category_source = ?", financialimporter.CategoryAuto).
				Where("id = ?", id).
				Where("category_source != ?", financialimporter.CategoryUser).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to update category of %s: %w", id, err)
			}

			n, _ := res.RowsAffected()
			updated += int(n)
		}

		return nil
	})

	return updated, err
}

func (s *SQL) SetCategory(ctx context.Context, idPrefix, category string) (int, error) {
	if idPrefix == "" {
		return 0, ErrEmptyPrefix
	}

	res, err := s.db.NewUpdate().
		Model((*SQLTransaction)(nil)).
		Set("category = ?", category).
		Set("category_source = ?", financialimporter.CategoryUser).
		Where("substr(id, 1, ?) = ?", len(idPrefix), idPrefix).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQL) Transactions(ctx context.Context, filter Filter) ([]financialimporter.Transaction, error) {
	var rows []SQLTransaction

	q := s.db.NewSelect().Model(&rows).Order("booking_date", "id")

	if filter.AccountID != "" {
		q = q.Where("account_id = ?", filter.AccountID)
	}

	if !filter.From.IsZero() {
		q = q.Where("booking_date >= ?", filter.From)
	}

	if !filter.To.IsZero() {
		q = q.Where("booking_date < ?", filter.To)
	}

	if filter.OutflowOnly {
		q = q.Where("amount < 0")
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, err
	}

	return toTransactions(rows), nil
}

func (s *SQL) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	var rows []struct {
		ID               string
		Name             string
		Currency         string
		Source           string
		TransactionCount int
		LatestBooking    bun.NullTime
	}

	err := s.db.NewSelect().
		TableExpr("accounts AS a").
		ColumnExpr("a.id, a.name, a.currency, a.source").
		ColumnExpr("COUNT(t.id) AS transaction_count").
		ColumnExpr("MAX(t.booking_date) AS latest_booking").
		Join("LEFT JOIN transactions AS t ON t.account_id = a.id").
		GroupExpr("a.id, a.name, a.currency, a.source").
		OrderExpr("a.name, a.id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	accounts := make([]AccountSummary, 0, len(rows))
	for _, r := range rows {
		summary := AccountSummary{
			ID:               r.ID,
			Name:             r.Name,
			Currency:         r.Currency,
			Source:           financialimporter.SourceType(r.Source),
			TransactionCount: r.TransactionCount,
		}
		if !r.LatestBooking.IsZero() {
			summary.LatestBooking = dateOnly(r.LatestBooking.Time)
		}
		accounts = append(accounts, summary)
	}

	return accounts, nil
}

func (s *SQL) DeleteAccount(ctx context.Context, id string) (int, error) {
	removed := 0

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*SQLTransaction)(nil)).
			Where("account_id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete transactions of %s: %w", id, err)
		}

		n, _ := res.RowsAffected()
		removed = int(n)

		res, err = tx.NewDelete().
			Model((*SQLAccount)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete account %s: %w", id, err)
		}

		n, _ = res.RowsAffected()
		if n == 0 && removed == 0 {
			return fmt.Errorf("account %s: %w", id, ErrNotFound)
		}

		return nil
	})

	return removed, err
}

func (s *SQL) SetBudget(ctx context.Context, budget Budget) error {
	row := SQLBudget{
		Category:     budget.Category,
		MonthlyLimit: budget.MonthlyLimit,
		Currency:     budget.Currency,
		UpdatedAt:    time.Now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (category) DO UPDATE").
		Set(postgresutils.TableSetString(s.db, (*SQLBudget)(nil), "category")).
		Exec(ctx)

	return err
}

func (s *SQL) Budgets(ctx context.Context) ([]Budget, error) {
	var rows []SQLBudget

	err := s.db.NewSelect().Model(&rows).Order("category").Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	budgets := make([]Budget, 0, len(rows))
	for _, r := range rows {
		budgets = append(budgets, Budget{Category: r.Category, MonthlyLimit: r.MonthlyLimit, Currency: r.Currency})
	}

	return budgets, nil
}

func toTransactions(rows []SQLTransaction) []financialimporter.Transaction {
	transactions := make([]financialimporter.Transaction, 0, len(rows))
	for _, r := range rows {
		transactions = append(transactions, r.toTransaction())
	}
	return transactions
}
