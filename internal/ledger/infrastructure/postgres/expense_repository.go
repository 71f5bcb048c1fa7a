package postgres

import (
	"context"
	"database/sql"
	"errors"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

type expenseRepo struct {
	q DBTX
}

const expenseSelect = `
SELECT id, project_id, description, provider_id, category_id,
	amount_original::text, currency_original, amount_usd::text, amount_ars::text,
	exchange_rate_used::text, exchange_rate_source, expense_date, invoice_path, status,
	created_by, is_deleted, deleted_at, deleted_by, created_at, updated_at
FROM expenses`

func (r expenseRepo) Create(ctx context.Context, e *ledger.Expense) error {
	if e == nil {
		return errors.New("expense repo: nil expense")
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO expenses (
	id, project_id, description, provider_id, category_id,
	amount_original, currency_original, amount_usd, amount_ars,
	exchange_rate_used, exchange_rate_source, expense_date, invoice_path, status,
	created_by, is_deleted, deleted_at, deleted_by, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		e.ID, e.ProjectID, e.Description, e.ProviderID, e.CategoryID,
		e.AmountOriginal, string(e.CurrencyOriginal), e.AmountUSD, e.AmountARS,
		e.ExchangeRateUsed, e.ExchangeRateSource, e.ExpenseDate.UTC(), e.InvoicePath, string(e.Status),
		e.CreatedBy, e.IsDeleted, nullTime(e.DeletedAt), e.DeletedBy, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	return err
}

func (r expenseRepo) Update(ctx context.Context, e *ledger.Expense) error {
	if e == nil {
		return errors.New("expense repo: nil expense")
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE expenses
SET description = $1, provider_id = $2, category_id = $3,
	amount_original = $4, currency_original = $5, amount_usd = $6, amount_ars = $7,
	exchange_rate_used = $8, exchange_rate_source = $9, expense_date = $10, invoice_path = $11,
	status = $12, is_deleted = $13, deleted_at = $14, deleted_by = $15, updated_at = $16
WHERE id = $17 AND project_id = $18`,
		e.Description, e.ProviderID, e.CategoryID,
		e.AmountOriginal, string(e.CurrencyOriginal), e.AmountUSD, e.AmountARS,
		e.ExchangeRateUsed, e.ExchangeRateSource, e.ExpenseDate.UTC(), e.InvoicePath,
		string(e.Status), e.IsDeleted, nullTime(e.DeletedAt), e.DeletedBy, e.UpdatedAt.UTC(),
		e.ID, e.ProjectID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "expense "+e.ID)
}

func (r expenseRepo) Get(ctx context.Context, projectID, expenseID string) (*ledger.Expense, error) {
	row := r.q.QueryRowContext(ctx, expenseSelect+`
WHERE project_id = $1 AND id = $2
LIMIT 1`, projectID, expenseID)
	return scanExpense(row)
}

func (r expenseRepo) ListByProject(ctx context.Context, projectID string, includeDeleted bool) ([]ledger.Expense, error) {
	rows, err := r.q.QueryContext(ctx, expenseSelect+`
WHERE project_id = $1 AND ($2 OR NOT is_deleted)
ORDER BY expense_date DESC, created_at DESC`, projectID, includeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		if e != nil {
			result = append(result, *e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanExpense(row rowScanner) (*ledger.Expense, error) {
	var e ledger.Expense
	var currency, status string
	var deletedAt sql.NullTime
	err := row.Scan(
		&e.ID,
		&e.ProjectID,
		&e.Description,
		&e.ProviderID,
		&e.CategoryID,
		&e.AmountOriginal,
		&currency,
		&e.AmountUSD,
		&e.AmountARS,
		&e.ExchangeRateUsed,
		&e.ExchangeRateSource,
		&e.ExpenseDate,
		&e.InvoicePath,
		&status,
		&e.CreatedBy,
		&e.IsDeleted,
		&deletedAt,
		&e.DeletedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.CurrencyOriginal = money.Currency(currency)
	e.Status = ledger.ExpenseStatus(status)
	e.DeletedAt = timePtr(deletedAt)
	e.ExpenseDate = e.ExpenseDate.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
