package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

type obligationRepo struct {
	q DBTX
}

const obligationSelect = `
SELECT id, project_id, owner_kind, owner_id, direction, user_id,
	origin_currency, origin_rate::text, percentage::text, amount_due_usd::text, amount_due_ars::text,
	amount_paid::text, currency_paid, amount_paid_usd::text, amount_paid_ars::text,
	exchange_rate_at_payment::text, exchange_rate_source,
	is_paid, is_pending_approval, auto_paid, payment_date, paid_at, submitted_at,
	approved_by, approved_at, rejection_reason, receipt_path,
	is_deleted, deleted_at, deleted_by, created_at, updated_at
FROM obligations`

const obligationOrder = `
ORDER BY created_at ASC, user_id ASC, id ASC`

func (r obligationRepo) CreateBatch(ctx context.Context, obligations []ledger.Obligation) error {
	for i := range obligations {
		o := &obligations[i]
		_, err := r.q.ExecContext(ctx, `
INSERT INTO obligations (
	id, project_id, owner_kind, owner_id, direction, user_id,
	origin_currency, origin_rate, percentage, amount_due_usd, amount_due_ars,
	amount_paid, currency_paid, amount_paid_usd, amount_paid_ars,
	exchange_rate_at_payment, exchange_rate_source,
	is_paid, is_pending_approval, auto_paid, payment_date, paid_at, submitted_at,
	approved_by, approved_at, rejection_reason, receipt_path,
	is_deleted, deleted_at, deleted_by, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
	$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32
)`,
			o.ID, o.ProjectID, string(o.Owner.Kind), o.Owner.ID, string(o.Direction), o.UserID,
			string(o.OriginCurrency), o.OriginRate, o.Percentage, o.AmountDueUSD, o.AmountDueARS,
			o.AmountPaid, string(o.CurrencyPaid), o.AmountPaidUSD, o.AmountPaidARS,
			o.ExchangeRateAtPayment, o.ExchangeRateSource,
			o.IsPaid, o.IsPendingApproval, o.AutoPaid, nullTime(o.PaymentDate), nullTime(o.PaidAt), nullTime(o.SubmittedAt),
			o.ApprovedBy, nullTime(o.ApprovedAt), o.RejectionReason, o.ReceiptPath,
			o.IsDeleted, nullTime(o.DeletedAt), o.DeletedBy, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("obligation %s: %w", o.ID, err)
		}
	}
	return nil
}

func (r obligationRepo) Update(ctx context.Context, o *ledger.Obligation) error {
	if o == nil {
		return errors.New("obligation repo: nil obligation")
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE obligations
SET amount_due_usd = $1, amount_due_ars = $2, origin_currency = $3, origin_rate = $4,
	amount_paid = $5, currency_paid = $6, amount_paid_usd = $7, amount_paid_ars = $8,
	exchange_rate_at_payment = $9, exchange_rate_source = $10,
	is_paid = $11, is_pending_approval = $12, auto_paid = $13,
	payment_date = $14, paid_at = $15, submitted_at = $16,
	approved_by = $17, approved_at = $18, rejection_reason = $19, receipt_path = $20,
	is_deleted = $21, deleted_at = $22, deleted_by = $23, updated_at = $24
WHERE id = $25 AND project_id = $26`,
		o.AmountDueUSD, o.AmountDueARS, string(o.OriginCurrency), o.OriginRate,
		o.AmountPaid, string(o.CurrencyPaid), o.AmountPaidUSD, o.AmountPaidARS,
		o.ExchangeRateAtPayment, o.ExchangeRateSource,
		o.IsPaid, o.IsPendingApproval, o.AutoPaid,
		nullTime(o.PaymentDate), nullTime(o.PaidAt), nullTime(o.SubmittedAt),
		o.ApprovedBy, nullTime(o.ApprovedAt), o.RejectionReason, o.ReceiptPath,
		o.IsDeleted, nullTime(o.DeletedAt), o.DeletedBy, o.UpdatedAt.UTC(),
		o.ID, o.ProjectID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "obligation "+o.ID)
}

func (r obligationRepo) Get(ctx context.Context, projectID, obligationID string) (*ledger.Obligation, error) {
	row := r.q.QueryRowContext(ctx, obligationSelect+`
WHERE project_id = $1 AND id = $2
LIMIT 1`, projectID, obligationID)
	return scanObligation(row)
}

func (r obligationRepo) ListByOwner(ctx context.Context, owner ledger.Owner, includeDeleted bool) ([]ledger.Obligation, error) {
	return r.list(ctx, obligationSelect+`
WHERE owner_kind = $1 AND owner_id = $2 AND ($3 OR NOT is_deleted)`+obligationOrder,
		string(owner.Kind), owner.ID, includeDeleted)
}

func (r obligationRepo) ListByProject(ctx context.Context, projectID string, filter ledger.ObligationFilter) ([]ledger.Obligation, error) {
	clauses := []string{"project_id = $1"}
	args := []any{projectID}
	if !filter.IncludeDeleted {
		clauses = append(clauses, "NOT is_deleted")
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Direction != "" {
		args = append(args, string(filter.Direction))
		clauses = append(clauses, fmt.Sprintf("direction = $%d", len(args)))
	}
	if filter.PendingOnly {
		clauses = append(clauses, "NOT is_paid")
	}
	if filter.PendingApproval {
		clauses = append(clauses, "is_pending_approval")
	}
	return r.list(ctx, obligationSelect+`
WHERE `+strings.Join(clauses, " AND ")+obligationOrder, args...)
}

func (r obligationRepo) list(ctx context.Context, query string, args ...any) ([]ledger.Obligation, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		if o != nil {
			result = append(result, *o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanObligation(row rowScanner) (*ledger.Obligation, error) {
	var o ledger.Obligation
	var ownerKind, direction, origin, currencyPaid string
	var paymentDate, paidAt, submittedAt, approvedAt, deletedAt sql.NullTime
	err := row.Scan(
		&o.ID,
		&o.ProjectID,
		&ownerKind,
		&o.Owner.ID,
		&direction,
		&o.UserID,
		&origin,
		&o.OriginRate,
		&o.Percentage,
		&o.AmountDueUSD,
		&o.AmountDueARS,
		&o.AmountPaid,
		&currencyPaid,
		&o.AmountPaidUSD,
		&o.AmountPaidARS,
		&o.ExchangeRateAtPayment,
		&o.ExchangeRateSource,
		&o.IsPaid,
		&o.IsPendingApproval,
		&o.AutoPaid,
		&paymentDate,
		&paidAt,
		&submittedAt,
		&o.ApprovedBy,
		&approvedAt,
		&o.RejectionReason,
		&o.ReceiptPath,
		&o.IsDeleted,
		&deletedAt,
		&o.DeletedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o.Owner.Kind = ledger.OwnerKind(ownerKind)
	o.Direction = ledger.Direction(direction)
	o.OriginCurrency = money.Currency(origin)
	o.CurrencyPaid = money.Currency(currencyPaid)
	o.PaymentDate = timePtr(paymentDate)
	o.PaidAt = timePtr(paidAt)
	o.SubmittedAt = timePtr(submittedAt)
	o.ApprovedAt = timePtr(approvedAt)
	o.DeletedAt = timePtr(deletedAt)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}
