package postgres

import (
	"context"
	"database/sql"
	"errors"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

type contributionRepo struct {
	q DBTX
}

const contributionSelect = `
SELECT id, project_id, user_id, amount_original::text, currency_original,
	amount_usd::text, amount_ars::text, exchange_rate_used::text, exchange_rate_source,
	description, split, status, contribution_date, created_by, approved_by, approved_at,
	rejection_reason, rejected_at, created_at, updated_at
FROM contributions`

func (r contributionRepo) Create(ctx context.Context, c *ledger.Contribution) error {
	if c == nil {
		return errors.New("contribution repo: nil contribution")
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO contributions (
	id, project_id, user_id, amount_original, currency_original,
	amount_usd, amount_ars, exchange_rate_used, exchange_rate_source,
	description, split, status, contribution_date, created_by, approved_by, approved_at,
	rejection_reason, rejected_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		c.ID, c.ProjectID, c.UserID, c.AmountOriginal, string(c.CurrencyOriginal),
		c.AmountUSD, c.AmountARS, c.ExchangeRateUsed, c.ExchangeRateSource,
		c.Description, c.Split, string(c.Status), c.ContributionDate.UTC(), c.CreatedBy, c.ApprovedBy, nullTime(c.ApprovedAt),
		c.RejectionReason, nullTime(c.RejectedAt), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	return err
}

func (r contributionRepo) Update(ctx context.Context, c *ledger.Contribution) error {
	if c == nil {
		return errors.New("contribution repo: nil contribution")
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE contributions
SET status = $1, approved_by = $2, approved_at = $3, rejection_reason = $4,
	rejected_at = $5, description = $6, updated_at = $7
WHERE id = $8 AND project_id = $9`,
		string(c.Status), c.ApprovedBy, nullTime(c.ApprovedAt), c.RejectionReason,
		nullTime(c.RejectedAt), c.Description, c.UpdatedAt.UTC(), c.ID, c.ProjectID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "contribution "+c.ID)
}

func (r contributionRepo) Get(ctx context.Context, projectID, contributionID string) (*ledger.Contribution, error) {
	row := r.q.QueryRowContext(ctx, contributionSelect+`
WHERE project_id = $1 AND id = $2
LIMIT 1`, projectID, contributionID)
	return scanContribution(row)
}

func (r contributionRepo) ListByProject(ctx context.Context, projectID string) ([]ledger.Contribution, error) {
	rows, err := r.q.QueryContext(ctx, contributionSelect+`
WHERE project_id = $1
ORDER BY contribution_date DESC, created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		if c != nil {
			result = append(result, *c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanContribution(row rowScanner) (*ledger.Contribution, error) {
	var c ledger.Contribution
	var currency, status string
	var approvedAt, rejectedAt sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.ProjectID,
		&c.UserID,
		&c.AmountOriginal,
		&currency,
		&c.AmountUSD,
		&c.AmountARS,
		&c.ExchangeRateUsed,
		&c.ExchangeRateSource,
		&c.Description,
		&c.Split,
		&status,
		&c.ContributionDate,
		&c.CreatedBy,
		&c.ApprovedBy,
		&approvedAt,
		&c.RejectionReason,
		&rejectedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.CurrencyOriginal = money.Currency(currency)
	c.Status = ledger.ContributionStatus(status)
	c.ApprovedAt = timePtr(approvedAt)
	c.RejectedAt = timePtr(rejectedAt)
	c.ContributionDate = c.ContributionDate.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
