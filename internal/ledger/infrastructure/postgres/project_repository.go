package postgres

import (
	"context"
	"database/sql"
	"errors"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

type projectRepo struct {
	q DBTX
}

const projectColumns = `id, tenant_id, name, description, currency_mode, is_individual, created_by, created_at, updated_at`

func (r projectRepo) Create(ctx context.Context, p *ledger.Project) error {
	if p == nil {
		return errors.New("project repo: nil project")
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO projects (`+projectColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.TenantID, p.Name, p.Description, string(p.CurrencyMode), p.IsIndividual, p.CreatedBy, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return err
}

func (r projectRepo) Update(ctx context.Context, p *ledger.Project) error {
	if p == nil {
		return errors.New("project repo: nil project")
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE projects
SET name = $1, description = $2, currency_mode = $3, updated_at = $4
WHERE id = $5`, p.Name, p.Description, string(p.CurrencyMode), p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "project "+p.ID)
}

func (r projectRepo) Get(ctx context.Context, projectID string) (*ledger.Project, error) {
	row := r.q.QueryRowContext(ctx, `
SELECT `+projectColumns+`
FROM projects
WHERE id = $1
LIMIT 1`, projectID)
	return scanProject(row)
}

func (r projectRepo) ListForUser(ctx context.Context, tenantID, userID string) ([]ledger.Project, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT p.id, p.tenant_id, p.name, p.description, p.currency_mode, p.is_individual, p.created_by, p.created_at, p.updated_at
FROM projects p
JOIN project_members m ON m.project_id = p.id
WHERE m.user_id = $1 AND m.is_active AND ($2 = '' OR p.tenant_id = $2)
ORDER BY p.created_at DESC`, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		if p != nil {
			result = append(result, *p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r projectRepo) HasExpenses(ctx context.Context, projectID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM expenses WHERE project_id = $1
)`, projectID).Scan(&exists)
	return exists, err
}

func scanProject(row rowScanner) (*ledger.Project, error) {
	var p ledger.Project
	var mode string
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &mode, &p.IsIndividual, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.CurrencyMode = money.Mode(mode)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
