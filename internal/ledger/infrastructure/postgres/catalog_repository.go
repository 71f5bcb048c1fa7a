package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	ledger "splitledger/internal/ledger/domain"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type providerRepo struct {
	q DBTX
}

const providerSelect = `
SELECT id, tenant_id, name, contact_info, is_active, created_at, updated_at
FROM providers`

func (r providerRepo) Create(ctx context.Context, p *ledger.Provider) error {
	if p == nil {
		return errors.New("provider repo: nil provider")
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO providers (id, tenant_id, name, contact_info, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.TenantID, p.Name, p.ContactInfo, p.IsActive, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return err
}

func (r providerRepo) Update(ctx context.Context, p *ledger.Provider) error {
	if p == nil {
		return errors.New("provider repo: nil provider")
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE providers
SET name = $1, contact_info = $2, is_active = $3, updated_at = $4
WHERE id = $5 AND tenant_id = $6`,
		p.Name, p.ContactInfo, p.IsActive, p.UpdatedAt.UTC(), p.ID, p.TenantID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "provider "+p.ID)
}

func (r providerRepo) Get(ctx context.Context, tenantID, providerID string) (*ledger.Provider, error) {
	row := r.q.QueryRowContext(ctx, providerSelect+`
WHERE tenant_id = $1 AND id = $2`, tenantID, providerID)
	return scanProvider(row)
}

func (r providerRepo) List(ctx context.Context, tenantID string, includeInactive bool) ([]ledger.Provider, error) {
	rows, err := r.q.QueryContext(ctx, providerSelect+`
WHERE tenant_id = $1 AND (is_active OR $2)
ORDER BY name, id`, tenantID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		if p != nil {
			result = append(result, *p)
		}
	}
	return result, rows.Err()
}

func scanProvider(row rowScanner) (*ledger.Provider, error) {
	var p ledger.Provider
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.ContactInfo, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

type categoryRepo struct {
	q DBTX
}

const categorySelect = `
SELECT id, tenant_id, name, description, color, is_active, created_at, updated_at
FROM categories`

func (r categoryRepo) Create(ctx context.Context, c *ledger.Category) error {
	if c == nil {
		return errors.New("category repo: nil category")
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO categories (id, tenant_id, name, description, color, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.TenantID, c.Name, c.Description, c.Color, c.IsActive, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return ledger.ErrCategoryNameTaken
	}
	return err
}

func (r categoryRepo) Update(ctx context.Context, c *ledger.Category) error {
	if c == nil {
		return errors.New("category repo: nil category")
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE categories
SET name = $1, description = $2, color = $3, is_active = $4, updated_at = $5
WHERE id = $6 AND tenant_id = $7`,
		c.Name, c.Description, c.Color, c.IsActive, c.UpdatedAt.UTC(), c.ID, c.TenantID)
	if isUniqueViolation(err) {
		return ledger.ErrCategoryNameTaken
	}
	if err != nil {
		return err
	}
	return expectOneRow(res, "category "+c.ID)
}

func (r categoryRepo) Get(ctx context.Context, tenantID, categoryID string) (*ledger.Category, error) {
	row := r.q.QueryRowContext(ctx, categorySelect+`
WHERE tenant_id = $1 AND id = $2`, tenantID, categoryID)
	return scanCategory(row)
}

func (r categoryRepo) GetByName(ctx context.Context, tenantID, name string) (*ledger.Category, error) {
	row := r.q.QueryRowContext(ctx, categorySelect+`
WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	return scanCategory(row)
}

func (r categoryRepo) List(ctx context.Context, tenantID string, includeInactive bool) ([]ledger.Category, error) {
	rows, err := r.q.QueryContext(ctx, categorySelect+`
WHERE tenant_id = $1 AND (is_active OR $2)
ORDER BY name`, tenantID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		if c != nil {
			result = append(result, *c)
		}
	}
	return result, rows.Err()
}

func scanCategory(row rowScanner) (*ledger.Category, error) {
	var c ledger.Category
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.Color, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
