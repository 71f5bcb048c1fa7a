package postgres

import (
	"context"
	"database/sql"
	"errors"

	ledger "splitledger/internal/ledger/domain"
)

type memberRepo struct {
	q DBTX
}

const memberSelect = `
SELECT project_id, user_id, display_name, percentage::text, is_admin, is_active,
	balance_usd::text, balance_ars::text, balance_updated_at, joined_at
FROM project_members`

func (r memberRepo) Get(ctx context.Context, projectID, userID string) (*ledger.Member, error) {
	row := r.q.QueryRowContext(ctx, memberSelect+`
WHERE project_id = $1 AND user_id = $2
LIMIT 1`, projectID, userID)
	return scanMember(row)
}

// GetForUpdate takes a row lock on the member. Outside a transaction the
// lock is released as soon as the statement completes.
func (r memberRepo) GetForUpdate(ctx context.Context, projectID, userID string) (*ledger.Member, error) {
	row := r.q.QueryRowContext(ctx, memberSelect+`
WHERE project_id = $1 AND user_id = $2
FOR UPDATE`, projectID, userID)
	return scanMember(row)
}

func (r memberRepo) ListByProject(ctx context.Context, projectID string) ([]ledger.Member, error) {
	rows, err := r.q.QueryContext(ctx, memberSelect+`
WHERE project_id = $1
ORDER BY user_id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		if m != nil {
			result = append(result, *m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r memberRepo) Create(ctx context.Context, m *ledger.Member) error {
	if m == nil {
		return errors.New("member repo: nil member")
	}
	balanceAt := m.Balance.UpdatedAt
	if balanceAt.IsZero() {
		balanceAt = m.JoinedAt
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO project_members (
	project_id, user_id, display_name, percentage, is_admin, is_active,
	balance_usd, balance_ars, balance_updated_at, joined_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ProjectID, m.UserID, m.DisplayName, m.Percentage, m.IsAdmin, m.IsActive,
		m.Balance.USD, m.Balance.ARS, balanceAt.UTC(), m.JoinedAt.UTC())
	return err
}

func (r memberRepo) Update(ctx context.Context, m *ledger.Member) error {
	if m == nil {
		return errors.New("member repo: nil member")
	}
	balanceAt := m.Balance.UpdatedAt
	if balanceAt.IsZero() {
		balanceAt = m.JoinedAt
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE project_members
SET display_name = $1, percentage = $2, is_admin = $3, is_active = $4,
	balance_usd = $5, balance_ars = $6, balance_updated_at = $7
WHERE project_id = $8 AND user_id = $9`,
		m.DisplayName, m.Percentage, m.IsAdmin, m.IsActive,
		m.Balance.USD, m.Balance.ARS, balanceAt.UTC(), m.ProjectID, m.UserID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "member "+m.UserID)
}

func (r memberRepo) AppendHistory(ctx context.Context, c ledger.MemberChange) error {
	_, err := r.q.ExecContext(ctx, `
INSERT INTO member_history (
	id, project_id, user_id, action, old_percentage, new_percentage,
	old_is_admin, new_is_admin, changed_by, changed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.ProjectID, c.UserID, c.Action, c.OldPercentage, c.NewPercentage,
		nullBool(c.OldIsAdmin), nullBool(c.NewIsAdmin), c.ChangedBy, c.ChangedAt.UTC())
	return err
}

func (r memberRepo) ListHistory(ctx context.Context, projectID string) ([]ledger.MemberChange, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT id, project_id, user_id, action, old_percentage::text, new_percentage::text,
	old_is_admin, new_is_admin, changed_by, changed_at
FROM member_history
WHERE project_id = $1
ORDER BY changed_at DESC, seq DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.MemberChange
	for rows.Next() {
		var c ledger.MemberChange
		var oldAdmin, newAdmin sql.NullBool
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Action, &c.OldPercentage, &c.NewPercentage,
			&oldAdmin, &newAdmin, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, err
		}
		c.OldIsAdmin = boolPtr(oldAdmin)
		c.NewIsAdmin = boolPtr(newAdmin)
		c.ChangedAt = c.ChangedAt.UTC()
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanMember(row rowScanner) (*ledger.Member, error) {
	var m ledger.Member
	err := row.Scan(&m.ProjectID, &m.UserID, &m.DisplayName, &m.Percentage, &m.IsAdmin, &m.IsActive,
		&m.Balance.USD, &m.Balance.ARS, &m.Balance.UpdatedAt, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Balance.UpdatedAt = m.Balance.UpdatedAt.UTC()
	m.JoinedAt = m.JoinedAt.UTC()
	return &m, nil
}
