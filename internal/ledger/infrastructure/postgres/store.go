package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ledger "splitledger/internal/ledger/domain"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// unitOfWork binds every repository to one DBTX.
type unitOfWork struct {
	q DBTX
}

func (u unitOfWork) Projects() ledger.ProjectRepository           { return projectRepo{q: u.q} }
func (u unitOfWork) Members() ledger.MemberRepository             { return memberRepo{q: u.q} }
func (u unitOfWork) Expenses() ledger.ExpenseRepository           { return expenseRepo{q: u.q} }
func (u unitOfWork) Obligations() ledger.ObligationRepository     { return obligationRepo{q: u.q} }
func (u unitOfWork) Contributions() ledger.ContributionRepository { return contributionRepo{q: u.q} }
func (u unitOfWork) Providers() ledger.ProviderRepository         { return providerRepo{q: u.q} }
func (u unitOfWork) Categories() ledger.CategoryRepository        { return categoryRepo{q: u.q} }

// Store is the Postgres ledger store. Repositories reached directly from the
// Store run outside any transaction; WithinTx hands fn repositories bound to
// a single *sql.Tx, and member rows read with GetForUpdate stay locked
// until it commits or rolls back.
type Store struct {
	unitOfWork
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	return &Store{unitOfWork: unitOfWork{q: db}, db: db}, nil
}

// WithinTx runs fn in a transaction, committing on a nil error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	if s == nil || s.db == nil {
		return errors.New("ledger store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, unitOfWork{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, what)
	}
	return nil
}
