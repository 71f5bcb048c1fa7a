package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	exchangerate "splitledger/internal/exchangerate/domain"
)

const defaultHistoryTable = "exchange_rate_logs"

// HistoryRepository persists the exchange rate log.
type HistoryRepository struct {
	db    *sql.DB
	table string
}

// HistoryOption configures the repository.
type HistoryOption func(*HistoryRepository)

// WithHistoryTable overrides the table name.
func WithHistoryTable(table string) HistoryOption {
	return func(r *HistoryRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewHistoryRepository constructs a repository.
func NewHistoryRepository(db *sql.DB, opts ...HistoryOption) *HistoryRepository {
	repo := &HistoryRepository{db: db, table: defaultHistoryTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Append inserts a log entry.
func (r *HistoryRepository) Append(ctx context.Context, entry exchangerate.LogEntry) error {
	if r == nil || r.db == nil {
		return errors.New("exchange rate history repo: nil db")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, rate_usd_to_ars, source, fetched_at)
VALUES ($1, $2, $3, $4)`, r.table)
	_, err := r.db.ExecContext(ctx, query, entry.ID, entry.RateUSDToARS.String(), entry.Source, entry.FetchedAt)
	return err
}

// List returns up to limit entries, newest first.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]exchangerate.LogEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("exchange rate history repo: nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
SELECT id, rate_usd_to_ars::text, source, fetched_at
FROM %s
ORDER BY fetched_at DESC
LIMIT $1`, r.table)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []exchangerate.LogEntry
	for rows.Next() {
		var entry exchangerate.LogEntry
		var rate string
		if err := rows.Scan(&entry.ID, &rate, &entry.Source, &entry.FetchedAt); err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, err
		}
		entry.RateUSDToARS = value
		entry.FetchedAt = entry.FetchedAt.UTC()
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
