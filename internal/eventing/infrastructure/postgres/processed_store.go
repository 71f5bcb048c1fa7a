package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	hasProcessedSQL = `
SELECT EXISTS (
	SELECT 1 FROM processed_events WHERE event_id = $1 AND consumer_name = $2
)`
	markProcessedSQL = `
INSERT INTO processed_events (event_id, consumer_name, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (event_id, consumer_name) DO NOTHING`
	pruneProcessedSQL = `DELETE FROM processed_events WHERE processed_at < $1`
)

var errProcessedKey = errors.New("processed store: event id and consumer are required")

// ProcessedStore is the consumer receipt table that keeps ledger event
// handlers (audit logging, balance notifications) at-most-once.
type ProcessedStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewProcessedStore constructs a processed store over processed_events.
func NewProcessedStore(db *sql.DB) *ProcessedStore {
	return &ProcessedStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *ProcessedStore) ready(eventID, consumerName string) error {
	if s == nil || s.db == nil {
		return errors.New("processed store: nil db")
	}
	if eventID == "" || consumerName == "" {
		return errProcessedKey
	}
	return nil
}

// HasProcessed checks whether consumerName already handled eventID.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	if err := s.ready(eventID, consumerName); err != nil {
		return false, err
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, hasProcessedSQL, eventID, consumerName).Scan(&exists)
	return exists, err
}

// MarkProcessed records the receipt. Marking twice is a no-op.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	if err := s.ready(eventID, consumerName); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, markProcessedSQL, eventID, consumerName, s.now())
	return err
}

// Prune deletes receipts older than cutoff and reports how many went.
// Outbox rows are dispatched within minutes, so receipts past the outbox
// retention can no longer guard against a redelivery.
func (s *ProcessedStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("processed store: nil db")
	}
	res, err := s.db.ExecContext(ctx, pruneProcessedSQL, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
