package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"splitledger/internal/eventing"
)

type outboxRow struct {
	seq      int
	record   eventing.OutboxRecord
	status   string
	attempts int
}

// OutboxStore is an in-process outbox used by tests and the CLI.
type OutboxStore struct {
	mu    sync.Mutex
	seq   int
	rows  map[string]*outboxRow
	byEvt map[string]string
}

// NewOutboxStore constructs an empty outbox.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{rows: make(map[string]*outboxRow), byEvt: make(map[string]string)}
}

// Insert stores env unless its event id is already present.
func (s *OutboxStore) Insert(_ context.Context, env eventing.Envelope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEvt[env.EventID]; ok {
		return id, nil
	}
	s.seq++
	id := eventing.NewEventID()
	s.rows[id] = &outboxRow{seq: s.seq, record: eventing.OutboxRecord{ID: id, Envelope: env}, status: "pending"}
	s.byEvt[env.EventID] = id
	return id, nil
}

// ListPending returns pending records in insertion order.
func (s *OutboxStore) ListPending(_ context.Context, limit int) ([]eventing.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make([]*outboxRow, 0)
	for _, row := range s.rows {
		if row.status == "pending" {
			pending = append(pending, row)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]eventing.OutboxRecord, 0, len(pending))
	for _, row := range pending {
		out = append(out, row.record)
	}
	return out, nil
}

// MarkSent marks a record delivered.
func (s *OutboxStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		row.status = "sent"
	}
	return nil
}

// MarkFailed marks a record failed.
func (s *OutboxStore) MarkFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		row.status = "failed"
		row.attempts++
	}
	return nil
}

// Count returns the number of records in status.
func (s *OutboxStore) Count(status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.status == status {
			n++
		}
	}
	return n
}

// ProcessedStore is an in-process idempotency store.
type ProcessedStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewProcessedStore constructs an empty store.
func NewProcessedStore() *ProcessedStore {
	return &ProcessedStore{seen: make(map[string]time.Time)}
}

// HasProcessed reports whether consumerName handled eventID.
func (s *ProcessedStore) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[consumerName+"|"+eventID]
	return ok, nil
}

// MarkProcessed records eventID as handled by consumerName.
func (s *ProcessedStore) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[consumerName+"|"+eventID]; !ok {
		s.seen[consumerName+"|"+eventID] = time.Now().UTC()
	}
	return nil
}

// Prune forgets receipts recorded before cutoff.
func (s *ProcessedStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, key)
			n++
		}
	}
	return n, nil
}

// DLQStore keeps failed envelopes in memory.
type DLQStore struct {
	mu      sync.Mutex
	entries map[string]int
}

// NewDLQStore constructs an empty DLQ.
func NewDLQStore() *DLQStore {
	return &DLQStore{entries: make(map[string]int)}
}

// RecordFailure counts a failure for env.
func (s *DLQStore) RecordFailure(_ context.Context, env eventing.Envelope, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[env.EventID]++
	return nil
}

// Len returns the number of distinct failed events.
func (s *DLQStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
