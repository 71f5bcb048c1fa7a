package memory

import (
	"context"
	"sync"

	exchangerate "splitledger/internal/exchangerate/domain"
)

// HistoryRepository keeps rate history in memory.
type HistoryRepository struct {
	mu      sync.Mutex
	entries []exchangerate.LogEntry
}

// NewHistoryRepository constructs an empty repository.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// Append records entry.
func (r *HistoryRepository) Append(_ context.Context, entry exchangerate.LogEntry) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

// List returns up to limit entries, newest first.
func (r *HistoryRepository) List(_ context.Context, limit int) ([]exchangerate.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]exchangerate.LogEntry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		out = append(out, r.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
