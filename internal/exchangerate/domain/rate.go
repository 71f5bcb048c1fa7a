package exchangerate

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrRateUnavailable is returned when no live or cached rate exists.
	ErrRateUnavailable = errors.New("exchangerate: rate unavailable")
	// ErrInvalidRate is returned when an upstream rate is not positive.
	ErrInvalidRate = errors.New("exchangerate: invalid rate")
)

// Rate is a USD->ARS quote.
type Rate struct {
	Value     decimal.Decimal
	Source    string
	FetchedAt time.Time
	Cached    bool
}

// LogEntry is an append-only history record of a live fetch.
type LogEntry struct {
	ID           string
	RateUSDToARS decimal.Decimal
	Source       string
	FetchedAt    time.Time
}

// Fetcher retrieves the current rate from an upstream provider.
type Fetcher interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

// HistoryRepository persists the rate history log.
type HistoryRepository interface {
	Append(ctx context.Context, entry LogEntry) error
	List(ctx context.Context, limit int) ([]LogEntry, error)
}
