package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RateSource provides the current USD->ARS rate.
type RateSource interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// Publisher emits ledger events once their transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}
