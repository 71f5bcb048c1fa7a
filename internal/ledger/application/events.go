package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseCreated is emitted after an expense and its obligations are stored.
type ExpenseCreated struct {
	ProjectID   string
	ExpenseID   string
	CreatedBy   string
	AmountUSD   decimal.Decimal
	AmountARS   decimal.Decimal
	Obligations int
	AutoPaid    int
	Status      string
	OccurredAt  time.Time
}

// ExpenseDeleted is emitted when an expense is soft-deleted.
type ExpenseDeleted struct {
	ProjectID  string
	ExpenseID  string
	DeletedBy  string
	Refunded   int
	OccurredAt time.Time
}

// ExpenseRestored is emitted when a deleted expense is restored.
type ExpenseRestored struct {
	ProjectID  string
	ExpenseID  string
	RestoredBy string
	OccurredAt time.Time
}

// ExpenseStatusChanged is emitted when aggregation moves an expense status.
type ExpenseStatusChanged struct {
	ProjectID  string
	ExpenseID  string
	From       string
	To         string
	OccurredAt time.Time
}

// ObligationChanged is emitted on every obligation state transition.
type ObligationChanged struct {
	ProjectID    string
	ObligationID string
	OwnerKind    string
	OwnerID      string
	UserID       string
	Direction    string
	Action       string
	State        string
	ActorID      string
	OccurredAt   time.Time
}

// BalanceAdjusted is emitted for every member balance mutation.
type BalanceAdjusted struct {
	ProjectID    string
	UserID       string
	Kind         string
	Amount       decimal.Decimal
	Currency     string
	BalanceARS   decimal.Decimal
	BalanceUSD   decimal.Decimal
	ObligationID string
	OccurredAt   time.Time
}

// ContributionCreated is emitted when a contribution is registered.
type ContributionCreated struct {
	ProjectID      string
	ContributionID string
	UserID         string
	AmountUSD      decimal.Decimal
	AmountARS      decimal.Decimal
	Split          bool
	OccurredAt     time.Time
}

// ContributionResolved is emitted when an admin approves or rejects a
// contribution.
type ContributionResolved struct {
	ProjectID      string
	ContributionID string
	Status         string
	ResolvedBy     string
	OccurredAt     time.Time
}

// EventSamples lists one value of every ledger event for registries.
func EventSamples() []any {
	return []any{
		ExpenseCreated{},
		ExpenseDeleted{},
		ExpenseRestored{},
		ExpenseStatusChanged{},
		ObligationChanged{},
		BalanceAdjusted{},
		ContributionCreated{},
		ContributionResolved{},
	}
}
