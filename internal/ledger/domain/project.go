package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

// Project is a shared cost pool.
type Project struct {
	ID           string
	TenantID     string
	Name         string
	Description  string
	CurrencyMode money.Mode
	IsIndividual bool
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateCurrency rejects currencies the project mode does not allow.
func (p *Project) ValidateCurrency(c money.Currency) error {
	if p.CurrencyMode.Allows(c) {
		return nil
	}
	return fmt.Errorf("%w: project only allows %s", ErrCurrencyNotAllowed, p.CurrencyMode)
}

// ChangeCurrencyMode switches the mode while the project has no expenses.
func (p *Project) ChangeCurrencyMode(mode money.Mode, hasExpenses bool, now time.Time) error {
	if mode == p.CurrencyMode {
		return nil
	}
	if hasExpenses {
		return ErrCurrencyModeLocked
	}
	p.CurrencyMode = mode
	p.UpdatedAt = now
	return nil
}

// Actor is an authenticated caller resolved against a project.
type Actor struct {
	UserID         string
	IsProjectAdmin bool
}

// Member is a user's participation in a project.
type Member struct {
	ProjectID   string
	UserID      string
	DisplayName string
	Percentage  decimal.Decimal
	IsAdmin     bool
	IsActive    bool
	Balance     Balance
	JoinedAt    time.Time
}

// Member history actions.
const (
	MemberAdded   = "added"
	MemberUpdated = "updated"
	MemberRemoved = "removed"
)

// MemberChange is an audit record of a membership change.
type MemberChange struct {
	ID            string
	ProjectID     string
	UserID        string
	Action        string
	OldPercentage decimal.NullDecimal
	NewPercentage decimal.NullDecimal
	OldIsAdmin    *bool
	NewIsAdmin    *bool
	ChangedBy     string
	ChangedAt     time.Time
}

var hundred = decimal.NewFromInt(100)

// ValidatePercentage checks 0 <= p <= 100.
func ValidatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	return nil
}

// NormalizeUserID trims a user id and rejects empty values.
func NormalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrEmptyUserID
	}
	return userID, nil
}
