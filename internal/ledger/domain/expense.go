package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

// ExpenseStatus is derived from the expense's obligations.
type ExpenseStatus string

const (
	ExpensePending ExpenseStatus = "PENDING"
	ExpensePartial ExpenseStatus = "PARTIAL"
	ExpensePaid    ExpenseStatus = "PAID"
)

// Expense is a cost entered against a project and split among its members.
type Expense struct {
	ID                 string
	ProjectID          string
	Description        string
	ProviderID         string
	CategoryID         string
	AmountOriginal     decimal.Decimal
	CurrencyOriginal   money.Currency
	AmountUSD          decimal.Decimal
	AmountARS          decimal.Decimal
	ExchangeRateUsed   decimal.Decimal
	ExchangeRateSource string
	ExpenseDate        time.Time
	InvoicePath        string
	Status             ExpenseStatus
	CreatedBy          string
	IsDeleted          bool
	DeletedAt          *time.Time
	DeletedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Price sets the original amount and its converted totals.
func (e *Expense) Price(amount decimal.Decimal, currency money.Currency, conv money.Conversion, now time.Time) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	e.AmountOriginal = amount
	e.CurrencyOriginal = currency
	e.AmountUSD = conv.USD
	e.AmountARS = conv.ARS
	e.ExchangeRateUsed = conv.Rate
	e.ExchangeRateSource = conv.RateSource
	e.UpdatedAt = now
	return nil
}

// SoftDelete marks the expense deleted.
func (e *Expense) SoftDelete(by string, now time.Time) error {
	if e.IsDeleted {
		return ErrExpenseDeleted
	}
	e.IsDeleted = true
	e.DeletedAt = ptr(now)
	e.DeletedBy = by
	e.UpdatedAt = now
	return nil
}

// Restore un-deletes the expense.
func (e *Expense) Restore(now time.Time) error {
	if !e.IsDeleted {
		return ErrExpenseNotDeleted
	}
	e.IsDeleted = false
	e.DeletedAt = nil
	e.DeletedBy = ""
	e.UpdatedAt = now
	return nil
}

// RecomputeStatus derives an expense status from all live obligations. With
// no live obligations the current status is kept.
func RecomputeStatus(current ExpenseStatus, obligations []Obligation) ExpenseStatus {
	total, paid := 0, 0
	for i := range obligations {
		if obligations[i].IsDeleted {
			continue
		}
		total++
		if obligations[i].IsPaid {
			paid++
		}
	}
	switch {
	case total == 0:
		return current
	case paid == 0:
		return ExpensePending
	case paid == total:
		return ExpensePaid
	default:
		return ExpensePartial
	}
}

// Recompute refreshes Status and reports whether it changed.
func (e *Expense) Recompute(obligations []Obligation, now time.Time) bool {
	next := RecomputeStatus(e.Status, obligations)
	if next == e.Status {
		return false
	}
	e.Status = next
	e.UpdatedAt = now
	return true
}

// CheckDeletable fails with a *BlockedError naming every live obligation
// that carries a participant receipt.
func CheckDeletable(expenseID string, obligations []Obligation) error {
	var blockers []Blocker
	for i := range obligations {
		o := &obligations[i]
		if o.IsDeleted || !o.HasParticipantReceipt() {
			continue
		}
		reason := "receipt uploaded"
		if o.IsPaid {
			reason = "paid with receipt"
		}
		blockers = append(blockers, Blocker{ObligationID: o.ID, UserID: o.UserID, Reason: reason})
	}
	if len(blockers) == 0 {
		return nil
	}
	return &BlockedError{ExpenseID: expenseID, Blockers: blockers}
}
