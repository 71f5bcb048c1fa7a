package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

// ContributionStatus is the admin decision on a contribution.
type ContributionStatus string

const (
	ContributionPending  ContributionStatus = "PENDING"
	ContributionApproved ContributionStatus = "APPROVED"
	ContributionRejected ContributionStatus = "REJECTED"
)

// Contribution is a balance top-up, credited through credit obligations.
type Contribution struct {
	ID                 string
	ProjectID          string
	UserID             string
	AmountOriginal     decimal.Decimal
	CurrencyOriginal   money.Currency
	AmountUSD          decimal.Decimal
	AmountARS          decimal.Decimal
	ExchangeRateUsed   decimal.Decimal
	ExchangeRateSource string
	Description        string
	Split              bool
	Status             ContributionStatus
	ContributionDate   time.Time
	CreatedBy          string
	ApprovedBy         string
	ApprovedAt         *time.Time
	RejectionReason    string
	RejectedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PriceContribution computes the stored amounts. DUAL contributions are
// stored in ARS only; a USD amount is converted at rate.
func PriceContribution(mode money.Mode, amount decimal.Decimal, currency money.Currency, rate decimal.Decimal, rateSource string) (usd, ars, rateUsed decimal.Decimal, source string, err error) {
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero, "", ErrNonPositiveAmount
	}
	switch mode {
	case money.ModeARS:
		return decimal.Zero, money.Round2(amount), decimal.Zero, "", nil
	case money.ModeUSD:
		return money.Round2(amount), decimal.Zero, decimal.Zero, "", nil
	case money.ModeDual:
		if currency == money.CurrencyARS {
			return decimal.Zero, money.Round2(amount), decimal.Zero, "", nil
		}
		if !rate.IsPositive() {
			return decimal.Zero, decimal.Zero, decimal.Zero, "", ErrRateRequired
		}
		return decimal.Zero, money.Round2(amount.Mul(rate)), rate, rateSource, nil
	default:
		return decimal.Zero, decimal.Zero, decimal.Zero, "", money.ErrUnknownMode
	}
}

// StoredCurrency is the currency credit obligations of this contribution
// are denominated in.
func StoredCurrency(mode money.Mode) money.Currency {
	return mode.BalanceCurrency()
}

// Approve marks the contribution approved.
func (c *Contribution) Approve(actor Actor, now time.Time) error {
	if !actor.IsProjectAdmin {
		return ErrNotProjectAdmin
	}
	if c.Status != ContributionPending {
		return ErrContributionNotPending
	}
	c.Status = ContributionApproved
	c.ApprovedBy = actor.UserID
	c.ApprovedAt = ptr(now)
	c.UpdatedAt = now
	return nil
}

// Reject marks the contribution rejected with reason.
func (c *Contribution) Reject(actor Actor, reason string, now time.Time) error {
	if !actor.IsProjectAdmin {
		return ErrNotProjectAdmin
	}
	if c.Status != ContributionPending {
		return ErrContributionNotPending
	}
	if reason == "" {
		reason = defaultRejectedReason
	}
	c.Status = ContributionRejected
	c.RejectionReason = reason
	c.RejectedAt = ptr(now)
	c.ApprovedBy = actor.UserID
	c.UpdatedAt = now
	return nil
}
