package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

// Direction tells whether settling an obligation moves money out of the
// member (debit, expense share) or into the member's balance (credit,
// contribution share).
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// OwnerKind identifies the parent record of an obligation.
type OwnerKind string

const (
	OwnerExpense      OwnerKind = "expense"
	OwnerContribution OwnerKind = "contribution"
)

// Owner references an expense or a contribution, never both.
type Owner struct {
	Kind OwnerKind
	ID   string
}

// PaymentState is the derived lifecycle state of an obligation.
type PaymentState string

const (
	StatePending   PaymentState = "PENDING"
	StateSubmitted PaymentState = "SUBMITTED_PENDING_APPROVAL"
	StateApproved  PaymentState = "APPROVED"
	StateRejected  PaymentState = "REJECTED"
)

const defaultRejectedReason = "Rejected by admin"

// Payment is a settlement amount with its converted equivalents.
type Payment struct {
	Amount      decimal.Decimal
	Currency    money.Currency
	AmountUSD   decimal.Decimal
	AmountARS   decimal.Decimal
	Rate        decimal.Decimal
	RateSource  string
	PaymentDate time.Time
}

// Obligation is one member's share of an expense or contribution together
// with its payment lifecycle.
type Obligation struct {
	ID        string
	ProjectID string
	Owner     Owner
	Direction Direction
	UserID    string

	OriginCurrency money.Currency
	OriginRate     decimal.Decimal
	Percentage     decimal.Decimal
	AmountDueUSD   decimal.Decimal
	AmountDueARS   decimal.Decimal

	AmountPaid            decimal.NullDecimal
	CurrencyPaid          money.Currency
	AmountPaidUSD         decimal.NullDecimal
	AmountPaidARS         decimal.NullDecimal
	ExchangeRateAtPayment decimal.NullDecimal
	ExchangeRateSource    string

	IsPaid            bool
	IsPendingApproval bool
	AutoPaid          bool
	PaymentDate       *time.Time
	PaidAt            *time.Time
	SubmittedAt       *time.Time
	ApprovedBy        string
	ApprovedAt        *time.Time
	RejectionReason   string
	ReceiptPath       string

	IsDeleted bool
	DeletedAt *time.Time
	DeletedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// State derives the lifecycle state from the payment flags.
func (o *Obligation) State() PaymentState {
	switch {
	case o.IsPaid:
		return StateApproved
	case o.IsPendingApproval:
		return StateSubmitted
	case o.RejectionReason != "":
		return StateRejected
	default:
		return StatePending
	}
}

// Due returns the due amount in currency c.
func (o *Obligation) Due(c money.Currency) decimal.Decimal {
	if c == money.CurrencyUSD {
		return o.AmountDueUSD
	}
	return o.AmountDueARS
}

// BalanceAmount is what settling this obligation moves on the member
// balance of a project in mode.
func (o *Obligation) BalanceAmount(mode money.Mode) (decimal.Decimal, error) {
	return ChargeAmount(mode, o.OriginCurrency, o.AmountDueUSD, o.AmountDueARS, o.OriginRate)
}

// HasParticipantReceipt reports whether a receipt was attached.
func (o *Obligation) HasParticipantReceipt() bool {
	return o.ReceiptPath != ""
}

func ptr(t time.Time) *time.Time { return &t }

func (o *Obligation) ensureLive() error {
	if o.IsDeleted {
		return ErrObligationDeleted
	}
	return nil
}

func (o *Obligation) recordPayment(p Payment, now time.Time) error {
	if !p.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	o.AmountPaid = decimal.NewNullDecimal(p.Amount)
	o.CurrencyPaid = p.Currency
	o.AmountPaidUSD = decimal.NewNullDecimal(p.AmountUSD)
	o.AmountPaidARS = decimal.NewNullDecimal(p.AmountARS)
	if p.Rate.IsPositive() {
		o.ExchangeRateAtPayment = decimal.NewNullDecimal(p.Rate)
		o.ExchangeRateSource = p.RateSource
	} else {
		o.ExchangeRateAtPayment = decimal.NullDecimal{}
		o.ExchangeRateSource = ""
	}
	paymentDate := p.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}
	o.PaymentDate = ptr(paymentDate)
	o.RejectionReason = ""
	o.UpdatedAt = now
	return nil
}

func (o *Obligation) approve(approver string, now time.Time) {
	o.IsPaid = true
	o.IsPendingApproval = false
	o.PaidAt = ptr(now)
	o.ApprovedBy = approver
	o.ApprovedAt = ptr(now)
	o.RejectionReason = ""
	o.UpdatedAt = now
}

// Submit records the owner's payment. With autoApprove (individual project
// or admin submitter) the obligation is approved immediately. It returns
// true when the obligation became paid.
func (o *Obligation) Submit(actor Actor, p Payment, autoApprove bool, now time.Time) (bool, error) {
	if err := o.ensureLive(); err != nil {
		return false, err
	}
	if actor.UserID != o.UserID {
		return false, ErrNotOwner
	}
	if o.IsPaid {
		return false, ErrAlreadyPaid
	}
	if err := o.recordPayment(p, now); err != nil {
		return false, err
	}
	o.SubmittedAt = ptr(now)
	o.AutoPaid = false
	if autoApprove {
		o.approve(actor.UserID, now)
		return true, nil
	}
	o.IsPendingApproval = true
	return false, nil
}

// Review approves or rejects a pending submission. It returns true when the
// obligation became paid.
func (o *Obligation) Review(actor Actor, approved bool, reason string, now time.Time) (bool, error) {
	if err := o.ensureLive(); err != nil {
		return false, err
	}
	if !actor.IsProjectAdmin {
		return false, ErrNotProjectAdmin
	}
	if !o.IsPendingApproval {
		return false, ErrNotPendingApproval
	}
	if approved {
		o.approve(actor.UserID, now)
		return true, nil
	}
	if reason == "" {
		reason = defaultRejectedReason
	}
	o.clearPayment()
	o.RejectionReason = reason
	o.ApprovedBy = actor.UserID
	o.ApprovedAt = ptr(now)
	o.UpdatedAt = now
	return false, nil
}

// MarkPaid lets an admin settle an obligation directly, bypassing
// submission and review.
func (o *Obligation) MarkPaid(actor Actor, p Payment, now time.Time) error {
	if err := o.ensureLive(); err != nil {
		return err
	}
	if !actor.IsProjectAdmin {
		return ErrNotProjectAdmin
	}
	if o.IsPaid {
		return ErrAlreadyPaid
	}
	if err := o.recordPayment(p, now); err != nil {
		return err
	}
	if o.SubmittedAt == nil {
		o.SubmittedAt = ptr(now)
	}
	o.AutoPaid = false
	o.approve(actor.UserID, now)
	return nil
}

// AutoPay settles the obligation from the member's balance at creation.
// Approval is attributed to approver, normally the owner's creator, and the
// owner's rate and rate source are copied onto the payment.
func (o *Obligation) AutoPay(mode money.Mode, approver, rateSource string, now time.Time) {
	amount, currency := o.AmountDueARS, money.CurrencyARS
	if mode == money.ModeUSD {
		amount, currency = o.AmountDueUSD, money.CurrencyUSD
	}
	o.AmountPaid = decimal.NewNullDecimal(amount)
	o.CurrencyPaid = currency
	o.AmountPaidUSD = decimal.NewNullDecimal(o.AmountDueUSD)
	o.AmountPaidARS = decimal.NewNullDecimal(o.AmountDueARS)
	if o.OriginRate.IsPositive() {
		o.ExchangeRateAtPayment = decimal.NewNullDecimal(o.OriginRate)
		o.ExchangeRateSource = rateSource
	}
	o.PaymentDate = ptr(now)
	o.SubmittedAt = ptr(now)
	o.AutoPaid = true
	o.approve(approver, now)
}

// Unmark returns the obligation to a clean pending state. Paid obligations
// need an admin; a pending submission may be withdrawn by its owner. It
// returns the pre-unmark snapshot so callers can reverse balance effects.
func (o *Obligation) Unmark(actor Actor, now time.Time) (Obligation, error) {
	before := *o
	if err := o.ensureLive(); err != nil {
		return before, err
	}
	if o.IsPaid {
		if !actor.IsProjectAdmin {
			return before, ErrNotProjectAdmin
		}
	} else if actor.UserID != o.UserID && !actor.IsProjectAdmin {
		return before, ErrNotOwner
	}
	o.clearPayment()
	o.RejectionReason = ""
	o.UpdatedAt = now
	return before, nil
}

func (o *Obligation) clearPayment() {
	o.AmountPaid = decimal.NullDecimal{}
	o.CurrencyPaid = ""
	o.AmountPaidUSD = decimal.NullDecimal{}
	o.AmountPaidARS = decimal.NullDecimal{}
	o.ExchangeRateAtPayment = decimal.NullDecimal{}
	o.ExchangeRateSource = ""
	o.IsPaid = false
	o.IsPendingApproval = false
	o.AutoPaid = false
	o.PaymentDate = nil
	o.PaidAt = nil
	o.SubmittedAt = nil
	o.ApprovedBy = ""
	o.ApprovedAt = nil
}

// AttachReceipt stores an opaque receipt path; owner or admin only.
func (o *Obligation) AttachReceipt(actor Actor, path string, now time.Time) error {
	if err := o.ensureLive(); err != nil {
		return err
	}
	if actor.UserID != o.UserID && !actor.IsProjectAdmin {
		return ErrNotOwner
	}
	o.ReceiptPath = path
	o.UpdatedAt = now
	return nil
}

// RemoveReceipt clears the receipt path; owner or admin only.
func (o *Obligation) RemoveReceipt(actor Actor, now time.Time) error {
	return o.AttachReceipt(actor, "", now)
}

// SoftDelete hides the obligation. Pending submissions are cancelled and
// auto-paid state is cleared; the caller refunds the balance alongside.
func (o *Obligation) SoftDelete(by string, now time.Time) {
	if o.AutoPaid || o.IsPendingApproval {
		o.clearPayment()
	}
	o.IsDeleted = true
	o.DeletedAt = ptr(now)
	o.DeletedBy = by
	o.UpdatedAt = now
}

// Restore reverses SoftDelete.
func (o *Obligation) Restore(now time.Time) {
	o.IsDeleted = false
	o.DeletedAt = nil
	o.DeletedBy = ""
	o.UpdatedAt = now
}
