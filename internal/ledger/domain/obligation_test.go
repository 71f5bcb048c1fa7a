package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

var now = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

func pendingObligation() *Obligation {
	return &Obligation{
		ID:             "o1",
		ProjectID:      "p1",
		Owner:          Owner{Kind: OwnerExpense, ID: "e1"},
		Direction:      Debit,
		UserID:         "alice",
		OriginCurrency: money.CurrencyARS,
		AmountDueARS:   d("60"),
		AmountDueUSD:   decimal.Zero,
	}
}

func payment(amount string) Payment {
	return Payment{Amount: d(amount), Currency: money.CurrencyARS, AmountARS: d(amount), AmountUSD: decimal.Zero}
}

func TestObligation_SubmitRequiresOwner(t *testing.T) {
	o := pendingObligation()
	if _, err := o.Submit(Actor{UserID: "bob"}, payment("60"), false, now); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if o.State() != StatePending {
		t.Fatalf("state must be unchanged, got %s", o.State())
	}
}

func TestObligation_SubmitLeavesPendingApproval(t *testing.T) {
	o := pendingObligation()
	paid, err := o.Submit(Actor{UserID: "alice"}, payment("60"), false, now)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if paid || o.IsPaid || !o.IsPendingApproval || o.State() != StateSubmitted {
		t.Fatalf("expected pending approval, got %+v", o)
	}
	if o.SubmittedAt == nil || !o.AmountPaid.Valid || !o.AmountPaid.Decimal.Equal(d("60")) {
		t.Fatalf("payment not recorded: %+v", o)
	}
}

func TestObligation_SubmitAutoApproves(t *testing.T) {
	o := pendingObligation()
	paid, err := o.Submit(Actor{UserID: "alice"}, payment("60"), true, now)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !paid || !o.IsPaid || o.IsPendingApproval || o.ApprovedBy != "alice" || o.ApprovedAt == nil {
		t.Fatalf("expected auto approval, got %+v", o)
	}
	if _, err := o.Submit(Actor{UserID: "alice"}, payment("60"), true, now); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestObligation_SubmitRejectsNonPositive(t *testing.T) {
	o := pendingObligation()
	if _, err := o.Submit(Actor{UserID: "alice"}, payment("0"), false, now); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("expected ErrNonPositiveAmount, got %v", err)
	}
}

func TestObligation_ReviewRejectThenResubmit(t *testing.T) {
	o := pendingObligation()
	admin := Actor{UserID: "root", IsProjectAdmin: true}
	if _, err := o.Review(admin, false, "", now); !errors.Is(err, ErrNotPendingApproval) {
		t.Fatalf("expected ErrNotPendingApproval, got %v", err)
	}
	if _, err := o.Submit(Actor{UserID: "alice"}, payment("60"), false, now); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := o.Review(Actor{UserID: "alice"}, true, "", now); !errors.Is(err, ErrNotProjectAdmin) {
		t.Fatalf("expected ErrNotProjectAdmin, got %v", err)
	}
	if _, err := o.Review(admin, false, "", now); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if o.State() != StateRejected || o.RejectionReason != defaultRejectedReason || o.AmountPaid.Valid || o.ApprovedBy != "root" {
		t.Fatalf("unexpected rejected state %+v", o)
	}

	if _, err := o.Submit(Actor{UserID: "alice"}, payment("60"), false, now); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if o.State() != StateSubmitted || o.RejectionReason != "" {
		t.Fatalf("expected resubmitted state, got %+v", o)
	}
	paid, err := o.Review(admin, true, "", now)
	if err != nil || !paid {
		t.Fatalf("approve: paid=%v err=%v", paid, err)
	}
	if o.State() != StateApproved || o.PaidAt == nil {
		t.Fatalf("expected approved, got %+v", o)
	}
}

func TestObligation_MarkPaidAdminOnly(t *testing.T) {
	o := pendingObligation()
	if err := o.MarkPaid(Actor{UserID: "alice"}, payment("60"), now); !errors.Is(err, ErrNotProjectAdmin) {
		t.Fatalf("expected ErrNotProjectAdmin, got %v", err)
	}
	backfill := payment("60")
	backfill.PaymentDate = time.Date(2025, time.December, 24, 0, 0, 0, 0, time.UTC)
	if err := o.MarkPaid(Actor{UserID: "root", IsProjectAdmin: true}, backfill, now); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !o.IsPaid || !o.PaymentDate.Equal(backfill.PaymentDate) || o.ApprovedBy != "root" {
		t.Fatalf("unexpected mark paid state %+v", o)
	}
}

func TestObligation_UnmarkRules(t *testing.T) {
	o := pendingObligation()
	if _, err := o.Submit(Actor{UserID: "alice"}, payment("60"), false, now); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := o.Unmark(Actor{UserID: "bob"}, now); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := o.Unmark(Actor{UserID: "alice"}, now); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if o.State() != StatePending || o.SubmittedAt != nil {
		t.Fatalf("expected clean pending, got %+v", o)
	}

	o.ReceiptPath = "receipts/o1.pdf"
	if _, err := o.Submit(Actor{UserID: "alice"}, payment("60"), true, now); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := o.Unmark(Actor{UserID: "alice"}, now); !errors.Is(err, ErrNotProjectAdmin) {
		t.Fatalf("expected ErrNotProjectAdmin, got %v", err)
	}
	before, err := o.Unmark(Actor{UserID: "root", IsProjectAdmin: true}, now)
	if err != nil {
		t.Fatalf("admin unmark: %v", err)
	}
	if !before.IsPaid || o.IsPaid || o.AmountPaid.Valid || o.ApprovedBy != "" || o.PaidAt != nil {
		t.Fatalf("unexpected unmark result before=%+v after=%+v", before, o)
	}
	if o.ReceiptPath != "receipts/o1.pdf" {
		t.Fatalf("unmark must keep receipt")
	}
}

func TestObligation_AutoPayCopiesOwnerRate(t *testing.T) {
	o := pendingObligation()
	o.OriginCurrency = money.CurrencyUSD
	o.OriginRate = d("1000")
	o.AmountDueUSD = d("30")
	o.AmountDueARS = d("30000")
	o.AutoPay(money.ModeDual, "creator", money.RateSourceManual, now)
	if !o.IsPaid || !o.AutoPaid || o.ApprovedBy != "creator" {
		t.Fatalf("expected auto-paid, got %+v", o)
	}
	if o.CurrencyPaid != money.CurrencyARS || !o.AmountPaid.Decimal.Equal(d("30000")) {
		t.Fatalf("unexpected paid amount %+v", o)
	}
	if !o.ExchangeRateAtPayment.Decimal.Equal(d("1000")) || o.ExchangeRateSource != money.RateSourceManual {
		t.Fatalf("rate not copied: %+v", o)
	}
}

func TestObligation_SoftDeleteClearsAutoPay(t *testing.T) {
	o := pendingObligation()
	o.AutoPay(money.ModeARS, "creator", "", now)
	o.SoftDelete("root", now)
	if !o.IsDeleted || o.IsPaid || o.AutoPaid {
		t.Fatalf("unexpected deleted state %+v", o)
	}
	if _, err := o.Submit(Actor{UserID: "alice"}, payment("60"), false, now); !errors.Is(err, ErrObligationDeleted) {
		t.Fatalf("expected ErrObligationDeleted, got %v", err)
	}
	o.Restore(now)
	if o.IsDeleted || o.State() != StatePending {
		t.Fatalf("expected pending after restore, got %+v", o)
	}
}

func TestObligation_ReceiptOwnership(t *testing.T) {
	o := pendingObligation()
	if err := o.AttachReceipt(Actor{UserID: "bob"}, "x", now); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := o.AttachReceipt(Actor{UserID: "bob", IsProjectAdmin: true}, "x", now); err != nil {
		t.Fatalf("admin attach: %v", err)
	}
	if err := o.RemoveReceipt(Actor{UserID: "alice"}, now); err != nil || o.HasParticipantReceipt() {
		t.Fatalf("owner remove: %v", err)
	}
}
