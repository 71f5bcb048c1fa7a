package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

func obligations(paid ...bool) []Obligation {
	out := make([]Obligation, 0, len(paid))
	for _, p := range paid {
		out = append(out, Obligation{IsPaid: p})
	}
	return out
}

func TestRecomputeStatus(t *testing.T) {
	cases := []struct {
		name string
		obs  []Obligation
		want ExpenseStatus
	}{
		{"none paid", obligations(false, false), ExpensePending},
		{"all paid", obligations(true, true), ExpensePaid},
		{"some paid", obligations(true, false, false), ExpensePartial},
	}
	for _, tc := range cases {
		got := RecomputeStatus(ExpensePending, tc.obs)
		if got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
		if again := RecomputeStatus(got, tc.obs); again != got {
			t.Fatalf("%s: recompute not idempotent: %s then %s", tc.name, got, again)
		}
	}
}

func TestRecomputeStatus_EmptyKeepsCurrent(t *testing.T) {
	if got := RecomputeStatus(ExpensePartial, nil); got != ExpensePartial {
		t.Fatalf("expected current status kept, got %s", got)
	}
	deleted := obligations(true)
	deleted[0].IsDeleted = true
	if got := RecomputeStatus(ExpensePending, deleted); got != ExpensePending {
		t.Fatalf("deleted obligations must not count, got %s", got)
	}
}

func TestCheckDeletable_NamesReceiptedParticipants(t *testing.T) {
	obs := []Obligation{
		{ID: "o1", UserID: "alice", ReceiptPath: "r.pdf", IsPaid: true},
		{ID: "o2", UserID: "bob", IsPaid: true, AutoPaid: true},
		{ID: "o3", UserID: "carol", ReceiptPath: "old.pdf", IsDeleted: true},
	}
	err := CheckDeletable("e1", obs)
	var blocked *BlockedError
	if !errors.As(err, &blocked) || !errors.Is(err, ErrDeletionBlocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if len(blocked.Blockers) != 1 || blocked.Blockers[0].UserID != "alice" {
		t.Fatalf("unexpected blockers %+v", blocked.Blockers)
	}
	if err := CheckDeletable("e1", obs[1:]); err != nil {
		t.Fatalf("expected deletable, got %v", err)
	}
}

func TestExpense_SoftDeleteAndRestore(t *testing.T) {
	e := &Expense{ID: "e1", Status: ExpensePending}
	if err := e.Restore(now); !errors.Is(err, ErrExpenseNotDeleted) {
		t.Fatalf("expected ErrExpenseNotDeleted, got %v", err)
	}
	if err := e.SoftDelete("root", now); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := e.SoftDelete("root", now); !errors.Is(err, ErrExpenseDeleted) {
		t.Fatalf("expected ErrExpenseDeleted, got %v", err)
	}
	if err := e.Restore(now); err != nil || e.IsDeleted || e.DeletedAt != nil {
		t.Fatalf("restore: %v %+v", err, e)
	}
}

func TestPriceContribution(t *testing.T) {
	usd, ars, rate, source, err := PriceContribution(money.ModeDual, d("100"), money.CurrencyUSD, d("1000"), money.RateSourceManual)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !usd.IsZero() || !ars.Equal(d("100000")) || !rate.Equal(d("1000")) || source != money.RateSourceManual {
		t.Fatalf("unexpected dual pricing usd=%s ars=%s rate=%s source=%s", usd, ars, rate, source)
	}
	if _, _, _, _, err := PriceContribution(money.ModeDual, d("100"), money.CurrencyUSD, decimal.Zero, ""); !errors.Is(err, ErrRateRequired) {
		t.Fatalf("expected ErrRateRequired, got %v", err)
	}
	usd, ars, _, _, err = PriceContribution(money.ModeUSD, d("50"), money.CurrencyUSD, decimal.Zero, "")
	if err != nil || !usd.Equal(d("50")) || !ars.IsZero() {
		t.Fatalf("unexpected usd pricing %s %s %v", usd, ars, err)
	}
}

func TestContribution_Decisions(t *testing.T) {
	c := &Contribution{Status: ContributionPending}
	if err := c.Approve(Actor{UserID: "bob"}, now); !errors.Is(err, ErrNotProjectAdmin) {
		t.Fatalf("expected ErrNotProjectAdmin, got %v", err)
	}
	if err := c.Reject(Actor{UserID: "root", IsProjectAdmin: true}, "", now); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if c.Status != ContributionRejected || c.RejectionReason == "" || c.RejectedAt == nil {
		t.Fatalf("unexpected rejected contribution %+v", c)
	}
	if err := c.Approve(Actor{UserID: "root", IsProjectAdmin: true}, now); !errors.Is(err, ErrContributionNotPending) {
		t.Fatalf("expected ErrContributionNotPending, got %v", err)
	}
}

func TestProject_CurrencyRules(t *testing.T) {
	p := &Project{CurrencyMode: money.ModeARS}
	if err := p.ValidateCurrency(money.CurrencyUSD); !errors.Is(err, ErrCurrencyNotAllowed) {
		t.Fatalf("expected ErrCurrencyNotAllowed, got %v", err)
	}
	if err := p.ChangeCurrencyMode(money.ModeDual, true, now); !errors.Is(err, ErrCurrencyModeLocked) {
		t.Fatalf("expected ErrCurrencyModeLocked, got %v", err)
	}
	if err := p.ChangeCurrencyMode(money.ModeDual, false, now); err != nil || p.CurrencyMode != money.ModeDual {
		t.Fatalf("expected mode change, got %v %s", err, p.CurrencyMode)
	}
}
