package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

func TestChargeAmount_DualUSDUsesOwnerRate(t *testing.T) {
	amount, err := ChargeAmount(money.ModeDual, money.CurrencyUSD, d("12.34"), d("12000"), d("1000"))
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if !amount.Equal(d("12340")) {
		t.Fatalf("expected 12340, got %s", amount)
	}
	if _, err := ChargeAmount(money.ModeDual, money.CurrencyUSD, d("1"), d("1"), decimal.Zero); !errors.Is(err, ErrRateRequired) {
		t.Fatalf("expected ErrRateRequired, got %v", err)
	}
	amount, _ = ChargeAmount(money.ModeDual, money.CurrencyARS, d("1"), d("950"), decimal.Zero)
	if !amount.Equal(d("950")) {
		t.Fatalf("expected ars due, got %s", amount)
	}
}

func TestBalance_AllOrNothingCover(t *testing.T) {
	b := Balance{ARS: d("299.99")}
	if b.Covers(money.ModeARS, d("300")) {
		t.Fatalf("balance short by 0.01 must not cover")
	}
	b.Credit(money.ModeARS, d("0.01"), now)
	if !b.Covers(money.ModeARS, d("300")) {
		t.Fatalf("exact balance must cover")
	}
}

func TestBalance_DualKeepsARSOnly(t *testing.T) {
	var b Balance
	b.Credit(money.ModeDual, d("500"), now)
	if !b.ARS.Equal(d("500")) || !b.USD.IsZero() || !b.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected balance %+v", b)
	}
	b.Debit(money.ModeDual, d("200"), now)
	if !b.ARS.Equal(d("300")) {
		t.Fatalf("unexpected balance %+v", b)
	}
	if !b.DerivedUSD(d("1000")).Equal(d("0.3")) || !b.DerivedUSD(decimal.Zero).IsZero() {
		t.Fatalf("unexpected derived usd")
	}
}

func TestBalance_USDMode(t *testing.T) {
	var b Balance
	b.Credit(money.ModeUSD, d("10"), now)
	b.Debit(money.ModeUSD, d("4"), now)
	if !b.USD.Equal(d("6")) || !b.ARS.IsZero() {
		t.Fatalf("unexpected balance %+v", b)
	}
}

func TestBalance_CreditDebitSymmetry(t *testing.T) {
	start := Balance{ARS: d("1234.56")}
	b := start
	o := Obligation{OriginCurrency: money.CurrencyUSD, OriginRate: d("987.65"), AmountDueUSD: d("3.33"), AmountDueARS: d("3288.87")}
	amount, err := o.BalanceAmount(money.ModeDual)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	b.Credit(money.ModeDual, amount, now)
	b.Debit(money.ModeDual, amount, now)
	b.Credit(money.ModeDual, amount, now)
	b.Debit(money.ModeDual, amount, now)
	if !b.ARS.Equal(start.ARS) {
		t.Fatalf("balance drifted: %s != %s", b.ARS, start.ARS)
	}
}
