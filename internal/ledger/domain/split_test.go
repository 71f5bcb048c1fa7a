package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func member(userID, pct string) Member {
	return Member{ProjectID: "p1", UserID: userID, Percentage: d(pct), IsActive: true}
}

func TestSplit_ARSMode(t *testing.T) {
	shares := Split(money.ModeARS, decimal.Zero, d("100"), []Member{member("a", "60"), member("b", "40")})
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	if !shares[0].DueARS.Equal(d("60")) || !shares[1].DueARS.Equal(d("40")) {
		t.Fatalf("unexpected ars shares %+v", shares)
	}
	if !shares[0].DueUSD.IsZero() || !shares[1].DueUSD.IsZero() {
		t.Fatalf("usd must be zero in ARS mode: %+v", shares)
	}
}

func TestSplit_DualRoundsEachCurrencyIndependently(t *testing.T) {
	shares := Split(money.ModeDual, d("100"), d("100000"), []Member{member("a", "33.33"), member("b", "66.67")})
	if !shares[0].DueUSD.Equal(d("33.33")) || !shares[0].DueARS.Equal(d("33330")) {
		t.Fatalf("unexpected share a %+v", shares[0])
	}
	if !shares[1].DueUSD.Equal(d("66.67")) || !shares[1].DueARS.Equal(d("66670")) {
		t.Fatalf("unexpected share b %+v", shares[1])
	}
}

func TestSplit_SkipsInactiveAndZeroPercentage(t *testing.T) {
	inactive := member("c", "50")
	inactive.IsActive = false
	shares := Split(money.ModeUSD, d("10"), decimal.Zero, []Member{member("a", "100"), member("b", "0"), inactive})
	if len(shares) != 1 || shares[0].UserID != "a" || !shares[0].DueUSD.Equal(d("10")) {
		t.Fatalf("unexpected shares %+v", shares)
	}
}

func TestSplit_NoActiveMembers(t *testing.T) {
	if shares := Split(money.ModeARS, decimal.Zero, d("10"), nil); len(shares) != 0 {
		t.Fatalf("expected no shares, got %+v", shares)
	}
}

func TestSplit_CompletenessWithinRoundingTolerance(t *testing.T) {
	members := []Member{member("a", "33.333"), member("b", "33.333"), member("c", "33.334")}
	totals := []string{"0.01", "1", "99.99", "100", "12345.67", "1000000.01"}
	for _, raw := range totals {
		total := d(raw)
		shares := Split(money.ModeARS, decimal.Zero, total, members)
		sum := decimal.Zero
		for _, s := range shares {
			sum = sum.Add(s.DueARS)
		}
		tolerance := d("0.005").Mul(decimal.NewFromInt(int64(len(shares))))
		if sum.Sub(total).Abs().GreaterThan(tolerance) {
			t.Fatalf("split of %s sums to %s", raw, sum)
		}
	}
}

func TestValidateParticipation_ExactEquality(t *testing.T) {
	report := ValidateParticipation([]Member{member("a", "60"), member("b", "40")})
	if !report.IsValid || !report.Total.Equal(d("100")) {
		t.Fatalf("expected valid report, got %+v", report)
	}
	report = ValidateParticipation([]Member{member("a", "60"), member("b", "39.99")})
	if report.IsValid || !report.Total.Equal(d("99.99")) {
		t.Fatalf("expected invalid report, got %+v", report)
	}
}

func TestValidatePercentage(t *testing.T) {
	if err := ValidatePercentage(d("100.01")); err != ErrInvalidPercentage {
		t.Fatalf("expected ErrInvalidPercentage, got %v", err)
	}
	if err := ValidatePercentage(d("-1")); err != ErrInvalidPercentage {
		t.Fatalf("expected ErrInvalidPercentage, got %v", err)
	}
	if err := ValidatePercentage(d("0")); err != nil {
		t.Fatalf("zero must be valid: %v", err)
	}
}
