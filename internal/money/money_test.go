package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}

func TestConvert_USDToARS(t *testing.T) {
	usd, ars, err := Convert(dec(t, "100"), CurrencyUSD, dec(t, "1000"))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !usd.Equal(dec(t, "100.00")) || !ars.Equal(dec(t, "100000.00")) {
		t.Fatalf("unexpected conversion usd=%s ars=%s", usd, ars)
	}
}

func TestConvert_ARSToUSDRounds(t *testing.T) {
	usd, ars, err := Convert(dec(t, "1000"), CurrencyARS, dec(t, "3"))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !usd.Equal(dec(t, "333.33")) {
		t.Fatalf("usd mismatch: %s", usd)
	}
	if !ars.Equal(dec(t, "1000")) {
		t.Fatalf("ars mismatch: %s", ars)
	}
}

func TestConvert_RejectsNonPositiveRate(t *testing.T) {
	if _, _, err := Convert(dec(t, "10"), CurrencyUSD, decimal.Zero); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	if _, _, err := Convert(dec(t, "10"), CurrencyARS, dec(t, "-1")); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestRound2_TiesAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"0.125":  "0.13",
		"0.135":  "0.14",
		"2.675":  "2.68",
		"-0.125": "-0.13",
		"1.004":  "1",
		"1.005":  "1.01",
	}
	for in, want := range cases {
		got := Round2(dec(t, in))
		if !got.Equal(dec(t, want)) {
			t.Fatalf("Round2(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestConvert_RoundTripWithinRounding(t *testing.T) {
	rates := []string{"1", "3", "7.5", "999.99", "1234.5678"}
	amounts := []string{"0.01", "1", "17.35", "100", "98765.43"}
	tolerance := dec(t, "0.01")
	for _, r := range rates {
		rate := dec(t, r)
		for _, a := range amounts {
			x := dec(t, a)
			_, ars, err := Convert(x, CurrencyUSD, rate)
			if err != nil {
				t.Fatalf("convert usd: %v", err)
			}
			back, _, err := Convert(ars, CurrencyARS, rate)
			if err != nil {
				t.Fatalf("convert ars: %v", err)
			}
			if back.Sub(x).Abs().GreaterThan(tolerance) {
				t.Fatalf("round trip drift for %s at %s: got %s", a, r, back)
			}
		}
	}
}

func TestConvertForMode_SingleCurrencySkipsRate(t *testing.T) {
	conv, err := ConvertForMode(ModeARS, dec(t, "150.555"), CurrencyARS, decimal.Zero, "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !conv.ARS.Equal(dec(t, "150.56")) || !conv.USD.IsZero() || !conv.Rate.IsZero() || conv.RateSource != "" {
		t.Fatalf("unexpected conversion %+v", conv)
	}

	if _, err := ConvertForMode(ModeUSD, dec(t, "10"), CurrencyARS, decimal.Zero, ""); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected currency rejection, got %v", err)
	}
}

func TestConvertForMode_DualRecordsRate(t *testing.T) {
	conv, err := ConvertForMode(ModeDual, dec(t, "100"), CurrencyUSD, dec(t, "1000"), RateSourceManual)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !conv.ARS.Equal(dec(t, "100000")) || conv.RateSource != RateSourceManual || !conv.Rate.Equal(dec(t, "1000")) {
		t.Fatalf("unexpected conversion %+v", conv)
	}
}

func TestParseModeAndCurrency(t *testing.T) {
	if mode, err := ParseMode(" dual "); err != nil || mode != ModeDual {
		t.Fatalf("parse mode: %v %v", mode, err)
	}
	if _, err := ParseMode("EUR"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if c, err := ParseCurrency("usd"); err != nil || c != CurrencyUSD {
		t.Fatalf("parse currency: %v %v", c, err)
	}
	if ModeARS.Allows(CurrencyUSD) || !ModeDual.Allows(CurrencyUSD) {
		t.Fatalf("mode allowance mismatch")
	}
	if ModeDual.BalanceCurrency() != CurrencyARS || ModeUSD.BalanceCurrency() != CurrencyUSD {
		t.Fatalf("balance currency mismatch")
	}
}
