package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is one of the two tracked currencies.
type Currency string

const (
	CurrencyARS Currency = "ARS"
	CurrencyUSD Currency = "USD"
)

// Mode constrains which currencies a project works with.
type Mode string

const (
	ModeARS  Mode = "ARS"
	ModeUSD  Mode = "USD"
	ModeDual Mode = "DUAL"
)

// Rate source tags recorded next to a rate.
const (
	RateSourceManual = "manual"
	RateSourceAuto   = "auto"
)

var (
	// ErrUnknownCurrency is returned for a currency code other than ARS/USD.
	ErrUnknownCurrency = errors.New("money: unknown currency")
	// ErrUnknownMode is returned for a currency mode other than ARS/USD/DUAL.
	ErrUnknownMode = errors.New("money: unknown currency mode")
	// ErrInvalidRate is returned when a conversion rate is zero or negative.
	ErrInvalidRate = errors.New("money: rate must be positive")
)

// ParseCurrency normalizes a currency code.
func ParseCurrency(value string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(value))) {
	case CurrencyARS:
		return CurrencyARS, nil
	case CurrencyUSD:
		return CurrencyUSD, nil
	default:
		return "", ErrUnknownCurrency
	}
}

// ParseMode normalizes a currency mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(value))) {
	case ModeARS:
		return ModeARS, nil
	case ModeUSD:
		return ModeUSD, nil
	case ModeDual:
		return ModeDual, nil
	default:
		return "", ErrUnknownMode
	}
}

// Allows reports whether c may appear on records of a project in mode m.
func (m Mode) Allows(c Currency) bool {
	switch m {
	case ModeARS:
		return c == CurrencyARS
	case ModeUSD:
		return c == CurrencyUSD
	case ModeDual:
		return c == CurrencyARS || c == CurrencyUSD
	default:
		return false
	}
}

// BalanceCurrency is the currency balances are kept in for mode m.
// DUAL projects keep balances in ARS only.
func (m Mode) BalanceCurrency() Currency {
	if m == ModeUSD {
		return CurrencyUSD
	}
	return CurrencyARS
}

// Round2 rounds to cents, ties away from zero (0.125 -> 0.13, -0.125 -> -0.13).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Convert returns the USD and ARS amounts of amount expressed in from, using
// rate as ARS per USD. Both outputs are rounded to cents.
func Convert(amount decimal.Decimal, from Currency, rate decimal.Decimal) (usd, ars decimal.Decimal, err error) {
	if !rate.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidRate
	}
	switch from {
	case CurrencyUSD:
		return Round2(amount), Round2(amount.Mul(rate)), nil
	case CurrencyARS:
		return Round2(amount.Div(rate)), Round2(amount), nil
	default:
		return decimal.Zero, decimal.Zero, ErrUnknownCurrency
	}
}

// Conversion is an amount priced in both currencies for a given mode.
type Conversion struct {
	USD        decimal.Decimal
	ARS        decimal.Decimal
	Rate       decimal.Decimal
	RateSource string
}

// ConvertForMode prices amount for a project in mode. Single-currency modes
// skip conversion, fix the other currency to zero and record no rate.
func ConvertForMode(mode Mode, amount decimal.Decimal, from Currency, rate decimal.Decimal, rateSource string) (Conversion, error) {
	if !mode.Allows(from) {
		return Conversion{}, ErrUnknownCurrency
	}
	switch mode {
	case ModeARS:
		return Conversion{USD: decimal.Zero, ARS: Round2(amount), Rate: decimal.Zero}, nil
	case ModeUSD:
		return Conversion{USD: Round2(amount), ARS: decimal.Zero, Rate: decimal.Zero}, nil
	case ModeDual:
		usd, ars, err := Convert(amount, from, rate)
		if err != nil {
			return Conversion{}, err
		}
		return Conversion{USD: usd, ARS: ars, Rate: rate, RateSource: rateSource}, nil
	default:
		return Conversion{}, ErrUnknownMode
	}
}

// Amount returns the converted value in currency c.
func (c Conversion) Amount(currency Currency) decimal.Decimal {
	if currency == CurrencyUSD {
		return c.USD
	}
	return c.ARS
}
