package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

// Balance is a member's running account. DUAL projects keep it in ARS only;
// any USD figure is derived at read time.
type Balance struct {
	USD       decimal.Decimal
	ARS       decimal.Decimal
	UpdatedAt time.Time
}

// ChargeAmount converts an obligation's due amounts into the balance
// currency of mode. In DUAL mode a USD-denominated obligation is converted
// with the rate recorded on its owner, never a fresh one.
func ChargeAmount(mode money.Mode, origin money.Currency, dueUSD, dueARS, originRate decimal.Decimal) (decimal.Decimal, error) {
	switch mode {
	case money.ModeARS:
		return dueARS, nil
	case money.ModeUSD:
		return dueUSD, nil
	case money.ModeDual:
		if origin != money.CurrencyUSD {
			return dueARS, nil
		}
		if !originRate.IsPositive() {
			return decimal.Zero, ErrRateRequired
		}
		return money.Round2(dueUSD.Mul(originRate)), nil
	default:
		return decimal.Zero, money.ErrUnknownMode
	}
}

func (b *Balance) field(mode money.Mode) *decimal.Decimal {
	if mode.BalanceCurrency() == money.CurrencyUSD {
		return &b.USD
	}
	return &b.ARS
}

// Covers reports whether the balance fully covers amount. Auto-pay is all
// or nothing.
func (b Balance) Covers(mode money.Mode, amount decimal.Decimal) bool {
	return b.field(mode).GreaterThanOrEqual(amount)
}

// Credit adds amount in the balance currency of mode.
func (b *Balance) Credit(mode money.Mode, amount decimal.Decimal, now time.Time) {
	f := b.field(mode)
	*f = f.Add(amount)
	b.UpdatedAt = now
}

// Debit subtracts amount in the balance currency of mode.
func (b *Balance) Debit(mode money.Mode, amount decimal.Decimal, now time.Time) {
	f := b.field(mode)
	*f = f.Sub(amount)
	b.UpdatedAt = now
}

// DerivedUSD is the ARS balance expressed in USD at rate, or zero when no
// rate is available.
func (b Balance) DerivedUSD(rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return money.Round2(b.ARS.Div(rate))
}
