package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"splitledger/internal/money"
)

// ActiveMembers returns members that are active with a positive percentage,
// ordered by user id.
func ActiveMembers(members []Member) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if m.IsActive && m.Percentage.IsPositive() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ParticipationReport is the advisory 100% check.
type ParticipationReport struct {
	IsValid bool
	Total   decimal.Decimal
	Message string
}

// ValidateParticipation sums active percentages. Valid only on exact equality
// with 100.
func ValidateParticipation(members []Member) ParticipationReport {
	total := decimal.Zero
	for _, m := range ActiveMembers(members) {
		total = total.Add(m.Percentage)
	}
	report := ParticipationReport{IsValid: total.Equal(hundred), Total: total}
	if report.IsValid {
		report.Message = "participation percentages add up to 100%"
	} else {
		report.Message = fmt.Sprintf("participation percentages add up to %s%%, expected 100%%", total.String())
	}
	return report
}

// Share is one member's computed part of a total.
type Share struct {
	UserID     string
	Percentage decimal.Decimal
	DueUSD     decimal.Decimal
	DueARS     decimal.Decimal
}

// Split prorates totals across the active members. Single-currency modes fix
// the unused currency to zero; DUAL rounds each currency independently.
func Split(mode money.Mode, totalUSD, totalARS decimal.Decimal, members []Member) []Share {
	active := ActiveMembers(members)
	shares := make([]Share, 0, len(active))
	for _, m := range active {
		fraction := m.Percentage.Div(hundred)
		share := Share{UserID: m.UserID, Percentage: m.Percentage, DueUSD: decimal.Zero, DueARS: decimal.Zero}
		switch mode {
		case money.ModeARS:
			share.DueARS = money.Round2(totalARS.Mul(fraction))
		case money.ModeUSD:
			share.DueUSD = money.Round2(totalUSD.Mul(fraction))
		default:
			share.DueUSD = money.Round2(totalUSD.Mul(fraction))
			share.DueARS = money.Round2(totalARS.Mul(fraction))
		}
		shares = append(shares, share)
	}
	return shares
}
