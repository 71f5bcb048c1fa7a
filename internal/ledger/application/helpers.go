package application

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
	"splitledger/internal/observability/metrics"
)

// Balance adjustment kinds.
const (
	adjustCredit = "credit"
	adjustDebit  = "debit"
	adjustRefund = "refund"
)

func observe(operation string, start time.Time, err *error) {
	result := metrics.ResultSuccess
	if err != nil && *err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveOperation(operation, result, time.Since(start))
}

func loadProject(ctx context.Context, uow ledger.UnitOfWork, projectID string) (*ledger.Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ledger.ErrEmptyProjectID
	}
	project, err := uow.Projects().Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %s", ledger.ErrNotFound, projectID)
	}
	return project, nil
}

// resolveActor turns a caller id into an Actor; only active members act on
// a project.
func resolveActor(ctx context.Context, uow ledger.UnitOfWork, projectID, userID string) (ledger.Actor, error) {
	userID, err := ledger.NormalizeUserID(userID)
	if err != nil {
		return ledger.Actor{}, err
	}
	member, err := uow.Members().Get(ctx, projectID, userID)
	if err != nil {
		return ledger.Actor{}, err
	}
	if member == nil || !member.IsActive {
		return ledger.Actor{}, ledger.ErrNotMember
	}
	return ledger.Actor{UserID: userID, IsProjectAdmin: member.IsAdmin}, nil
}

func requireAdmin(actor ledger.Actor) error {
	if !actor.IsProjectAdmin {
		return ledger.ErrNotProjectAdmin
	}
	return nil
}

// resolveRate prefers a positive override (tagged manual) and otherwise asks
// the rate source (tagged auto).
func resolveRate(ctx context.Context, rates RateSource, override decimal.Decimal) (decimal.Decimal, string, error) {
	if override.IsPositive() {
		return override, money.RateSourceManual, nil
	}
	if override.IsNegative() {
		return decimal.Zero, "", money.ErrInvalidRate
	}
	if rates == nil {
		return decimal.Zero, "", ledger.ErrRateRequired
	}
	rate, err := rates.Rate(ctx)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("ledger: exchange rate: %w", err)
	}
	return rate, money.RateSourceAuto, nil
}

// priceForMode converts amount for a project, fetching a rate only when the
// mode is DUAL.
func priceForMode(ctx context.Context, rates RateSource, project *ledger.Project, amount decimal.Decimal, currency money.Currency, override decimal.Decimal) (money.Conversion, error) {
	if err := project.ValidateCurrency(currency); err != nil {
		return money.Conversion{}, err
	}
	rate, source := decimal.Zero, ""
	if project.CurrencyMode == money.ModeDual {
		var err error
		rate, source, err = resolveRate(ctx, rates, override)
		if err != nil {
			return money.Conversion{}, err
		}
	}
	return money.ConvertForMode(project.CurrencyMode, amount, currency, rate, source)
}

func paymentFrom(amount decimal.Decimal, currency money.Currency, conv money.Conversion, paymentDate time.Time) ledger.Payment {
	return ledger.Payment{
		Amount:      money.Round2(amount),
		Currency:    currency,
		AmountUSD:   conv.USD,
		AmountARS:   conv.ARS,
		Rate:        conv.Rate,
		RateSource:  conv.RateSource,
		PaymentDate: paymentDate,
	}
}

// adjustBalance locks the member row and moves amount in the balance
// currency of the project mode.
func adjustBalance(ctx context.Context, uow ledger.UnitOfWork, project *ledger.Project, userID string, amount decimal.Decimal, kind, obligationID string, now time.Time) (BalanceAdjusted, error) {
	member, err := uow.Members().GetForUpdate(ctx, project.ID, userID)
	if err != nil {
		return BalanceAdjusted{}, err
	}
	if member == nil {
		return BalanceAdjusted{}, fmt.Errorf("%w: member %s", ledger.ErrNotFound, userID)
	}
	if kind == adjustDebit {
		member.Balance.Debit(project.CurrencyMode, amount, now)
	} else {
		member.Balance.Credit(project.CurrencyMode, amount, now)
	}
	if err := uow.Members().Update(ctx, member); err != nil {
		return BalanceAdjusted{}, err
	}
	metrics.IncBalanceAdjustment(kind)
	return BalanceAdjusted{
		ProjectID:    project.ID,
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		Currency:     string(project.CurrencyMode.BalanceCurrency()),
		BalanceARS:   member.Balance.ARS,
		BalanceUSD:   member.Balance.USD,
		ObligationID: obligationID,
		OccurredAt:   now,
	}, nil
}

// recomputeExpense re-derives the owning expense's status from all of its
// obligations. Contribution owners carry no aggregated status.
func recomputeExpense(ctx context.Context, uow ledger.UnitOfWork, projectID string, owner ledger.Owner, now time.Time) (*ExpenseStatusChanged, error) {
	if owner.Kind != ledger.OwnerExpense {
		return nil, nil
	}
	expense, err := uow.Expenses().Get(ctx, projectID, owner.ID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: expense %s", ledger.ErrNotFound, owner.ID)
	}
	obligations, err := uow.Obligations().ListByOwner(ctx, owner, false)
	if err != nil {
		return nil, err
	}
	from := expense.Status
	if !expense.Recompute(obligations, now) {
		return nil, nil
	}
	if err := uow.Expenses().Update(ctx, expense); err != nil {
		return nil, err
	}
	return &ExpenseStatusChanged{
		ProjectID:  projectID,
		ExpenseID:  expense.ID,
		From:       string(from),
		To:         string(expense.Status),
		OccurredAt: now,
	}, nil
}

func obligationChanged(o *ledger.Obligation, action, actorID string, now time.Time) ObligationChanged {
	return ObligationChanged{
		ProjectID:    o.ProjectID,
		ObligationID: o.ID,
		OwnerKind:    string(o.Owner.Kind),
		OwnerID:      o.Owner.ID,
		UserID:       o.UserID,
		Direction:    string(o.Direction),
		Action:       action,
		State:        string(o.State()),
		ActorID:      actorID,
		OccurredAt:   now,
	}
}

// eventBuffer collects events inside a transaction for publishing after
// commit.
type eventBuffer struct {
	events []any
}

func (b *eventBuffer) add(events ...any) {
	for _, e := range events {
		switch v := e.(type) {
		case nil:
			continue
		case *ExpenseStatusChanged:
			if v == nil {
				continue
			}
			b.events = append(b.events, *v)
		default:
			b.events = append(b.events, e)
		}
	}
}

func (b *eventBuffer) reset() {
	b.events = b.events[:0]
}

func (b *eventBuffer) publish(ctx context.Context, publisher Publisher) {
	if publisher == nil {
		return
	}
	for _, event := range b.events {
		if err := publisher.Publish(ctx, event); err != nil {
			log.Printf("ledger event publish error: %T: %v", event, err)
		}
	}
}
