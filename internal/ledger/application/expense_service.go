package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
	"splitledger/internal/observability/metrics"
)

// CreateExpenseCommand creates and splits an expense.
type CreateExpenseCommand struct {
	ProjectID    string
	ActorID      string
	Description  string
	ProviderID   string
	CategoryID   string
	Amount       decimal.Decimal
	Currency     money.Currency
	RateOverride decimal.Decimal
	ExpenseDate  time.Time
	InvoicePath  string
}

// UpdateExpenseCommand edits an expense. A non-zero Amount re-prices the
// expense; obligations are not re-split.
type UpdateExpenseCommand struct {
	ProjectID    string
	ActorID      string
	ExpenseID    string
	Description  *string
	ProviderID   *string
	CategoryID   *string
	ExpenseDate  *time.Time
	Amount       decimal.Decimal
	Currency     money.Currency
	RateOverride decimal.Decimal
}

// MarkAllPaidCommand settles every clean-pending obligation of an expense.
// Currency picks the payment currency in DUAL projects (USD by default).
type MarkAllPaidCommand struct {
	ProjectID    string
	ActorID      string
	ExpenseID    string
	PaymentDate  time.Time
	RateOverride decimal.Decimal
	Currency     money.Currency
}

// ExpenseView is an expense with its obligations.
type ExpenseView struct {
	Expense     ledger.Expense
	Obligations []ledger.Obligation
}

// ExpenseService creates, splits, deletes and restores expenses.
type ExpenseService struct {
	store     ledger.Store
	rates     RateSource
	publisher Publisher
	clock     Clock
}

// NewExpenseService constructs the service. rates may be nil for projects
// that never run in DUAL mode.
func NewExpenseService(store ledger.Store, rates RateSource, publisher Publisher, clock Clock) (*ExpenseService, error) {
	if store == nil {
		return nil, errors.New("expense service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ExpenseService{store: store, rates: rates, publisher: publisher, clock: clock}, nil
}

// Create prices the expense, splits it across active members and auto-pays
// every share a member balance fully covers. All of it commits together.
func (s *ExpenseService) Create(ctx context.Context, cmd CreateExpenseCommand) (view ExpenseView, err error) {
	defer observe("expense.create", time.Now(), &err)

	if !cmd.Amount.IsPositive() {
		return ExpenseView{}, ledger.ErrNonPositiveAmount
	}
	project, err := loadProject(ctx, s.store, cmd.ProjectID)
	if err != nil {
		return ExpenseView{}, err
	}
	conv, err := priceForMode(ctx, s.rates, project, cmd.Amount, cmd.Currency, cmd.RateOverride)
	if err != nil {
		return ExpenseView{}, err
	}

	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		project, err := loadProject(ctx, uow, cmd.ProjectID)
		if err != nil {
			return err
		}
		actor, err := resolveActor(ctx, uow, project.ID, cmd.ActorID)
		if err != nil {
			return err
		}
		providerID, categoryID := strings.TrimSpace(cmd.ProviderID), strings.TrimSpace(cmd.CategoryID)
		if err := checkCatalogRefs(ctx, uow, project.TenantID, providerID, categoryID); err != nil {
			return err
		}
		now := s.clock.Now()
		expenseDate := cmd.ExpenseDate
		if expenseDate.IsZero() {
			expenseDate = now
		}
		expense := ledger.Expense{
			ID:          uuid.NewString(),
			ProjectID:   project.ID,
			Description: strings.TrimSpace(cmd.Description),
			ProviderID:  providerID,
			CategoryID:  categoryID,
			ExpenseDate: expenseDate,
			InvoicePath: cmd.InvoicePath,
			Status:      ledger.ExpensePending,
			CreatedBy:   actor.UserID,
			CreatedAt:   now,
		}
		if err := expense.Price(cmd.Amount, cmd.Currency, conv, now); err != nil {
			return err
		}

		members, err := uow.Members().ListByProject(ctx, project.ID)
		if err != nil {
			return err
		}
		shares := ledger.Split(project.CurrencyMode, expense.AmountUSD, expense.AmountARS, members)
		obligations := make([]ledger.Obligation, 0, len(shares))
		autoPaid := 0
		for _, share := range shares {
			o := ledger.Obligation{
				ID:             uuid.NewString(),
				ProjectID:      project.ID,
				Owner:          ledger.Owner{Kind: ledger.OwnerExpense, ID: expense.ID},
				Direction:      ledger.Debit,
				UserID:         share.UserID,
				OriginCurrency: expense.CurrencyOriginal,
				OriginRate:     expense.ExchangeRateUsed,
				Percentage:     share.Percentage,
				AmountDueUSD:   share.DueUSD,
				AmountDueARS:   share.DueARS,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			paid, adjusted, err := s.tryAutoPay(ctx, uow, project, &o, expense.CreatedBy, expense.ExchangeRateSource, now)
			if err != nil {
				return err
			}
			if paid {
				autoPaid++
				events.add(adjusted)
			}
			obligations = append(obligations, o)
		}

		expense.Recompute(obligations, now)
		if err := uow.Expenses().Create(ctx, &expense); err != nil {
			return err
		}
		if len(obligations) > 0 {
			if err := uow.Obligations().CreateBatch(ctx, obligations); err != nil {
				return err
			}
		}
		for i := range obligations {
			if obligations[i].AutoPaid {
				events.add(obligationChanged(&obligations[i], "auto_paid", actor.UserID, now))
			}
		}
		events.add(ExpenseCreated{
			ProjectID:   project.ID,
			ExpenseID:   expense.ID,
			CreatedBy:   actor.UserID,
			AmountUSD:   expense.AmountUSD,
			AmountARS:   expense.AmountARS,
			Obligations: len(obligations),
			AutoPaid:    autoPaid,
			Status:      string(expense.Status),
			OccurredAt:  now,
		})
		view = ExpenseView{Expense: expense, Obligations: obligations}
		return nil
	})
	if err != nil {
		return ExpenseView{}, err
	}
	events.publish(ctx, s.publisher)
	return view, nil
}

// tryAutoPay debits the member and settles o when the balance covers the
// whole share. Partial coverage leaves o pending.
func (s *ExpenseService) tryAutoPay(ctx context.Context, uow ledger.UnitOfWork, project *ledger.Project, o *ledger.Obligation, approver, rateSource string, now time.Time) (bool, BalanceAdjusted, error) {
	amount, err := o.BalanceAmount(project.CurrencyMode)
	if err != nil {
		return false, BalanceAdjusted{}, err
	}
	member, err := uow.Members().GetForUpdate(ctx, project.ID, o.UserID)
	if err != nil {
		return false, BalanceAdjusted{}, err
	}
	if member == nil || !member.Balance.Covers(project.CurrencyMode, amount) {
		metrics.IncAutoPay("insufficient")
		return false, BalanceAdjusted{}, nil
	}
	adjusted, err := adjustBalance(ctx, uow, project, o.UserID, amount, adjustDebit, o.ID, now)
	if err != nil {
		return false, BalanceAdjusted{}, err
	}
	o.AutoPay(project.CurrencyMode, approver, rateSource, now)
	metrics.IncAutoPay("paid")
	return true, adjusted, nil
}

// Update edits descriptive fields and optionally re-prices the expense.
// Only its creator or a project admin may edit it.
func (s *ExpenseService) Update(ctx context.Context, cmd UpdateExpenseCommand) (expense ledger.Expense, err error) {
	defer observe("expense.update", time.Now(), &err)

	project, err := loadProject(ctx, s.store, cmd.ProjectID)
	if err != nil {
		return ledger.Expense{}, err
	}
	var conv money.Conversion
	reprice := !cmd.Amount.IsZero()
	if reprice {
		if !cmd.Amount.IsPositive() {
			return ledger.Expense{}, ledger.ErrNonPositiveAmount
		}
		conv, err = priceForMode(ctx, s.rates, project, cmd.Amount, cmd.Currency, cmd.RateOverride)
		if err != nil {
			return ledger.Expense{}, err
		}
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		e, actor, err := s.loadExpense(ctx, uow, cmd.ProjectID, cmd.ActorID, cmd.ExpenseID)
		if err != nil {
			return err
		}
		if e.CreatedBy != actor.UserID && !actor.IsProjectAdmin {
			return ledger.ErrNotProjectAdmin
		}
		if e.IsDeleted {
			return ledger.ErrExpenseDeleted
		}
		now := s.clock.Now()
		if cmd.Description != nil {
			e.Description = strings.TrimSpace(*cmd.Description)
		}
		// Only newly assigned references must be active.
		var newProvider, newCategory string
		if cmd.ProviderID != nil && strings.TrimSpace(*cmd.ProviderID) != e.ProviderID {
			newProvider = strings.TrimSpace(*cmd.ProviderID)
			e.ProviderID = newProvider
		}
		if cmd.CategoryID != nil && strings.TrimSpace(*cmd.CategoryID) != e.CategoryID {
			newCategory = strings.TrimSpace(*cmd.CategoryID)
			e.CategoryID = newCategory
		}
		if err := checkCatalogRefs(ctx, uow, project.TenantID, newProvider, newCategory); err != nil {
			return err
		}
		if cmd.ExpenseDate != nil && !cmd.ExpenseDate.IsZero() {
			e.ExpenseDate = *cmd.ExpenseDate
		}
		if reprice {
			if err := e.Price(cmd.Amount, cmd.Currency, conv, now); err != nil {
				return err
			}
		}
		e.UpdatedAt = now
		if err := uow.Expenses().Update(ctx, e); err != nil {
			return err
		}
		expense = *e
		return nil
	})
	return expense, err
}

// AttachInvoice stores the invoice path on the expense.
func (s *ExpenseService) AttachInvoice(ctx context.Context, projectID, actorID, expenseID, path string) (expense ledger.Expense, err error) {
	defer observe("expense.invoice", time.Now(), &err)

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		e, actor, err := s.loadExpense(ctx, uow, projectID, actorID, expenseID)
		if err != nil {
			return err
		}
		if e.CreatedBy != actor.UserID && !actor.IsProjectAdmin {
			return ledger.ErrNotProjectAdmin
		}
		if e.IsDeleted {
			return ledger.ErrExpenseDeleted
		}
		e.InvoicePath = strings.TrimSpace(path)
		e.UpdatedAt = s.clock.Now()
		if err := uow.Expenses().Update(ctx, e); err != nil {
			return err
		}
		expense = *e
		return nil
	})
	return expense, err
}

// Delete soft-deletes the expense and its obligations. Receipted
// obligations block the deletion; auto-paid shares are refunded.
func (s *ExpenseService) Delete(ctx context.Context, projectID, actorID, expenseID string) (err error) {
	defer observe("expense.delete", time.Now(), &err)

	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		e, actor, err := s.loadExpense(ctx, uow, projectID, actorID, expenseID)
		if err != nil {
			return err
		}
		if err := requireAdmin(actor); err != nil {
			return err
		}
		if e.IsDeleted {
			return ledger.ErrExpenseDeleted
		}
		project, err := loadProject(ctx, uow, projectID)
		if err != nil {
			return err
		}
		owner := ledger.Owner{Kind: ledger.OwnerExpense, ID: e.ID}
		obligations, err := uow.Obligations().ListByOwner(ctx, owner, false)
		if err != nil {
			return err
		}
		if err := ledger.CheckDeletable(e.ID, obligations); err != nil {
			return err
		}

		now := s.clock.Now()
		refunded := 0
		for i := range obligations {
			o := &obligations[i]
			if o.IsPaid && o.AutoPaid {
				amount, err := o.BalanceAmount(project.CurrencyMode)
				if err != nil {
					return err
				}
				adjusted, err := adjustBalance(ctx, uow, project, o.UserID, amount, adjustRefund, o.ID, now)
				if err != nil {
					return err
				}
				refunded++
				events.add(adjusted)
			}
			o.SoftDelete(actor.UserID, now)
			if err := uow.Obligations().Update(ctx, o); err != nil {
				return err
			}
			events.add(obligationChanged(o, "deleted", actor.UserID, now))
		}
		if err := e.SoftDelete(actor.UserID, now); err != nil {
			return err
		}
		if err := uow.Expenses().Update(ctx, e); err != nil {
			return err
		}
		events.add(ExpenseDeleted{ProjectID: projectID, ExpenseID: e.ID, DeletedBy: actor.UserID, Refunded: refunded, OccurredAt: now})
		return nil
	})
	if err != nil {
		return err
	}
	events.publish(ctx, s.publisher)
	return nil
}

// Restore un-deletes the expense and the obligations deleted with it.
// Obligations that had been auto-paid come back pending.
func (s *ExpenseService) Restore(ctx context.Context, projectID, actorID, expenseID string) (view ExpenseView, err error) {
	defer observe("expense.restore", time.Now(), &err)

	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		e, actor, err := s.loadExpense(ctx, uow, projectID, actorID, expenseID)
		if err != nil {
			return err
		}
		if err := requireAdmin(actor); err != nil {
			return err
		}
		now := s.clock.Now()
		if err := e.Restore(now); err != nil {
			return err
		}
		owner := ledger.Owner{Kind: ledger.OwnerExpense, ID: e.ID}
		obligations, err := uow.Obligations().ListByOwner(ctx, owner, true)
		if err != nil {
			return err
		}
		for i := range obligations {
			o := &obligations[i]
			if !o.IsDeleted {
				continue
			}
			o.Restore(now)
			if err := uow.Obligations().Update(ctx, o); err != nil {
				return err
			}
			events.add(obligationChanged(o, "restored", actor.UserID, now))
		}
		from := e.Status
		if e.Recompute(obligations, now) {
			events.add(ExpenseStatusChanged{ProjectID: projectID, ExpenseID: e.ID, From: string(from), To: string(e.Status), OccurredAt: now})
		}
		if err := uow.Expenses().Update(ctx, e); err != nil {
			return err
		}
		events.add(ExpenseRestored{ProjectID: projectID, ExpenseID: e.ID, RestoredBy: actor.UserID, OccurredAt: now})
		view = ExpenseView{Expense: *e, Obligations: obligations}
		return nil
	})
	if err != nil {
		return ExpenseView{}, err
	}
	events.publish(ctx, s.publisher)
	return view, nil
}

// MarkAllPaid lets an admin settle every clean-pending obligation of an
// expense at its due amount.
func (s *ExpenseService) MarkAllPaid(ctx context.Context, cmd MarkAllPaidCommand) (view ExpenseView, err error) {
	defer observe("expense.mark_all_paid", time.Now(), &err)

	project, err := loadProject(ctx, s.store, cmd.ProjectID)
	if err != nil {
		return ExpenseView{}, err
	}
	currency := cmd.Currency
	switch project.CurrencyMode {
	case money.ModeARS:
		currency = money.CurrencyARS
	case money.ModeUSD:
		currency = money.CurrencyUSD
	default:
		if currency == "" {
			currency = money.CurrencyUSD
		}
	}
	if err := project.ValidateCurrency(currency); err != nil {
		return ExpenseView{}, err
	}
	rate, source := decimal.Zero, ""
	if project.CurrencyMode == money.ModeDual {
		rate, source, err = resolveRate(ctx, s.rates, cmd.RateOverride)
		if err != nil {
			return ExpenseView{}, err
		}
	}

	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		e, actor, err := s.loadExpense(ctx, uow, cmd.ProjectID, cmd.ActorID, cmd.ExpenseID)
		if err != nil {
			return err
		}
		if err := requireAdmin(actor); err != nil {
			return err
		}
		if e.IsDeleted {
			return ledger.ErrExpenseDeleted
		}
		owner := ledger.Owner{Kind: ledger.OwnerExpense, ID: e.ID}
		obligations, err := uow.Obligations().ListByOwner(ctx, owner, false)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		marked := 0
		for i := range obligations {
			o := &obligations[i]
			if o.IsPaid || o.IsPendingApproval {
				continue
			}
			amount := o.Due(currency)
			if !amount.IsPositive() {
				continue
			}
			conv, err := money.ConvertForMode(project.CurrencyMode, amount, currency, rate, source)
			if err != nil {
				return err
			}
			if err := o.MarkPaid(actor, paymentFrom(amount, currency, conv, cmd.PaymentDate), now); err != nil {
				return fmt.Errorf("obligation %s: %w", o.ID, err)
			}
			if err := uow.Obligations().Update(ctx, o); err != nil {
				return err
			}
			marked++
			events.add(obligationChanged(o, "marked_paid", actor.UserID, now))
		}
		if marked == 0 {
			return ledger.ErrNothingToMark
		}
		from := e.Status
		if e.Recompute(obligations, now) {
			if err := uow.Expenses().Update(ctx, e); err != nil {
				return err
			}
			events.add(ExpenseStatusChanged{ProjectID: e.ProjectID, ExpenseID: e.ID, From: string(from), To: string(e.Status), OccurredAt: now})
		}
		view = ExpenseView{Expense: *e, Obligations: obligations}
		return nil
	})
	if err != nil {
		return ExpenseView{}, err
	}
	events.publish(ctx, s.publisher)
	return view, nil
}

// Get returns an expense with its participant breakdown. Deleted expenses
// include their deleted obligations.
func (s *ExpenseService) Get(ctx context.Context, projectID, actorID, expenseID string) (ExpenseView, error) {
	e, _, err := s.loadExpense(ctx, s.store, projectID, actorID, expenseID)
	if err != nil {
		return ExpenseView{}, err
	}
	obligations, err := s.store.Obligations().ListByOwner(ctx, ledger.Owner{Kind: ledger.OwnerExpense, ID: e.ID}, e.IsDeleted)
	if err != nil {
		return ExpenseView{}, err
	}
	return ExpenseView{Expense: *e, Obligations: obligations}, nil
}

// List returns the project's expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, projectID, actorID string, includeDeleted bool) ([]ledger.Expense, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := resolveActor(ctx, s.store, project.ID, actorID); err != nil {
		return nil, err
	}
	return s.store.Expenses().ListByProject(ctx, project.ID, includeDeleted)
}

func (s *ExpenseService) loadExpense(ctx context.Context, uow ledger.UnitOfWork, projectID, actorID, expenseID string) (*ledger.Expense, ledger.Actor, error) {
	project, err := loadProject(ctx, uow, projectID)
	if err != nil {
		return nil, ledger.Actor{}, err
	}
	actor, err := resolveActor(ctx, uow, project.ID, actorID)
	if err != nil {
		return nil, ledger.Actor{}, err
	}
	e, err := uow.Expenses().Get(ctx, project.ID, strings.TrimSpace(expenseID))
	if err != nil {
		return nil, ledger.Actor{}, err
	}
	if e == nil {
		return nil, ledger.Actor{}, fmt.Errorf("%w: expense %s", ledger.ErrNotFound, expenseID)
	}
	return e, actor, nil
}
