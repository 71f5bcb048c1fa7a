package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

// SubmitPaymentCommand records a member's payment of their obligation.
type SubmitPaymentCommand struct {
	ProjectID    string
	ActorID      string
	ObligationID string
	Amount       decimal.Decimal
	Currency     money.Currency
	RateOverride decimal.Decimal
	PaymentDate  time.Time
}

// ReviewPaymentCommand approves or rejects a pending submission.
type ReviewPaymentCommand struct {
	ProjectID    string
	ActorID      string
	ObligationID string
	Approved     bool
	Reason       string
}

// MarkPaidCommand lets an admin settle an obligation directly. A zero
// Amount settles the due amount in Currency.
type MarkPaidCommand struct {
	ProjectID    string
	ActorID      string
	ObligationID string
	Amount       decimal.Decimal
	Currency     money.Currency
	RateOverride decimal.Decimal
	PaymentDate  time.Time
}

// PaymentService drives the obligation state machine for expense debits
// and contribution credits alike.
type PaymentService struct {
	store           ledger.Store
	rates           RateSource
	publisher       Publisher
	clock           Clock
	rejectionReason string
}

// PaymentOption configures a PaymentService.
type PaymentOption func(*PaymentService)

// WithDefaultRejectionReason sets the reason recorded when an admin rejects
// without one.
func WithDefaultRejectionReason(reason string) PaymentOption {
	return func(s *PaymentService) {
		s.rejectionReason = strings.TrimSpace(reason)
	}
}

// NewPaymentService constructs the service.
func NewPaymentService(store ledger.Store, rates RateSource, publisher Publisher, clock Clock, opts ...PaymentOption) (*PaymentService, error) {
	if store == nil {
		return nil, errors.New("payment service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	s := &PaymentService{store: store, rates: rates, publisher: publisher, clock: clock}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit records the owner's payment. Debit obligations auto-approve on an
// individual project or for an admin submitter; credit obligations always
// wait for an admin.
func (s *PaymentService) Submit(ctx context.Context, cmd SubmitPaymentCommand) (obligation ledger.Obligation, err error) {
	defer observe("payment.submit", time.Now(), &err)

	if !cmd.Amount.IsPositive() {
		return ledger.Obligation{}, ledger.ErrNonPositiveAmount
	}
	project, err := loadProject(ctx, s.store, cmd.ProjectID)
	if err != nil {
		return ledger.Obligation{}, err
	}
	conv, err := priceForMode(ctx, s.rates, project, cmd.Amount, cmd.Currency, cmd.RateOverride)
	if err != nil {
		return ledger.Obligation{}, err
	}
	payment := paymentFrom(cmd.Amount, cmd.Currency, conv, cmd.PaymentDate)

	return s.mutate(ctx, cmd.ProjectID, cmd.ActorID, cmd.ObligationID, "submitted",
		func(project *ledger.Project, actor ledger.Actor, o *ledger.Obligation, now time.Time) (bool, error) {
			autoApprove := o.Direction == ledger.Debit && (project.IsIndividual || actor.IsProjectAdmin)
			return o.Submit(actor, payment, autoApprove, now)
		})
}

// Review approves or rejects a pending submission. Approving a credit
// obligation credits the member balance.
func (s *PaymentService) Review(ctx context.Context, cmd ReviewPaymentCommand) (obligation ledger.Obligation, err error) {
	defer observe("payment.review", time.Now(), &err)

	action := "approved"
	reason := strings.TrimSpace(cmd.Reason)
	if !cmd.Approved {
		action = "rejected"
		if reason == "" {
			reason = s.rejectionReason
		}
	}
	return s.mutate(ctx, cmd.ProjectID, cmd.ActorID, cmd.ObligationID, action,
		func(_ *ledger.Project, actor ledger.Actor, o *ledger.Obligation, now time.Time) (bool, error) {
			return o.Review(actor, cmd.Approved, reason, now)
		})
}

// MarkPaid settles an obligation on an admin's word, with an explicit
// payment date for backfills.
func (s *PaymentService) MarkPaid(ctx context.Context, cmd MarkPaidCommand) (obligation ledger.Obligation, err error) {
	defer observe("payment.mark_paid", time.Now(), &err)

	if cmd.Amount.IsNegative() {
		return ledger.Obligation{}, ledger.ErrNonPositiveAmount
	}
	project, err := loadProject(ctx, s.store, cmd.ProjectID)
	if err != nil {
		return ledger.Obligation{}, err
	}
	currency := cmd.Currency
	if currency == "" {
		currency = project.CurrencyMode.BalanceCurrency()
	}
	if err := project.ValidateCurrency(currency); err != nil {
		return ledger.Obligation{}, err
	}
	rate, source := decimal.Zero, ""
	if project.CurrencyMode == money.ModeDual {
		rate, source, err = resolveRate(ctx, s.rates, cmd.RateOverride)
		if err != nil {
			return ledger.Obligation{}, err
		}
	}

	return s.mutate(ctx, cmd.ProjectID, cmd.ActorID, cmd.ObligationID, "marked_paid",
		func(project *ledger.Project, actor ledger.Actor, o *ledger.Obligation, now time.Time) (bool, error) {
			amount := cmd.Amount
			if amount.IsZero() {
				amount = o.Due(currency)
			}
			conv, err := money.ConvertForMode(project.CurrencyMode, amount, currency, rate, source)
			if err != nil {
				return false, err
			}
			if err := o.MarkPaid(actor, paymentFrom(amount, currency, conv, cmd.PaymentDate), now); err != nil {
				return false, err
			}
			return true, nil
		})
}

// Unmark returns an obligation to clean pending. Reversing a paid credit
// debits the member back; reversing an auto-paid debit refunds it.
func (s *PaymentService) Unmark(ctx context.Context, projectID, actorID, obligationID string) (obligation ledger.Obligation, err error) {
	defer observe("payment.unmark", time.Now(), &err)

	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		project, actor, o, err := s.load(ctx, uow, projectID, actorID, obligationID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		before, err := o.Unmark(actor, now)
		if err != nil {
			return err
		}
		if before.IsPaid {
			kind := ""
			switch {
			case before.Direction == ledger.Credit:
				kind = adjustDebit
			case before.AutoPaid:
				kind = adjustRefund
			}
			if kind != "" {
				amount, err := before.BalanceAmount(project.CurrencyMode)
				if err != nil {
					return err
				}
				adjusted, err := adjustBalance(ctx, uow, project, o.UserID, amount, kind, o.ID, now)
				if err != nil {
					return err
				}
				events.add(adjusted)
			}
		}
		if err := uow.Obligations().Update(ctx, o); err != nil {
			return err
		}
		changed, err := recomputeExpense(ctx, uow, project.ID, o.Owner, now)
		if err != nil {
			return err
		}
		events.add(obligationChanged(o, "unmarked", actor.UserID, now), changed)
		obligation = *o
		return nil
	})
	if err != nil {
		return ledger.Obligation{}, err
	}
	events.publish(ctx, s.publisher)
	return obligation, nil
}

// AttachReceipt stores a receipt path; owner or admin.
func (s *PaymentService) AttachReceipt(ctx context.Context, projectID, actorID, obligationID, path string) (ledger.Obligation, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ledger.Obligation{}, errors.New("ledger: receipt path required")
	}
	return s.updateReceipt(ctx, projectID, actorID, obligationID, "receipt_attached", func(actor ledger.Actor, o *ledger.Obligation, now time.Time) error {
		return o.AttachReceipt(actor, path, now)
	})
}

// RemoveReceipt clears the receipt path; owner or admin.
func (s *PaymentService) RemoveReceipt(ctx context.Context, projectID, actorID, obligationID string) (ledger.Obligation, error) {
	return s.updateReceipt(ctx, projectID, actorID, obligationID, "receipt_removed", func(actor ledger.Actor, o *ledger.Obligation, now time.Time) error {
		return o.RemoveReceipt(actor, now)
	})
}

func (s *PaymentService) updateReceipt(ctx context.Context, projectID, actorID, obligationID, action string, fn func(ledger.Actor, *ledger.Obligation, time.Time) error) (obligation ledger.Obligation, err error) {
	defer observe("payment."+action, time.Now(), &err)

	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		_, actor, o, err := s.load(ctx, uow, projectID, actorID, obligationID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := fn(actor, o, now); err != nil {
			return err
		}
		if err := uow.Obligations().Update(ctx, o); err != nil {
			return err
		}
		events.add(obligationChanged(o, action, actor.UserID, now))
		obligation = *o
		return nil
	})
	if err != nil {
		return ledger.Obligation{}, err
	}
	events.publish(ctx, s.publisher)
	return obligation, nil
}

// Get returns one obligation of the project.
func (s *PaymentService) Get(ctx context.Context, projectID, actorID, obligationID string) (ledger.Obligation, error) {
	_, _, o, err := s.load(ctx, s.store, projectID, actorID, obligationID)
	if err != nil {
		return ledger.Obligation{}, err
	}
	return *o, nil
}

// ListMine returns the caller's obligations of both directions.
func (s *PaymentService) ListMine(ctx context.Context, projectID, actorID string, pendingOnly bool) ([]ledger.Obligation, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	actor, err := resolveActor(ctx, s.store, project.ID, actorID)
	if err != nil {
		return nil, err
	}
	return s.store.Obligations().ListByProject(ctx, project.ID, ledger.ObligationFilter{UserID: actor.UserID, PendingOnly: pendingOnly})
}

// ListProject returns every live obligation of the project; admin only.
func (s *PaymentService) ListProject(ctx context.Context, projectID, actorID string, pendingOnly bool) ([]ledger.Obligation, error) {
	return s.listForAdmin(ctx, projectID, actorID, ledger.ObligationFilter{PendingOnly: pendingOnly})
}

// ListPendingApproval returns submissions waiting for an admin.
func (s *PaymentService) ListPendingApproval(ctx context.Context, projectID, actorID string) ([]ledger.Obligation, error) {
	return s.listForAdmin(ctx, projectID, actorID, ledger.ObligationFilter{PendingApproval: true})
}

func (s *PaymentService) listForAdmin(ctx context.Context, projectID, actorID string, filter ledger.ObligationFilter) ([]ledger.Obligation, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	actor, err := resolveActor(ctx, s.store, project.ID, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.Obligations().ListByProject(ctx, project.ID, filter)
}

type transition func(project *ledger.Project, actor ledger.Actor, o *ledger.Obligation, now time.Time) (bool, error)

// mutate runs one state transition. When it leaves a credit obligation
// paid the member balance is credited; the owning expense status is
// recomputed either way.
func (s *PaymentService) mutate(ctx context.Context, projectID, actorID, obligationID, action string, fn transition) (ledger.Obligation, error) {
	var (
		events     eventBuffer
		obligation ledger.Obligation
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		project, actor, o, err := s.load(ctx, uow, projectID, actorID, obligationID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		becamePaid, err := fn(project, actor, o, now)
		if err != nil {
			return err
		}
		if becamePaid && o.Direction == ledger.Credit {
			amount, err := o.BalanceAmount(project.CurrencyMode)
			if err != nil {
				return err
			}
			adjusted, err := adjustBalance(ctx, uow, project, o.UserID, amount, adjustCredit, o.ID, now)
			if err != nil {
				return err
			}
			events.add(adjusted)
		}
		if err := uow.Obligations().Update(ctx, o); err != nil {
			return err
		}
		changed, err := recomputeExpense(ctx, uow, project.ID, o.Owner, now)
		if err != nil {
			return err
		}
		events.add(obligationChanged(o, action, actor.UserID, now), changed)
		obligation = *o
		return nil
	})
	if err != nil {
		return ledger.Obligation{}, err
	}
	events.publish(ctx, s.publisher)
	return obligation, nil
}

func (s *PaymentService) load(ctx context.Context, uow ledger.UnitOfWork, projectID, actorID, obligationID string) (*ledger.Project, ledger.Actor, *ledger.Obligation, error) {
	project, err := loadProject(ctx, uow, projectID)
	if err != nil {
		return nil, ledger.Actor{}, nil, err
	}
	actor, err := resolveActor(ctx, uow, project.ID, actorID)
	if err != nil {
		return nil, ledger.Actor{}, nil, err
	}
	o, err := uow.Obligations().Get(ctx, project.ID, strings.TrimSpace(obligationID))
	if err != nil {
		return nil, ledger.Actor{}, nil, err
	}
	if o == nil {
		return nil, ledger.Actor{}, nil, fmt.Errorf("%w: obligation %s", ledger.ErrNotFound, obligationID)
	}
	return project, actor, o, nil
}
