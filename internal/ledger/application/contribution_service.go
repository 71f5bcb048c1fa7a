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
)

// CreateContributionCommand registers a balance top-up. TargetUserID
// defaults to the caller; crediting someone else or splitting across
// members needs an admin.
type CreateContributionCommand struct {
	ProjectID        string
	ActorID          string
	TargetUserID     string
	Amount           decimal.Decimal
	Currency         money.Currency
	RateOverride     decimal.Decimal
	Description      string
	Split            bool
	ContributionDate time.Time
}

// ContributionView is a contribution with its credit obligations.
type ContributionView struct {
	Contribution ledger.Contribution
	Obligations  []ledger.Obligation
}

// ContributionService manages contributions and their credit obligations.
type ContributionService struct {
	store           ledger.Store
	rates           RateSource
	publisher       Publisher
	clock           Clock
	rejectionReason string
}

// ContributionOption configures a ContributionService.
type ContributionOption func(*ContributionService)

// WithContributionRejectionReason sets the reason recorded when an admin
// rejects without one.
func WithContributionRejectionReason(reason string) ContributionOption {
	return func(s *ContributionService) {
		s.rejectionReason = strings.TrimSpace(reason)
	}
}

// NewContributionService constructs the service.
func NewContributionService(store ledger.Store, rates RateSource, publisher Publisher, clock Clock, opts ...ContributionOption) (*ContributionService, error) {
	if store == nil {
		return nil, errors.New("contribution service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	s := &ContributionService{store: store, rates: rates, publisher: publisher, clock: clock}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create stores a pending contribution and its credit obligations. No
// balance moves until the credits are approved.
func (s *ContributionService) Create(ctx context.Context, cmd CreateContributionCommand) (view ContributionView, err error) {
	defer observe("contribution.create", time.Now(), &err)

	if !cmd.Amount.IsPositive() {
		return ContributionView{}, ledger.ErrNonPositiveAmount
	}
	project, err := loadProject(ctx, s.store, cmd.ProjectID)
	if err != nil {
		return ContributionView{}, err
	}
	if err := project.ValidateCurrency(cmd.Currency); err != nil {
		return ContributionView{}, err
	}
	rate, source := decimal.Zero, ""
	if project.CurrencyMode == money.ModeDual && cmd.Currency == money.CurrencyUSD {
		rate, source, err = resolveRate(ctx, s.rates, cmd.RateOverride)
		if err != nil {
			return ContributionView{}, err
		}
	}
	usd, ars, rateUsed, rateSource, err := ledger.PriceContribution(project.CurrencyMode, cmd.Amount, cmd.Currency, rate, source)
	if err != nil {
		return ContributionView{}, err
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
		target := strings.TrimSpace(cmd.TargetUserID)
		if target == "" {
			target = actor.UserID
		}
		if (target != actor.UserID || cmd.Split) && !actor.IsProjectAdmin {
			return ledger.ErrNotProjectAdmin
		}
		targetMember, err := uow.Members().Get(ctx, project.ID, target)
		if err != nil {
			return err
		}
		if targetMember == nil || !targetMember.IsActive {
			return ledger.ErrNotMember
		}

		now := s.clock.Now()
		contributionDate := cmd.ContributionDate
		if contributionDate.IsZero() {
			contributionDate = now
		}
		contribution := ledger.Contribution{
			ID:                 uuid.NewString(),
			ProjectID:          project.ID,
			UserID:             target,
			AmountOriginal:     cmd.Amount,
			CurrencyOriginal:   cmd.Currency,
			AmountUSD:          usd,
			AmountARS:          ars,
			ExchangeRateUsed:   rateUsed,
			ExchangeRateSource: rateSource,
			Description:        strings.TrimSpace(cmd.Description),
			Split:              cmd.Split,
			Status:             ledger.ContributionPending,
			ContributionDate:   contributionDate,
			CreatedBy:          actor.UserID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		var shares []ledger.Share
		if cmd.Split {
			members, err := uow.Members().ListByProject(ctx, project.ID)
			if err != nil {
				return err
			}
			shares = ledger.Split(project.CurrencyMode, usd, ars, members)
			if len(shares) == 0 {
				return ledger.ErrNoActiveMembers
			}
		} else {
			shares = []ledger.Share{{UserID: target, Percentage: decimal.NewFromInt(100), DueUSD: usd, DueARS: ars}}
		}

		obligations := make([]ledger.Obligation, 0, len(shares))
		for _, share := range shares {
			obligations = append(obligations, ledger.Obligation{
				ID:             uuid.NewString(),
				ProjectID:      project.ID,
				Owner:          ledger.Owner{Kind: ledger.OwnerContribution, ID: contribution.ID},
				Direction:      ledger.Credit,
				UserID:         share.UserID,
				OriginCurrency: ledger.StoredCurrency(project.CurrencyMode),
				OriginRate:     rateUsed,
				Percentage:     share.Percentage,
				AmountDueUSD:   share.DueUSD,
				AmountDueARS:   share.DueARS,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
		}
		if err := uow.Contributions().Create(ctx, &contribution); err != nil {
			return err
		}
		if err := uow.Obligations().CreateBatch(ctx, obligations); err != nil {
			return err
		}
		events.add(ContributionCreated{
			ProjectID:      project.ID,
			ContributionID: contribution.ID,
			UserID:         target,
			AmountUSD:      usd,
			AmountARS:      ars,
			Split:          cmd.Split,
			OccurredAt:     now,
		})
		view = ContributionView{Contribution: contribution, Obligations: obligations}
		return nil
	})
	if err != nil {
		return ContributionView{}, err
	}
	events.publish(ctx, s.publisher)
	return view, nil
}

// Approve settles every unpaid credit obligation, crediting each member,
// and marks the contribution approved.
func (s *ContributionService) Approve(ctx context.Context, projectID, actorID, contributionID string) (view ContributionView, err error) {
	defer observe("contribution.approve", time.Now(), &err)

	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		project, actor, c, err := s.load(ctx, uow, projectID, actorID, contributionID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := c.Approve(actor, now); err != nil {
			return err
		}
		obligations, err := uow.Obligations().ListByOwner(ctx, ledger.Owner{Kind: ledger.OwnerContribution, ID: c.ID}, false)
		if err != nil {
			return err
		}
		stored := ledger.StoredCurrency(project.CurrencyMode)
		for i := range obligations {
			o := &obligations[i]
			if o.IsPaid {
				continue
			}
			if o.IsPendingApproval {
				if _, err := o.Review(actor, true, "", now); err != nil {
					return err
				}
			} else {
				due := o.Due(stored)
				if !due.IsPositive() {
					continue
				}
				payment := ledger.Payment{
					Amount:      due,
					Currency:    stored,
					AmountUSD:   o.AmountDueUSD,
					AmountARS:   o.AmountDueARS,
					Rate:        c.ExchangeRateUsed,
					RateSource:  c.ExchangeRateSource,
					PaymentDate: c.ContributionDate,
				}
				if err := o.MarkPaid(actor, payment, now); err != nil {
					return err
				}
			}
			amount, err := o.BalanceAmount(project.CurrencyMode)
			if err != nil {
				return err
			}
			adjusted, err := adjustBalance(ctx, uow, project, o.UserID, amount, adjustCredit, o.ID, now)
			if err != nil {
				return err
			}
			if err := uow.Obligations().Update(ctx, o); err != nil {
				return err
			}
			events.add(adjusted, obligationChanged(o, "approved", actor.UserID, now))
		}
		if err := uow.Contributions().Update(ctx, c); err != nil {
			return err
		}
		events.add(ContributionResolved{ProjectID: project.ID, ContributionID: c.ID, Status: string(c.Status), ResolvedBy: actor.UserID, OccurredAt: now})
		view = ContributionView{Contribution: *c, Obligations: obligations}
		return nil
	})
	if err != nil {
		return ContributionView{}, err
	}
	events.publish(ctx, s.publisher)
	return view, nil
}

// Reject marks a pending contribution rejected and retires its unpaid
// credit obligations. Balances are not touched; a contribution with a
// credit already applied cannot be rejected.
func (s *ContributionService) Reject(ctx context.Context, projectID, actorID, contributionID, reason string) (view ContributionView, err error) {
	defer observe("contribution.reject", time.Now(), &err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = s.rejectionReason
	}
	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		project, actor, c, err := s.load(ctx, uow, projectID, actorID, contributionID)
		if err != nil {
			return err
		}
		if err := requireAdmin(actor); err != nil {
			return err
		}
		obligations, err := uow.Obligations().ListByOwner(ctx, ledger.Owner{Kind: ledger.OwnerContribution, ID: c.ID}, false)
		if err != nil {
			return err
		}
		for i := range obligations {
			if obligations[i].IsPaid {
				return fmt.Errorf("%w: obligation %s", ledger.ErrContributionSettled, obligations[i].ID)
			}
		}
		now := s.clock.Now()
		if err := c.Reject(actor, reason, now); err != nil {
			return err
		}
		for i := range obligations {
			o := &obligations[i]
			o.SoftDelete(actor.UserID, now)
			if err := uow.Obligations().Update(ctx, o); err != nil {
				return err
			}
			events.add(obligationChanged(o, "deleted", actor.UserID, now))
		}
		if err := uow.Contributions().Update(ctx, c); err != nil {
			return err
		}
		events.add(ContributionResolved{ProjectID: project.ID, ContributionID: c.ID, Status: string(c.Status), ResolvedBy: actor.UserID, OccurredAt: now})
		view = ContributionView{Contribution: *c, Obligations: obligations}
		return nil
	})
	if err != nil {
		return ContributionView{}, err
	}
	events.publish(ctx, s.publisher)
	return view, nil
}

// Get returns a contribution with its credit obligations.
func (s *ContributionService) Get(ctx context.Context, projectID, actorID, contributionID string) (ContributionView, error) {
	_, _, c, err := s.load(ctx, s.store, projectID, actorID, contributionID)
	if err != nil {
		return ContributionView{}, err
	}
	obligations, err := s.store.Obligations().ListByOwner(ctx, ledger.Owner{Kind: ledger.OwnerContribution, ID: c.ID}, true)
	if err != nil {
		return ContributionView{}, err
	}
	return ContributionView{Contribution: *c, Obligations: obligations}, nil
}

// List returns the project's contributions, newest first.
func (s *ContributionService) List(ctx context.Context, projectID, actorID string) ([]ledger.Contribution, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := resolveActor(ctx, s.store, project.ID, actorID); err != nil {
		return nil, err
	}
	return s.store.Contributions().ListByProject(ctx, project.ID)
}

func (s *ContributionService) load(ctx context.Context, uow ledger.UnitOfWork, projectID, actorID, contributionID string) (*ledger.Project, ledger.Actor, *ledger.Contribution, error) {
	project, err := loadProject(ctx, uow, projectID)
	if err != nil {
		return nil, ledger.Actor{}, nil, err
	}
	actor, err := resolveActor(ctx, uow, project.ID, actorID)
	if err != nil {
		return nil, ledger.Actor{}, nil, err
	}
	c, err := uow.Contributions().Get(ctx, project.ID, strings.TrimSpace(contributionID))
	if err != nil {
		return nil, ledger.Actor{}, nil, err
	}
	if c == nil {
		return nil, ledger.Actor{}, nil, fmt.Errorf("%w: contribution %s", ledger.ErrNotFound, contributionID)
	}
	return project, actor, c, nil
}
