package application

import (
	"context"
	"errors"
	"time"

	ledger "splitledger/internal/ledger/domain"
)

// StatusDrift is an expense whose stored status disagrees with its
// obligations.
type StatusDrift struct {
	ProjectID   string
	ExpenseID   string
	Description string
	Stored      ledger.ExpenseStatus
	Computed    ledger.ExpenseStatus
	Obligations int
	Paid        int
	Fixed       bool
}

// ReconcileService is the operator-side consistency check. It runs
// without a project actor.
type ReconcileService struct {
	store     ledger.Store
	publisher Publisher
	clock     Clock
}

// NewReconcileService constructs the service.
func NewReconcileService(store ledger.Store, publisher Publisher, clock Clock) (*ReconcileService, error) {
	if store == nil {
		return nil, errors.New("reconcile service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReconcileService{store: store, publisher: publisher, clock: clock}, nil
}

// Reconcile recomputes the status of every live expense of the project.
// With fix set, drifted expenses are rewritten in a single transaction.
func (s *ReconcileService) Reconcile(ctx context.Context, projectID string, fix bool) (drifts []StatusDrift, err error) {
	defer observe("expense.reconcile", time.Now(), &err)

	var events eventBuffer
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		events.reset()
		drifts = drifts[:0]
		project, err := loadProject(ctx, uow, projectID)
		if err != nil {
			return err
		}
		expenses, err := uow.Expenses().ListByProject(ctx, project.ID, false)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for i := range expenses {
			e := &expenses[i]
			obligations, err := uow.Obligations().ListByOwner(ctx, ledger.Owner{Kind: ledger.OwnerExpense, ID: e.ID}, false)
			if err != nil {
				return err
			}
			computed := ledger.RecomputeStatus(e.Status, obligations)
			if computed == e.Status {
				continue
			}
			drift := StatusDrift{
				ProjectID:   project.ID,
				ExpenseID:   e.ID,
				Description: e.Description,
				Stored:      e.Status,
				Computed:    computed,
			}
			for _, o := range obligations {
				drift.Obligations++
				if o.IsPaid {
					drift.Paid++
				}
			}
			if fix {
				from := e.Status
				e.Recompute(obligations, now)
				if err := uow.Expenses().Update(ctx, e); err != nil {
					return err
				}
				drift.Fixed = true
				events.add(ExpenseStatusChanged{ProjectID: project.ID, ExpenseID: e.ID, From: string(from), To: string(e.Status), OccurredAt: now})
			}
			drifts = append(drifts, drift)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.publish(ctx, s.publisher)
	return drifts, nil
}
