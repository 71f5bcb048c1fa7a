package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/ledger/infrastructure/memory"
	"splitledger/internal/money"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type stubRates struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (r *stubRates) Rate(context.Context) (decimal.Decimal, error) {
	r.calls++
	if r.err != nil {
		return decimal.Zero, r.err
	}
	return r.rate, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(match func(any) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if match(e) {
			n++
		}
	}
	return n
}

type fixture struct {
	t             *testing.T
	ctx           context.Context
	store         *memory.Store
	clock         *fixedClock
	rates         *stubRates
	publisher     *recordingPublisher
	projects      *ProjectService
	expenses      *ExpenseService
	payments      *PaymentService
	contributions *ContributionService
	summaries     *SummaryService
	catalogs      *CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		store:     memory.NewStore(),
		clock:     &fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)},
		rates:     &stubRates{rate: decimal.NewFromInt(1000)},
		publisher: &recordingPublisher{},
	}
	var err error
	if f.projects, err = NewProjectService(f.store, f.clock); err != nil {
		t.Fatalf("project service: %v", err)
	}
	if f.expenses, err = NewExpenseService(f.store, f.rates, f.publisher, f.clock); err != nil {
		t.Fatalf("expense service: %v", err)
	}
	if f.payments, err = NewPaymentService(f.store, f.rates, f.publisher, f.clock); err != nil {
		t.Fatalf("payment service: %v", err)
	}
	if f.contributions, err = NewContributionService(f.store, f.rates, f.publisher, f.clock); err != nil {
		t.Fatalf("contribution service: %v", err)
	}
	if f.summaries, err = NewSummaryService(f.store, f.rates); err != nil {
		t.Fatalf("summary service: %v", err)
	}
	if f.catalogs, err = NewCatalogService(f.store, f.clock); err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	return f
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// sharedProject creates a project administered by "admin" (0%) with the
// given members as non-admins.
func (f *fixture) sharedProject(mode money.Mode, members map[string]string) ledger.Project {
	f.t.Helper()
	project, err := f.projects.Create(f.ctx, CreateProjectCommand{TenantID: "tenant-a", ActorID: "admin", Name: "House", CurrencyMode: mode})
	if err != nil {
		f.t.Fatalf("create project: %v", err)
	}
	for userID, pct := range members {
		if _, err := f.projects.AddMember(f.ctx, AddMemberCommand{ProjectID: project.ID, ActorID: "admin", UserID: userID, Percentage: d(pct)}); err != nil {
			f.t.Fatalf("add member %s: %v", userID, err)
		}
	}
	return project
}

func (f *fixture) setBalanceARS(projectID, userID, amount string) {
	f.t.Helper()
	m, err := f.store.Members().Get(f.ctx, projectID, userID)
	if err != nil || m == nil {
		f.t.Fatalf("get member %s: %v", userID, err)
	}
	m.Balance.ARS = d(amount)
	if err := f.store.Members().Update(f.ctx, m); err != nil {
		f.t.Fatalf("update member: %v", err)
	}
}

func (f *fixture) balanceARS(projectID, userID string) decimal.Decimal {
	f.t.Helper()
	m, err := f.store.Members().Get(f.ctx, projectID, userID)
	if err != nil || m == nil {
		f.t.Fatalf("get member %s: %v", userID, err)
	}
	return m.Balance.ARS
}

func (f *fixture) createExpense(projectID, actorID, amount string, currency money.Currency) ExpenseView {
	f.t.Helper()
	view, err := f.expenses.Create(f.ctx, CreateExpenseCommand{ProjectID: projectID, ActorID: actorID, Description: "cement", Amount: d(amount), Currency: currency})
	if err != nil {
		f.t.Fatalf("create expense: %v", err)
	}
	return view
}

func obligationFor(t *testing.T, obligations []ledger.Obligation, userID string) ledger.Obligation {
	t.Helper()
	for _, o := range obligations {
		if o.UserID == userID {
			return o
		}
	}
	t.Fatalf("no obligation for %s", userID)
	return ledger.Obligation{}
}
