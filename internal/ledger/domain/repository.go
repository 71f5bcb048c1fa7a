package ledger

import "context"

// Lookups by id return (nil, nil) when the record does not exist.

// ProjectRepository persists projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	Update(ctx context.Context, project *Project) error
	Get(ctx context.Context, projectID string) (*Project, error)
	ListForUser(ctx context.Context, tenantID, userID string) ([]Project, error)
	HasExpenses(ctx context.Context, projectID string) (bool, error)
}

// MemberRepository persists members and their balances.
type MemberRepository interface {
	Get(ctx context.Context, projectID, userID string) (*Member, error)
	// GetForUpdate loads a member and holds its row until the surrounding
	// transaction ends. Every balance mutation goes through it.
	GetForUpdate(ctx context.Context, projectID, userID string) (*Member, error)
	ListByProject(ctx context.Context, projectID string) ([]Member, error)
	Create(ctx context.Context, member *Member) error
	Update(ctx context.Context, member *Member) error
	AppendHistory(ctx context.Context, change MemberChange) error
	ListHistory(ctx context.Context, projectID string) ([]MemberChange, error)
}

// ExpenseRepository persists expenses.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *Expense) error
	Update(ctx context.Context, expense *Expense) error
	Get(ctx context.Context, projectID, expenseID string) (*Expense, error)
	ListByProject(ctx context.Context, projectID string, includeDeleted bool) ([]Expense, error)
}

// ObligationFilter narrows obligation listings.
type ObligationFilter struct {
	UserID          string
	Direction       Direction
	PendingOnly     bool
	PendingApproval bool
	IncludeDeleted  bool
}

// ObligationRepository persists obligations of both directions.
type ObligationRepository interface {
	CreateBatch(ctx context.Context, obligations []Obligation) error
	Update(ctx context.Context, obligation *Obligation) error
	Get(ctx context.Context, projectID, obligationID string) (*Obligation, error)
	ListByOwner(ctx context.Context, owner Owner, includeDeleted bool) ([]Obligation, error)
	ListByProject(ctx context.Context, projectID string, filter ObligationFilter) ([]Obligation, error)
}

// ContributionRepository persists contributions.
type ContributionRepository interface {
	Create(ctx context.Context, contribution *Contribution) error
	Update(ctx context.Context, contribution *Contribution) error
	Get(ctx context.Context, projectID, contributionID string) (*Contribution, error)
	ListByProject(ctx context.Context, projectID string) ([]Contribution, error)
}

// ProviderRepository persists the tenant provider catalog.
type ProviderRepository interface {
	Create(ctx context.Context, provider *Provider) error
	Update(ctx context.Context, provider *Provider) error
	Get(ctx context.Context, tenantID, providerID string) (*Provider, error)
	List(ctx context.Context, tenantID string, includeInactive bool) ([]Provider, error)
}

// CategoryRepository persists the tenant category catalog.
type CategoryRepository interface {
	Create(ctx context.Context, category *Category) error
	Update(ctx context.Context, category *Category) error
	Get(ctx context.Context, tenantID, categoryID string) (*Category, error)
	GetByName(ctx context.Context, tenantID, name string) (*Category, error)
	List(ctx context.Context, tenantID string, includeInactive bool) ([]Category, error)
}

// UnitOfWork exposes repositories bound to one transaction.
type UnitOfWork interface {
	Projects() ProjectRepository
	Members() MemberRepository
	Expenses() ExpenseRepository
	Obligations() ObligationRepository
	Contributions() ContributionRepository
	Providers() ProviderRepository
	Categories() CategoryRepository
}

// Store runs fn in a transaction. fn's error rolls back every write made
// through the UnitOfWork; a nil error commits them.
type Store interface {
	UnitOfWork
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
