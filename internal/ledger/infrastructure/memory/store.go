package memory

import (
	"context"
	"sort"
	"sync"

	ledger "splitledger/internal/ledger/domain"
)

type memberKey struct {
	projectID string
	userID    string
}

type state struct {
	projects      map[string]ledger.Project
	members       map[memberKey]ledger.Member
	history       []ledger.MemberChange
	expenses      map[string]ledger.Expense
	obligations   map[string]ledger.Obligation
	contributions map[string]ledger.Contribution
	providers     map[string]ledger.Provider
	categories    map[string]ledger.Category
}

func newState() state {
	return state{
		projects:      make(map[string]ledger.Project),
		members:       make(map[memberKey]ledger.Member),
		expenses:      make(map[string]ledger.Expense),
		obligations:   make(map[string]ledger.Obligation),
		contributions: make(map[string]ledger.Contribution),
		providers:     make(map[string]ledger.Provider),
		categories:    make(map[string]ledger.Category),
	}
}

func (s state) clone() state {
	out := newState()
	for k, v := range s.projects {
		out.projects[k] = v
	}
	for k, v := range s.members {
		out.members[k] = v
	}
	out.history = append([]ledger.MemberChange(nil), s.history...)
	for k, v := range s.expenses {
		out.expenses[k] = v
	}
	for k, v := range s.obligations {
		out.obligations[k] = v
	}
	for k, v := range s.contributions {
		out.contributions[k] = v
	}
	for k, v := range s.providers {
		out.providers[k] = v
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	return out
}

// Store is an in-memory ledger store for demo/testing. Transactions are
// serialized; a failing transaction restores the state it started from.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data state
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

// WithinTx runs fn with exclusive access to the store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Projects() ledger.ProjectRepository           { return projectRepo{s} }
func (s *Store) Members() ledger.MemberRepository             { return memberRepo{s} }
func (s *Store) Expenses() ledger.ExpenseRepository           { return expenseRepo{s} }
func (s *Store) Obligations() ledger.ObligationRepository     { return obligationRepo{s} }
func (s *Store) Contributions() ledger.ContributionRepository { return contributionRepo{s} }
func (s *Store) Providers() ledger.ProviderRepository         { return providerRepo{s} }
func (s *Store) Categories() ledger.CategoryRepository        { return categoryRepo{s} }

type projectRepo struct{ s *Store }

func (r projectRepo) Create(ctx context.Context, project *ledger.Project) error {
	_ = ctx
	if project == nil || project.ID == "" {
		return ledger.ErrEmptyProjectID
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.projects[project.ID] = *project
	return nil
}

func (r projectRepo) Update(ctx context.Context, project *ledger.Project) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.projects[project.ID]; !ok {
		return ledger.ErrNotFound
	}
	r.s.data.projects[project.ID] = *project
	return nil
}

func (r projectRepo) Get(ctx context.Context, projectID string) (*ledger.Project, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.data.projects[projectID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r projectRepo) ListForUser(ctx context.Context, tenantID, userID string) ([]ledger.Project, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Project, 0)
	for _, p := range r.s.data.projects {
		if tenantID != "" && p.TenantID != tenantID {
			continue
		}
		m, ok := r.s.data.members[memberKey{p.ID, userID}]
		if !ok || !m.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r projectRepo) HasExpenses(ctx context.Context, projectID string) (bool, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.data.expenses {
		if e.ProjectID == projectID {
			return true, nil
		}
	}
	return false, nil
}

type memberRepo struct{ s *Store }

func (r memberRepo) Get(ctx context.Context, projectID, userID string) (*ledger.Member, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.data.members[memberKey{projectID, userID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// GetForUpdate relies on WithinTx holding the store exclusively.
func (r memberRepo) GetForUpdate(ctx context.Context, projectID, userID string) (*ledger.Member, error) {
	return r.Get(ctx, projectID, userID)
}

func (r memberRepo) ListByProject(ctx context.Context, projectID string) ([]ledger.Member, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Member, 0)
	for k, m := range r.s.data.members {
		if k.projectID == projectID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r memberRepo) Create(ctx context.Context, member *ledger.Member) error {
	_ = ctx
	if member == nil || member.UserID == "" {
		return ledger.ErrEmptyUserID
	}
	key := memberKey{member.ProjectID, member.UserID}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.members[key]; ok {
		return ledger.ErrMemberExists
	}
	r.s.data.members[key] = *member
	return nil
}

func (r memberRepo) Update(ctx context.Context, member *ledger.Member) error {
	_ = ctx
	key := memberKey{member.ProjectID, member.UserID}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.members[key]; !ok {
		return ledger.ErrNotFound
	}
	r.s.data.members[key] = *member
	return nil
}

func (r memberRepo) AppendHistory(ctx context.Context, change ledger.MemberChange) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.history = append(r.s.data.history, change)
	return nil
}

func (r memberRepo) ListHistory(ctx context.Context, projectID string) ([]ledger.MemberChange, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.MemberChange, 0)
	for i := len(r.s.data.history) - 1; i >= 0; i-- {
		if r.s.data.history[i].ProjectID == projectID {
			out = append(out, r.s.data.history[i])
		}
	}
	return out, nil
}

type expenseRepo struct{ s *Store }

func (r expenseRepo) Create(ctx context.Context, expense *ledger.Expense) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.expenses[expense.ID] = *expense
	return nil
}

func (r expenseRepo) Update(ctx context.Context, expense *ledger.Expense) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.expenses[expense.ID]; !ok {
		return ledger.ErrNotFound
	}
	r.s.data.expenses[expense.ID] = *expense
	return nil
}

func (r expenseRepo) Get(ctx context.Context, projectID, expenseID string) (*ledger.Expense, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.data.expenses[expenseID]
	if !ok || e.ProjectID != projectID {
		return nil, nil
	}
	return &e, nil
}

func (r expenseRepo) ListByProject(ctx context.Context, projectID string, includeDeleted bool) ([]ledger.Expense, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Expense, 0)
	for _, e := range r.s.data.expenses {
		if e.ProjectID != projectID || (e.IsDeleted && !includeDeleted) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpenseDate.Equal(out[j].ExpenseDate) {
			return out[i].ExpenseDate.After(out[j].ExpenseDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type obligationRepo struct{ s *Store }

func (r obligationRepo) CreateBatch(ctx context.Context, obligations []ledger.Obligation) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range obligations {
		r.s.data.obligations[o.ID] = o
	}
	return nil
}

func (r obligationRepo) Update(ctx context.Context, obligation *ledger.Obligation) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.obligations[obligation.ID]; !ok {
		return ledger.ErrNotFound
	}
	r.s.data.obligations[obligation.ID] = *obligation
	return nil
}

func (r obligationRepo) Get(ctx context.Context, projectID, obligationID string) (*ledger.Obligation, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.data.obligations[obligationID]
	if !ok || o.ProjectID != projectID {
		return nil, nil
	}
	return &o, nil
}

func (r obligationRepo) ListByOwner(ctx context.Context, owner ledger.Owner, includeDeleted bool) ([]ledger.Obligation, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Obligation, 0)
	for _, o := range r.s.data.obligations {
		if o.Owner != owner || (o.IsDeleted && !includeDeleted) {
			continue
		}
		out = append(out, o)
	}
	sortObligations(out)
	return out, nil
}

func (r obligationRepo) ListByProject(ctx context.Context, projectID string, filter ledger.ObligationFilter) ([]ledger.Obligation, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Obligation, 0)
	for _, o := range r.s.data.obligations {
		if o.ProjectID != projectID {
			continue
		}
		if o.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Direction != "" && o.Direction != filter.Direction {
			continue
		}
		if filter.PendingOnly && o.IsPaid {
			continue
		}
		if filter.PendingApproval && !o.IsPendingApproval {
			continue
		}
		out = append(out, o)
	}
	sortObligations(out)
	return out, nil
}

func sortObligations(out []ledger.Obligation) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ID < out[j].ID
	})
}

type contributionRepo struct{ s *Store }

func (r contributionRepo) Create(ctx context.Context, contribution *ledger.Contribution) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.contributions[contribution.ID] = *contribution
	return nil
}

func (r contributionRepo) Update(ctx context.Context, contribution *ledger.Contribution) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.contributions[contribution.ID]; !ok {
		return ledger.ErrNotFound
	}
	r.s.data.contributions[contribution.ID] = *contribution
	return nil
}

func (r contributionRepo) Get(ctx context.Context, projectID, contributionID string) (*ledger.Contribution, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.data.contributions[contributionID]
	if !ok || c.ProjectID != projectID {
		return nil, nil
	}
	return &c, nil
}

func (r contributionRepo) ListByProject(ctx context.Context, projectID string) ([]ledger.Contribution, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Contribution, 0)
	for _, c := range r.s.data.contributions {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type providerRepo struct{ s *Store }

func (r providerRepo) Create(ctx context.Context, provider *ledger.Provider) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.providers[provider.ID] = *provider
	return nil
}

func (r providerRepo) Update(ctx context.Context, provider *ledger.Provider) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.providers[provider.ID]; !ok {
		return ledger.ErrNotFound
	}
	r.s.data.providers[provider.ID] = *provider
	return nil
}

func (r providerRepo) Get(ctx context.Context, tenantID, providerID string) (*ledger.Provider, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.data.providers[providerID]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	return &p, nil
}

func (r providerRepo) List(ctx context.Context, tenantID string, includeInactive bool) ([]ledger.Provider, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Provider, 0)
	for _, p := range r.s.data.providers {
		if p.TenantID != tenantID || (!p.IsActive && !includeInactive) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) Create(ctx context.Context, category *ledger.Category) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.data.categories {
		if c.TenantID == category.TenantID && c.Name == category.Name {
			return ledger.ErrCategoryNameTaken
		}
	}
	r.s.data.categories[category.ID] = *category
	return nil
}

func (r categoryRepo) Update(ctx context.Context, category *ledger.Category) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.categories[category.ID]; !ok {
		return ledger.ErrNotFound
	}
	for id, c := range r.s.data.categories {
		if id != category.ID && c.TenantID == category.TenantID && c.Name == category.Name {
			return ledger.ErrCategoryNameTaken
		}
	}
	r.s.data.categories[category.ID] = *category
	return nil
}

func (r categoryRepo) Get(ctx context.Context, tenantID, categoryID string) (*ledger.Category, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.data.categories[categoryID]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	return &c, nil
}

func (r categoryRepo) GetByName(ctx context.Context, tenantID, name string) (*ledger.Category, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.data.categories {
		if c.TenantID == tenantID && c.Name == name {
			return &c, nil
		}
	}
	return nil, nil
}

func (r categoryRepo) List(ctx context.Context, tenantID string, includeInactive bool) ([]ledger.Category, error) {
	_ = ctx
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]ledger.Category, 0)
	for _, c := range r.s.data.categories {
		if c.TenantID != tenantID || (!c.IsActive && !includeInactive) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
