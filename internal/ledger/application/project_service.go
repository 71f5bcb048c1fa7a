package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

// CreateProjectCommand creates a project owned by ActorID.
type CreateProjectCommand struct {
	TenantID     string
	ActorID      string
	DisplayName  string
	Name         string
	Description  string
	CurrencyMode money.Mode
	IsIndividual bool
}

// UpdateProjectCommand changes project settings; nil fields are kept.
type UpdateProjectCommand struct {
	ProjectID    string
	ActorID      string
	Name         *string
	Description  *string
	CurrencyMode *money.Mode
}

// AddMemberCommand adds or reactivates a member.
type AddMemberCommand struct {
	ProjectID   string
	ActorID     string
	UserID      string
	DisplayName string
	Percentage  decimal.Decimal
	IsAdmin     bool
}

// UpdateMemberCommand changes a member; nil fields are kept.
type UpdateMemberCommand struct {
	ProjectID   string
	ActorID     string
	UserID      string
	DisplayName *string
	Percentage  *decimal.Decimal
	IsAdmin     *bool
}

// ProjectService handles projects and memberships.
type ProjectService struct {
	store ledger.Store
	clock Clock
}

// NewProjectService constructs the service.
func NewProjectService(store ledger.Store, clock Clock) (*ProjectService, error) {
	if store == nil {
		return nil, errors.New("project service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ProjectService{store: store, clock: clock}, nil
}

// Create stores a project. The creator joins as admin with 100% on an
// individual project and 0% otherwise.
func (s *ProjectService) Create(ctx context.Context, cmd CreateProjectCommand) (project ledger.Project, err error) {
	defer observe("project.create", time.Now(), &err)

	actorID, err := ledger.NormalizeUserID(cmd.ActorID)
	if err != nil {
		return ledger.Project{}, err
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return ledger.Project{}, errors.New("ledger: project name required")
	}
	mode := cmd.CurrencyMode
	if mode == "" {
		mode = money.ModeARS
	}
	if _, err := money.ParseMode(string(mode)); err != nil {
		return ledger.Project{}, err
	}

	now := s.clock.Now()
	project = ledger.Project{
		ID:           uuid.NewString(),
		TenantID:     cmd.TenantID,
		Name:         name,
		Description:  cmd.Description,
		CurrencyMode: mode,
		IsIndividual: cmd.IsIndividual,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	percentage := decimal.Zero
	if cmd.IsIndividual {
		percentage = decimal.NewFromInt(100)
	}
	displayName := cmd.DisplayName
	if displayName == "" {
		displayName = actorID
	}
	creator := ledger.Member{
		ProjectID:   project.ID,
		UserID:      actorID,
		DisplayName: displayName,
		Percentage:  percentage,
		IsAdmin:     true,
		IsActive:    true,
		Balance:     ledger.Balance{USD: decimal.Zero, ARS: decimal.Zero, UpdatedAt: now},
		JoinedAt:    now,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		if err := uow.Projects().Create(ctx, &project); err != nil {
			return err
		}
		if err := uow.Members().Create(ctx, &creator); err != nil {
			return err
		}
		admin := true
		return uow.Members().AppendHistory(ctx, ledger.MemberChange{
			ID:            uuid.NewString(),
			ProjectID:     project.ID,
			UserID:        actorID,
			Action:        ledger.MemberAdded,
			NewPercentage: decimal.NewNullDecimal(percentage),
			NewIsAdmin:    &admin,
			ChangedBy:     actorID,
			ChangedAt:     now,
		})
	})
	if err != nil {
		return ledger.Project{}, err
	}
	return project, nil
}

// Update changes project settings. The currency mode is locked once the
// project has expenses.
func (s *ProjectService) Update(ctx context.Context, cmd UpdateProjectCommand) (project ledger.Project, err error) {
	defer observe("project.update", time.Now(), &err)

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		p, err := loadProject(ctx, uow, cmd.ProjectID)
		if err != nil {
			return err
		}
		actor, err := resolveActor(ctx, uow, p.ID, cmd.ActorID)
		if err != nil {
			return err
		}
		if err := requireAdmin(actor); err != nil {
			return err
		}
		now := s.clock.Now()
		if cmd.Name != nil {
			name := strings.TrimSpace(*cmd.Name)
			if name == "" {
				return errors.New("ledger: project name required")
			}
			p.Name = name
		}
		if cmd.Description != nil {
			p.Description = *cmd.Description
		}
		if cmd.CurrencyMode != nil {
			mode, err := money.ParseMode(string(*cmd.CurrencyMode))
			if err != nil {
				return err
			}
			hasExpenses, err := uow.Projects().HasExpenses(ctx, p.ID)
			if err != nil {
				return err
			}
			if err := p.ChangeCurrencyMode(mode, hasExpenses, now); err != nil {
				return err
			}
		}
		p.UpdatedAt = now
		if err := uow.Projects().Update(ctx, p); err != nil {
			return err
		}
		project = *p
		return nil
	})
	return project, err
}

// Get returns a project visible to the caller.
func (s *ProjectService) Get(ctx context.Context, projectID, actorID string) (ledger.Project, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return ledger.Project{}, err
	}
	if _, err := resolveActor(ctx, s.store, project.ID, actorID); err != nil {
		return ledger.Project{}, err
	}
	return *project, nil
}

// List returns the caller's projects in a tenant.
func (s *ProjectService) List(ctx context.Context, tenantID, actorID string) ([]ledger.Project, error) {
	actorID, err := ledger.NormalizeUserID(actorID)
	if err != nil {
		return nil, err
	}
	return s.store.Projects().ListForUser(ctx, tenantID, actorID)
}

// AddMember adds a member, or reactivates a removed one.
func (s *ProjectService) AddMember(ctx context.Context, cmd AddMemberCommand) (member ledger.Member, err error) {
	defer observe("member.add", time.Now(), &err)

	userID, err := ledger.NormalizeUserID(cmd.UserID)
	if err != nil {
		return ledger.Member{}, err
	}
	if err := ledger.ValidatePercentage(cmd.Percentage); err != nil {
		return ledger.Member{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		p, err := loadProject(ctx, uow, cmd.ProjectID)
		if err != nil {
			return err
		}
		actor, err := resolveActor(ctx, uow, p.ID, cmd.ActorID)
		if err != nil {
			return err
		}
		if err := requireAdmin(actor); err != nil {
			return err
		}
		now := s.clock.Now()
		displayName := cmd.DisplayName
		if displayName == "" {
			displayName = userID
		}
		existing, err := uow.Members().GetForUpdate(ctx, p.ID, userID)
		if err != nil {
			return err
		}
		change := ledger.MemberChange{
			ID:            uuid.NewString(),
			ProjectID:     p.ID,
			UserID:        userID,
			Action:        ledger.MemberAdded,
			NewPercentage: decimal.NewNullDecimal(cmd.Percentage),
			NewIsAdmin:    boolPtr(cmd.IsAdmin),
			ChangedBy:     actor.UserID,
			ChangedAt:     now,
		}
		if existing != nil {
			if existing.IsActive {
				return ledger.ErrMemberExists
			}
			change.OldPercentage = decimal.NewNullDecimal(existing.Percentage)
			change.OldIsAdmin = boolPtr(existing.IsAdmin)
			existing.DisplayName = displayName
			existing.Percentage = cmd.Percentage
			existing.IsAdmin = cmd.IsAdmin
			existing.IsActive = true
			if err := uow.Members().Update(ctx, existing); err != nil {
				return err
			}
			member = *existing
		} else {
			member = ledger.Member{
				ProjectID:   p.ID,
				UserID:      userID,
				DisplayName: displayName,
				Percentage:  cmd.Percentage,
				IsAdmin:     cmd.IsAdmin,
				IsActive:    true,
				Balance:     ledger.Balance{USD: decimal.Zero, ARS: decimal.Zero, UpdatedAt: now},
				JoinedAt:    now,
			}
			if err := uow.Members().Create(ctx, &member); err != nil {
				return err
			}
		}
		return uow.Members().AppendHistory(ctx, change)
	})
	return member, err
}

// UpdateMember changes a member's percentage, admin flag or display name.
func (s *ProjectService) UpdateMember(ctx context.Context, cmd UpdateMemberCommand) (member ledger.Member, err error) {
	defer observe("member.update", time.Now(), &err)

	if cmd.Percentage != nil {
		if err := ledger.ValidatePercentage(*cmd.Percentage); err != nil {
			return ledger.Member{}, err
		}
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		p, err := loadProject(ctx, uow, cmd.ProjectID)
		if err != nil {
			return err
		}
		actor, err := resolveActor(ctx, uow, p.ID, cmd.ActorID)
		if err != nil {
			return err
		}
		if err := requireAdmin(actor); err != nil {
			return err
		}
		m, err := uow.Members().GetForUpdate(ctx, p.ID, strings.TrimSpace(cmd.UserID))
		if err != nil {
			return err
		}
		if m == nil || !m.IsActive {
			return ledger.ErrNotMember
		}
		now := s.clock.Now()
		change := ledger.MemberChange{
			ID:            uuid.NewString(),
			ProjectID:     p.ID,
			UserID:        m.UserID,
			Action:        ledger.MemberUpdated,
			OldPercentage: decimal.NewNullDecimal(m.Percentage),
			NewPercentage: decimal.NewNullDecimal(m.Percentage),
			OldIsAdmin:    boolPtr(m.IsAdmin),
			NewIsAdmin:    boolPtr(m.IsAdmin),
			ChangedBy:     actor.UserID,
			ChangedAt:     now,
		}
		if cmd.IsAdmin != nil && !*cmd.IsAdmin && m.IsAdmin {
			if err := ensureAnotherAdmin(ctx, uow, p.ID, m.UserID); err != nil {
				return err
			}
		}
		if cmd.Percentage != nil {
			m.Percentage = *cmd.Percentage
			change.NewPercentage = decimal.NewNullDecimal(m.Percentage)
		}
		if cmd.IsAdmin != nil {
			m.IsAdmin = *cmd.IsAdmin
			change.NewIsAdmin = boolPtr(m.IsAdmin)
		}
		if cmd.DisplayName != nil && *cmd.DisplayName != "" {
			m.DisplayName = *cmd.DisplayName
		}
		if err := uow.Members().Update(ctx, m); err != nil {
			return err
		}
		member = *m
		return uow.Members().AppendHistory(ctx, change)
	})
	return member, err
}

// RemoveMember deactivates a member. Balances and obligations are kept.
func (s *ProjectService) RemoveMember(ctx context.Context, projectID, actorID, userID string) (err error) {
	defer observe("member.remove", time.Now(), &err)

	return s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		p, err := loadProject(ctx, uow, projectID)
		if err != nil {
			return err
		}
		actor, err := resolveActor(ctx, uow, p.ID, actorID)
		if err != nil {
			return err
		}
		if err := requireAdmin(actor); err != nil {
			return err
		}
		m, err := uow.Members().GetForUpdate(ctx, p.ID, strings.TrimSpace(userID))
		if err != nil {
			return err
		}
		if m == nil || !m.IsActive {
			return ledger.ErrNotMember
		}
		if m.IsAdmin {
			if err := ensureAnotherAdmin(ctx, uow, p.ID, m.UserID); err != nil {
				return err
			}
		}
		now := s.clock.Now()
		change := ledger.MemberChange{
			ID:            uuid.NewString(),
			ProjectID:     p.ID,
			UserID:        m.UserID,
			Action:        ledger.MemberRemoved,
			OldPercentage: decimal.NewNullDecimal(m.Percentage),
			OldIsAdmin:    boolPtr(m.IsAdmin),
			ChangedBy:     actor.UserID,
			ChangedAt:     now,
		}
		m.IsActive = false
		if err := uow.Members().Update(ctx, m); err != nil {
			return err
		}
		return uow.Members().AppendHistory(ctx, change)
	})
}

// ListMembers returns every member of the project, active or not.
func (s *ProjectService) ListMembers(ctx context.Context, projectID, actorID string) ([]ledger.Member, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := resolveActor(ctx, s.store, project.ID, actorID); err != nil {
		return nil, err
	}
	return s.store.Members().ListByProject(ctx, project.ID)
}

// MemberHistory returns membership changes, newest first.
func (s *ProjectService) MemberHistory(ctx context.Context, projectID, actorID string) ([]ledger.MemberChange, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := resolveActor(ctx, s.store, project.ID, actorID); err != nil {
		return nil, err
	}
	return s.store.Members().ListHistory(ctx, project.ID)
}

// ValidateParticipation reports whether active percentages add up to 100.
// It never blocks writes.
func (s *ProjectService) ValidateParticipation(ctx context.Context, projectID, actorID string) (ledger.ParticipationReport, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return ledger.ParticipationReport{}, err
	}
	if actorID != "" {
		if _, err := resolveActor(ctx, s.store, project.ID, actorID); err != nil {
			return ledger.ParticipationReport{}, err
		}
	}
	members, err := s.store.Members().ListByProject(ctx, project.ID)
	if err != nil {
		return ledger.ParticipationReport{}, err
	}
	return ledger.ValidateParticipation(members), nil
}

func ensureAnotherAdmin(ctx context.Context, uow ledger.UnitOfWork, projectID, userID string) error {
	members, err := uow.Members().ListByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.UserID != userID && m.IsActive && m.IsAdmin {
			return nil
		}
	}
	return ledger.ErrLastAdmin
}

func boolPtr(v bool) *bool { return &v }
