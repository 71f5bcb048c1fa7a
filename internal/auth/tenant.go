package auth

import (
	"context"
	"errors"

	ledger "splitledger/internal/ledger/domain"
)

// ProjectTenantChecker validates project tenant ownership.
type ProjectTenantChecker interface {
	EnsureProjectTenant(ctx context.Context, tenantID, projectID string) error
}

// ProjectChecker checks project ownership against the ledger projects.
type ProjectChecker struct {
	projects ledger.ProjectRepository
}

// NewProjectChecker constructs a ProjectChecker.
func NewProjectChecker(projects ledger.ProjectRepository) (*ProjectChecker, error) {
	if projects == nil {
		return nil, errors.New("project checker: nil repository")
	}
	return &ProjectChecker{projects: projects}, nil
}

// EnsureProjectTenant verifies the project belongs to tenant. Projects
// created without a tenant are visible to every tenant.
func (c *ProjectChecker) EnsureProjectTenant(ctx context.Context, tenantID, projectID string) error {
	if c == nil || c.projects == nil {
		return nil
	}
	if tenantID == "" || projectID == "" {
		return nil
	}
	project, err := c.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return ErrNotFound
	}
	if project.TenantID != "" && project.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
