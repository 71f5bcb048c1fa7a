package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	ledger "splitledger/internal/ledger/domain"
)

// ProviderInput creates a provider.
type ProviderInput struct {
	TenantID    string
	Name        string
	ContactInfo string
}

// ProviderPatch edits a provider; nil fields are kept.
type ProviderPatch struct {
	Name        *string
	ContactInfo *string
	IsActive    *bool
}

// CategoryInput creates a category.
type CategoryInput struct {
	TenantID    string
	Name        string
	Description string
	Color       string
}

// CategoryPatch edits a category; nil fields are kept.
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
	IsActive    *bool
}

// CatalogService manages the tenant provider and category catalogs.
// Tenant-admin checks happen in the route policy.
type CatalogService struct {
	store ledger.Store
	clock Clock
}

// NewCatalogService constructs the service.
func NewCatalogService(store ledger.Store, clock Clock) (*CatalogService, error) {
	if store == nil {
		return nil, errors.New("catalog service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CatalogService{store: store, clock: clock}, nil
}

func (s *CatalogService) CreateProvider(ctx context.Context, in ProviderInput) (provider ledger.Provider, err error) {
	defer observe("provider.create", time.Now(), &err)

	name, err := ledger.CatalogName(in.Name)
	if err != nil {
		return ledger.Provider{}, err
	}
	now := s.clock.Now()
	provider = ledger.Provider{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		Name:        name,
		ContactInfo: strings.TrimSpace(in.ContactInfo),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Providers().Create(ctx, &provider); err != nil {
		return ledger.Provider{}, err
	}
	return provider, nil
}

func (s *CatalogService) UpdateProvider(ctx context.Context, tenantID, providerID string, patch ProviderPatch) (provider ledger.Provider, err error) {
	defer observe("provider.update", time.Now(), &err)

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		p, err := loadProvider(ctx, uow, tenantID, providerID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			if p.Name, err = ledger.CatalogName(*patch.Name); err != nil {
				return err
			}
		}
		if patch.ContactInfo != nil {
			p.ContactInfo = strings.TrimSpace(*patch.ContactInfo)
		}
		if patch.IsActive != nil {
			p.IsActive = *patch.IsActive
		}
		p.UpdatedAt = s.clock.Now()
		if err := uow.Providers().Update(ctx, p); err != nil {
			return err
		}
		provider = *p
		return nil
	})
	return provider, err
}

// DeactivateProvider hides a provider. Expenses keep pointing at it.
func (s *CatalogService) DeactivateProvider(ctx context.Context, tenantID, providerID string) (err error) {
	defer observe("provider.deactivate", time.Now(), &err)

	return s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		p, err := loadProvider(ctx, uow, tenantID, providerID)
		if err != nil {
			return err
		}
		p.Deactivate(s.clock.Now())
		return uow.Providers().Update(ctx, p)
	})
}

func (s *CatalogService) GetProvider(ctx context.Context, tenantID, providerID string) (ledger.Provider, error) {
	p, err := loadProvider(ctx, s.store, tenantID, providerID)
	if err != nil {
		return ledger.Provider{}, err
	}
	return *p, nil
}

// ListProviders returns the tenant's providers ordered by name.
func (s *CatalogService) ListProviders(ctx context.Context, tenantID string, includeInactive bool) ([]ledger.Provider, error) {
	return s.store.Providers().List(ctx, tenantID, includeInactive)
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (category ledger.Category, err error) {
	defer observe("category.create", time.Now(), &err)

	name, err := ledger.CatalogName(in.Name)
	if err != nil {
		return ledger.Category{}, err
	}
	color, err := ledger.CategoryColor(in.Color)
	if err != nil {
		return ledger.Category{}, err
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		existing, err := uow.Categories().GetByName(ctx, in.TenantID, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return ledger.ErrCategoryNameTaken
		}
		now := s.clock.Now()
		category = ledger.Category{
			ID:          uuid.NewString(),
			TenantID:    in.TenantID,
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			Color:       color,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return uow.Categories().Create(ctx, &category)
	})
	if err != nil {
		return ledger.Category{}, err
	}
	return category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, tenantID, categoryID string, patch CategoryPatch) (category ledger.Category, err error) {
	defer observe("category.update", time.Now(), &err)

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		c, err := loadCategory(ctx, uow, tenantID, categoryID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			name, err := ledger.CatalogName(*patch.Name)
			if err != nil {
				return err
			}
			if name != c.Name {
				existing, err := uow.Categories().GetByName(ctx, tenantID, name)
				if err != nil {
					return err
				}
				if existing != nil {
					return ledger.ErrCategoryNameTaken
				}
				c.Name = name
			}
		}
		if patch.Description != nil {
			c.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Color != nil {
			if c.Color, err = ledger.CategoryColor(*patch.Color); err != nil {
				return err
			}
		}
		if patch.IsActive != nil {
			c.IsActive = *patch.IsActive
		}
		c.UpdatedAt = s.clock.Now()
		if err := uow.Categories().Update(ctx, c); err != nil {
			return err
		}
		category = *c
		return nil
	})
	return category, err
}

// DeactivateCategory hides a category. Expenses keep pointing at it.
func (s *CatalogService) DeactivateCategory(ctx context.Context, tenantID, categoryID string) (err error) {
	defer observe("category.deactivate", time.Now(), &err)

	return s.store.WithinTx(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		c, err := loadCategory(ctx, uow, tenantID, categoryID)
		if err != nil {
			return err
		}
		c.Deactivate(s.clock.Now())
		return uow.Categories().Update(ctx, c)
	})
}

func (s *CatalogService) GetCategory(ctx context.Context, tenantID, categoryID string) (ledger.Category, error) {
	c, err := loadCategory(ctx, s.store, tenantID, categoryID)
	if err != nil {
		return ledger.Category{}, err
	}
	return *c, nil
}

// ListCategories returns the tenant's categories ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context, tenantID string, includeInactive bool) ([]ledger.Category, error) {
	return s.store.Categories().List(ctx, tenantID, includeInactive)
}

func loadProvider(ctx context.Context, uow ledger.UnitOfWork, tenantID, providerID string) (*ledger.Provider, error) {
	p, err := uow.Providers().Get(ctx, tenantID, strings.TrimSpace(providerID))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: provider %s", ledger.ErrNotFound, providerID)
	}
	return p, nil
}

func loadCategory(ctx context.Context, uow ledger.UnitOfWork, tenantID, categoryID string) (*ledger.Category, error) {
	c, err := uow.Categories().Get(ctx, tenantID, strings.TrimSpace(categoryID))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: category %s", ledger.ErrNotFound, categoryID)
	}
	return c, nil
}

// checkCatalogRefs verifies that the provider and category an expense points
// at exist in the project's tenant and are active. Empty ids are allowed.
func checkCatalogRefs(ctx context.Context, uow ledger.UnitOfWork, tenantID, providerID, categoryID string) error {
	if providerID != "" {
		p, err := loadProvider(ctx, uow, tenantID, providerID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return fmt.Errorf("%w: provider %s", ledger.ErrCatalogInactive, p.Name)
		}
	}
	if categoryID != "" {
		c, err := loadCategory(ctx, uow, tenantID, categoryID)
		if err != nil {
			return err
		}
		if !c.IsActive {
			return fmt.Errorf("%w: category %s", ledger.ErrCatalogInactive, c.Name)
		}
	}
	return nil
}
