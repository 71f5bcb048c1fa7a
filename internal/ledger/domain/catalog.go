package ledger

import (
	"regexp"
	"strings"
	"time"
)

// Provider is a supplier expenses can be attributed to. Providers belong to
// a tenant and are shared by all of its projects.
type Provider struct {
	ID          string
	TenantID    string
	Name        string
	ContactInfo string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category groups expenses for reporting. Names are unique per tenant.
type Category struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	// Color is empty or a #RRGGBB hex string.
	Color     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unassigned labels expenses with no provider or category in breakdowns.
const Unassigned = "-"

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CatalogName trims a provider or category name and rejects empty ones.
func CatalogName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyCatalogName
	}
	return name, nil
}

// CategoryColor normalizes a color to upper-case #RRGGBB. Empty is allowed.
func CategoryColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return "", nil
	}
	if !hexColor.MatchString(color) {
		return "", ErrInvalidColor
	}
	return strings.ToUpper(color), nil
}

// Deactivate hides the provider from pickers; expenses keep the reference.
func (p *Provider) Deactivate(now time.Time) {
	p.IsActive = false
	p.UpdatedAt = now
}

// Deactivate hides the category from pickers; expenses keep the reference.
func (c *Category) Deactivate(now time.Time) {
	c.IsActive = false
	c.UpdatedAt = now
}
