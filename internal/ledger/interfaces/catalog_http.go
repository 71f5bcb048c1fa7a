package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"splitledger/internal/audit"
	"splitledger/internal/auth"
	"splitledger/internal/ledger/application"
)

const (
	providersPath  = "/api/v1/providers"
	categoriesPath = "/api/v1/categories"
)

// CatalogHandler serves the tenant provider and category catalogs. Reads
// are open to any caller of the tenant; writes need the tenant admin role.
type CatalogHandler struct {
	catalogs    *application.CatalogService
	auditLogger audit.Logger
}

// NewCatalogHandler constructs a handler.
func NewCatalogHandler(catalogs *application.CatalogService, auditLogger audit.Logger) (*CatalogHandler, error) {
	if catalogs == nil {
		return nil, errors.New("catalog handler: nil service")
	}
	return &CatalogHandler{catalogs: catalogs, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/providers and /api/v1/categories.
func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if auth.SubjectFromContext(r.Context()) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet && !auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == providersPath:
		h.routeProviders(w, r, "")
	case strings.HasPrefix(path, providersPath+"/"):
		h.routeProviders(w, r, strings.TrimPrefix(path, providersPath+"/"))
	case path == categoriesPath:
		h.routeCategories(w, r, "")
	case strings.HasPrefix(path, categoriesPath+"/"):
		h.routeCategories(w, r, strings.TrimPrefix(path, categoriesPath+"/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *CatalogHandler) routeProviders(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case strings.Contains(id, "/"):
		w.WriteHeader(http.StatusNotFound)
	case id == "" && r.Method == http.MethodGet:
		h.handleListProviders(w, r)
	case id == "" && r.Method == http.MethodPost:
		h.handleCreateProvider(w, r)
	case id != "" && r.Method == http.MethodGet:
		provider, err := h.catalogs.GetProvider(r.Context(), auth.TenantIDFromContext(r.Context()), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProviderResponse(provider))
	case id != "" && r.Method == http.MethodPut:
		h.handleUpdateProvider(w, r, id)
	case id != "" && r.Method == http.MethodDelete:
		if err := h.catalogs.DeactivateProvider(r.Context(), auth.TenantIDFromContext(r.Context()), id); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		writeAudit(h.auditLogger, r, "", "provider", id, "provider.deactivate", nil)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.catalogs.ListProviders(r.Context(), auth.TenantIDFromContext(r.Context()), r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, toProviderResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		ContactInfo string `json:"contact_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	provider, err := h.catalogs.CreateProvider(r.Context(), application.ProviderInput{
		TenantID:    auth.TenantIDFromContext(r.Context()),
		Name:        req.Name,
		ContactInfo: req.ContactInfo,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderResponse(provider))
	writeAudit(h.auditLogger, r, "", "provider", provider.ID, "provider.create", map[string]any{"name": provider.Name})
}

func (h *CatalogHandler) handleUpdateProvider(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Name        *string `json:"name"`
		ContactInfo *string `json:"contact_info"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	provider, err := h.catalogs.UpdateProvider(r.Context(), auth.TenantIDFromContext(r.Context()), id, application.ProviderPatch{
		Name:        req.Name,
		ContactInfo: req.ContactInfo,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(provider))
	writeAudit(h.auditLogger, r, "", "provider", provider.ID, "provider.update", nil)
}

func (h *CatalogHandler) routeCategories(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case strings.Contains(id, "/"):
		w.WriteHeader(http.StatusNotFound)
	case id == "" && r.Method == http.MethodGet:
		h.handleListCategories(w, r)
	case id == "" && r.Method == http.MethodPost:
		h.handleCreateCategory(w, r)
	case id != "" && r.Method == http.MethodGet:
		category, err := h.catalogs.GetCategory(r.Context(), auth.TenantIDFromContext(r.Context()), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCategoryResponse(category))
	case id != "" && r.Method == http.MethodPut:
		h.handleUpdateCategory(w, r, id)
	case id != "" && r.Method == http.MethodDelete:
		if err := h.catalogs.DeactivateCategory(r.Context(), auth.TenantIDFromContext(r.Context()), id); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		writeAudit(h.auditLogger, r, "", "category", id, "category.deactivate", nil)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogs.ListCategories(r.Context(), auth.TenantIDFromContext(r.Context()), r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	category, err := h.catalogs.CreateCategory(r.Context(), application.CategoryInput{
		TenantID:    auth.TenantIDFromContext(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
	writeAudit(h.auditLogger, r, "", "category", category.ID, "category.create", map[string]any{"name": category.Name})
}

func (h *CatalogHandler) handleUpdateCategory(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	category, err := h.catalogs.UpdateCategory(r.Context(), auth.TenantIDFromContext(r.Context()), id, application.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(category))
	writeAudit(h.auditLogger, r, "", "category", category.ID, "category.update", nil)
}
