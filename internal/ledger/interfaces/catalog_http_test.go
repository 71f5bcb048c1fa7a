package interfaces

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"splitledger/internal/auth"
)

func (s *testServer) catalog(t *testing.T, method, path, subject, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.serve(t, s.catalogs, method, path, "tenant-a", auth.RoleAdmin, subject, body)
}

func TestCatalogHandler_CategoryCRUD(t *testing.T) {
	s := newTestServer(t)
	rec := s.catalog(t, http.MethodPost, "/api/v1/categories", "admin", `{"name":"Paint","color":"#ff8800"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", rec.Code, rec.Body.String())
	}
	var category categoryResponse
	decodeBody(t, rec, &category)
	if category.Color != "#FF8800" || !category.IsActive || category.CreatedAt != "2026-04-02T12:00:00Z" {
		t.Fatalf("unexpected category %+v", category)
	}

	rec = s.catalog(t, http.MethodPost, "/api/v1/categories", "admin", `{"name":"Paint"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate name, got %d", rec.Code)
	}
	rec = s.catalog(t, http.MethodPost, "/api/v1/categories", "admin", `{"name":"Tiles","color":"orange"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad color, got %d", rec.Code)
	}

	rec = s.catalog(t, http.MethodPut, "/api/v1/categories/"+category.ID, "admin", `{"description":"walls"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update category: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &category)
	if category.Description != "walls" || category.Name != "Paint" {
		t.Fatalf("unexpected update %+v", category)
	}

	rec = s.catalog(t, http.MethodDelete, "/api/v1/categories/"+category.ID, "admin", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: %d %s", rec.Code, rec.Body.String())
	}
	var active, all []categoryResponse
	decodeBody(t, s.catalog(t, http.MethodGet, "/api/v1/categories", "admin", ""), &active)
	decodeBody(t, s.catalog(t, http.MethodGet, "/api/v1/categories?include_inactive=true", "admin", ""), &all)
	if len(active) != 0 || len(all) != 1 || all[0].IsActive {
		t.Fatalf("unexpected lists active=%+v all=%+v", active, all)
	}

	entries := s.audit.Entries()
	if len(entries) != 3 || entries[0].Action != "category.create" || entries[2].Action != "category.deactivate" {
		t.Fatalf("unexpected audit trail %+v", entries)
	}
}

func TestCatalogHandler_AccessRules(t *testing.T) {
	s := newTestServer(t)
	if rec := s.catalog(t, http.MethodGet, "/api/v1/providers", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec := s.serve(t, s.catalogs, http.MethodPost, "/api/v1/providers", "tenant-a", auth.RoleOperator, "bob", `{"name":"Norte"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", rec.Code)
	}

	rec = s.catalog(t, http.MethodPost, "/api/v1/providers", "admin", `{"name":"Norte","contact_info":"norte@example.com"}`)
	var provider providerResponse
	decodeBody(t, rec, &provider)
	rec = s.serve(t, s.catalogs, http.MethodGet, "/api/v1/providers/"+provider.ID, "tenant-b", auth.RoleAdmin, "admin", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 across tenants, got %d", rec.Code)
	}
	rec = s.serve(t, s.catalogs, http.MethodGet, "/api/v1/providers/"+provider.ID, "tenant-a", auth.RoleViewer, "viewer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer read: %d", rec.Code)
	}
	if rec := s.catalog(t, http.MethodPatch, "/api/v1/providers/"+provider.ID, "admin", `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestProjectHandler_SpendingBreakdowns(t *testing.T) {
	s := newTestServer(t)
	var provider providerResponse
	decodeBody(t, s.catalog(t, http.MethodPost, "/api/v1/providers", "admin", `{"name":"Corralon"}`), &provider)
	var category categoryResponse
	decodeBody(t, s.catalog(t, http.MethodPost, "/api/v1/categories", "admin", `{"name":"Masonry"}`), &category)

	rec := s.do(t, http.MethodPost, "/api/v1/projects", "tenant-a", "admin", `{"name":"House","currency_mode":"ARS"}`)
	var project projectResponse
	decodeBody(t, rec, &project)
	base := "/api/v1/projects/" + project.ID
	s.do(t, http.MethodPost, base+"/members", "tenant-a", "admin", `{"user_id":"alice","percentage":"100"}`)

	rec = s.do(t, http.MethodPost, base+"/expenses", "tenant-a", "admin",
		`{"description":"bricks","amount":"3000","currency":"ARS","provider_id":"`+provider.ID+`","category_id":"`+category.ID+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense: %d %s", rec.Code, rec.Body.String())
	}
	var expense expenseResponse
	decodeBody(t, rec, &expense)
	if expense.ProviderID != provider.ID || expense.CategoryID != category.ID {
		t.Fatalf("catalog refs not stored: %+v", expense)
	}
	s.do(t, http.MethodPost, base+"/expenses", "tenant-a", "admin", `{"description":"tip","amount":"500","currency":"ARS"}`)

	rec = s.do(t, http.MethodPost, base+"/expenses", "tenant-a", "admin", `{"description":"x","amount":"1","currency":"ARS","provider_id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown provider, got %d", rec.Code)
	}

	var byProvider []spendingResponse
	rec = s.do(t, http.MethodGet, base+"/breakdown/providers", "tenant-a", "admin", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("provider breakdown: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &byProvider)
	if len(byProvider) != 2 || byProvider[0].Name != "Corralon" || byProvider[0].TotalARS != "3000.00" ||
		byProvider[1].Name != "-" || byProvider[1].TotalARS != "500.00" {
		t.Fatalf("unexpected provider breakdown %+v", byProvider)
	}

	s.catalog(t, http.MethodDelete, "/api/v1/categories/"+category.ID, "admin", "")
	var byCategory []spendingResponse
	decodeBody(t, s.do(t, http.MethodGet, base+"/breakdown/categories", "tenant-a", "admin", ""), &byCategory)
	if len(byCategory) != 2 || byCategory[0].Name != "Masonry" || byCategory[0].Expenses != 1 {
		t.Fatalf("unexpected category breakdown %+v", byCategory)
	}
	rec = s.do(t, http.MethodPost, base+"/expenses", "tenant-a", "admin", `{"description":"y","amount":"1","currency":"ARS","category_id":"`+category.ID+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inactive category, got %d", rec.Code)
	}
}
