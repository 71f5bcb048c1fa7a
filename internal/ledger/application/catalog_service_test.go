package application

import (
	"errors"
	"testing"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

func TestCatalogService_CategoryNamesAreUniquePerTenant(t *testing.T) {
	f := newFixture(t)
	paint, err := f.catalogs.CreateCategory(f.ctx, CategoryInput{TenantID: "tenant-a", Name: " Paint ", Color: "#ff5733"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if paint.Name != "Paint" || paint.Color != "#FF5733" || !paint.IsActive {
		t.Fatalf("unexpected category %+v", paint)
	}
	if _, err := f.catalogs.CreateCategory(f.ctx, CategoryInput{TenantID: "tenant-a", Name: "Paint"}); !errors.Is(err, ledger.ErrCategoryNameTaken) {
		t.Fatalf("expected ErrCategoryNameTaken, got %v", err)
	}
	if _, err := f.catalogs.CreateCategory(f.ctx, CategoryInput{TenantID: "tenant-b", Name: "Paint"}); err != nil {
		t.Fatalf("other tenant may reuse the name: %v", err)
	}
	if _, err := f.catalogs.CreateCategory(f.ctx, CategoryInput{TenantID: "tenant-a", Name: "Tiles", Color: "red"}); !errors.Is(err, ledger.ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}

	tiles, err := f.catalogs.CreateCategory(f.ctx, CategoryInput{TenantID: "tenant-a", Name: "Tiles"})
	if err != nil {
		t.Fatalf("create tiles: %v", err)
	}
	taken := "Paint"
	if _, err := f.catalogs.UpdateCategory(f.ctx, "tenant-a", tiles.ID, CategoryPatch{Name: &taken}); !errors.Is(err, ledger.ErrCategoryNameTaken) {
		t.Fatalf("expected rename conflict, got %v", err)
	}
	same := "Tiles"
	desc := "floor and wall"
	updated, err := f.catalogs.UpdateCategory(f.ctx, "tenant-a", tiles.ID, CategoryPatch{Name: &same, Description: &desc})
	if err != nil || updated.Description != desc {
		t.Fatalf("update: %+v %v", updated, err)
	}
	if _, err := f.catalogs.GetCategory(f.ctx, "tenant-b", tiles.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected cross-tenant ErrNotFound, got %v", err)
	}

	if err := f.catalogs.DeactivateCategory(f.ctx, "tenant-a", paint.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, _ := f.catalogs.ListCategories(f.ctx, "tenant-a", false)
	all, _ := f.catalogs.ListCategories(f.ctx, "tenant-a", true)
	if len(active) != 1 || active[0].Name != "Tiles" || len(all) != 2 || all[0].Name != "Paint" {
		t.Fatalf("unexpected listings active=%+v all=%+v", active, all)
	}
}

func TestCatalogService_ProviderLifecycle(t *testing.T) {
	f := newFixture(t)
	if _, err := f.catalogs.CreateProvider(f.ctx, ProviderInput{TenantID: "tenant-a", Name: "  "}); !errors.Is(err, ledger.ErrEmptyCatalogName) {
		t.Fatalf("expected ErrEmptyCatalogName, got %v", err)
	}
	p, err := f.catalogs.CreateProvider(f.ctx, ProviderInput{TenantID: "tenant-a", Name: "Corralon Sur", ContactInfo: "sur@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	contact := "+54 11 5555 0000"
	updated, err := f.catalogs.UpdateProvider(f.ctx, "tenant-a", p.ID, ProviderPatch{ContactInfo: &contact})
	if err != nil || updated.ContactInfo != contact || updated.Name != "Corralon Sur" {
		t.Fatalf("update: %+v %v", updated, err)
	}
	if err := f.catalogs.DeactivateProvider(f.ctx, "tenant-a", p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err := f.catalogs.GetProvider(f.ctx, "tenant-a", p.ID)
	if err != nil || got.IsActive {
		t.Fatalf("expected inactive provider, got %+v %v", got, err)
	}
	if list, _ := f.catalogs.ListProviders(f.ctx, "tenant-a", false); len(list) != 0 {
		t.Fatalf("inactive provider listed: %+v", list)
	}
	active := true
	if restored, err := f.catalogs.UpdateProvider(f.ctx, "tenant-a", p.ID, ProviderPatch{IsActive: &active}); err != nil || !restored.IsActive {
		t.Fatalf("reactivate: %+v %v", restored, err)
	}
}

func TestExpenseService_CatalogReferences(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "100"})
	provider, _ := f.catalogs.CreateProvider(f.ctx, ProviderInput{TenantID: "tenant-a", Name: "Corralon"})
	category, _ := f.catalogs.CreateCategory(f.ctx, CategoryInput{TenantID: "tenant-a", Name: "Materials"})
	foreign, _ := f.catalogs.CreateProvider(f.ctx, ProviderInput{TenantID: "tenant-b", Name: "Elsewhere"})

	create := func(providerID, categoryID string) (ExpenseView, error) {
		return f.expenses.Create(f.ctx, CreateExpenseCommand{ProjectID: project.ID, ActorID: "admin", Amount: d("10"), Currency: money.CurrencyARS, ProviderID: providerID, CategoryID: categoryID})
	}
	view, err := create(provider.ID, category.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Expense.ProviderID != provider.ID || view.Expense.CategoryID != category.ID {
		t.Fatalf("references not stored: %+v", view.Expense)
	}
	if _, err := create("missing", ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown provider, got %v", err)
	}
	if _, err := create(foreign.ID, ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another tenant's provider, got %v", err)
	}

	if err := f.catalogs.DeactivateProvider(f.ctx, "tenant-a", provider.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := create(provider.ID, ""); !errors.Is(err, ledger.ErrCatalogInactive) {
		t.Fatalf("expected ErrCatalogInactive, got %v", err)
	}
	desc := "cement bags"
	if _, err := f.expenses.Update(f.ctx, UpdateExpenseCommand{ProjectID: project.ID, ActorID: "admin", ExpenseID: view.Expense.ID, Description: &desc}); err != nil {
		t.Fatalf("editing an expense that keeps an inactive provider must work: %v", err)
	}
	again := provider.ID
	unchanged, err := f.expenses.Update(f.ctx, UpdateExpenseCommand{ProjectID: project.ID, ActorID: "admin", ExpenseID: view.Expense.ID, ProviderID: &again})
	if err != nil || unchanged.ProviderID != provider.ID {
		t.Fatalf("re-sending the same provider must work: %+v %v", unchanged, err)
	}
	none := ""
	cleared, err := f.expenses.Update(f.ctx, UpdateExpenseCommand{ProjectID: project.ID, ActorID: "admin", ExpenseID: view.Expense.ID, ProviderID: &none})
	if err != nil || cleared.ProviderID != "" {
		t.Fatalf("clear provider: %+v %v", cleared, err)
	}
}

func TestSummaryService_SpendingBreakdowns(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "100"})
	sur, _ := f.catalogs.CreateProvider(f.ctx, ProviderInput{TenantID: "tenant-a", Name: "Sur"})
	norte, _ := f.catalogs.CreateProvider(f.ctx, ProviderInput{TenantID: "tenant-a", Name: "Norte"})
	paint, _ := f.catalogs.CreateCategory(f.ctx, CategoryInput{TenantID: "tenant-a", Name: "Paint"})

	add := func(amount, providerID, categoryID string) ExpenseView {
		view, err := f.expenses.Create(f.ctx, CreateExpenseCommand{ProjectID: project.ID, ActorID: "admin", Amount: d(amount), Currency: money.CurrencyARS, ProviderID: providerID, CategoryID: categoryID})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return view
	}
	add("100", sur.ID, paint.ID)
	add("50", sur.ID, "")
	add("30", norte.ID, paint.ID)
	add("5", "", "")
	doomed := add("1000", norte.ID, paint.ID)
	if err := f.expenses.Delete(f.ctx, project.ID, "admin", doomed.Expense.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.catalogs.DeactivateProvider(f.ctx, "tenant-a", norte.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	byProvider, err := f.summaries.SpendingByProvider(f.ctx, project.ID, "alice")
	if err != nil {
		t.Fatalf("by provider: %v", err)
	}
	want := []struct {
		name  string
		count int
		ars   string
	}{{"Norte", 1, "30"}, {"Sur", 2, "150"}, {ledger.Unassigned, 1, "5"}}
	if len(byProvider) != len(want) {
		t.Fatalf("unexpected provider rows %+v", byProvider)
	}
	for i, w := range want {
		row := byProvider[i]
		if row.Name != w.name || row.Expenses != w.count || !row.TotalARS.Equal(d(w.ars)) {
			t.Fatalf("row %d = %+v, want %+v", i, row, w)
		}
	}

	byCategory, err := f.summaries.SpendingByCategory(f.ctx, project.ID, "alice")
	if err != nil {
		t.Fatalf("by category: %v", err)
	}
	if len(byCategory) != 2 || byCategory[0].Name != "Paint" || !byCategory[0].TotalARS.Equal(d("130")) ||
		byCategory[1].ID != "" || !byCategory[1].TotalARS.Equal(d("55")) {
		t.Fatalf("unexpected category rows %+v", byCategory)
	}
	if _, err := f.summaries.SpendingByCategory(f.ctx, project.ID, "mallory"); !errors.Is(err, ledger.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}
