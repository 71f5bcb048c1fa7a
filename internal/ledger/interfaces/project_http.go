package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/audit"
	"splitledger/internal/auth"
	"splitledger/internal/eventing"
	exchangerate "splitledger/internal/exchangerate/domain"
	"splitledger/internal/ledger/application"
	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
	"splitledger/internal/observability/metrics"
)

const projectsPath = "/api/v1/projects"

// Services groups the ledger application services behind the HTTP API.
type Services struct {
	Projects      *application.ProjectService
	Expenses      *application.ExpenseService
	Payments      *application.PaymentService
	Contributions *application.ContributionService
	Summaries     *application.SummaryService
}

// ProjectHandler handles project APIs.
type ProjectHandler struct {
	services       Services
	projectChecker auth.ProjectTenantChecker
	auditLogger    audit.Logger
	export         application.ExportConfig
}

// NewProjectHandler constructs a handler.
func NewProjectHandler(services Services, projectChecker auth.ProjectTenantChecker, auditLogger audit.Logger, export application.ExportConfig) (*ProjectHandler, error) {
	if services.Projects == nil || services.Expenses == nil || services.Payments == nil || services.Contributions == nil || services.Summaries == nil {
		return nil, errors.New("project handler: nil service")
	}
	return &ProjectHandler{services: services, projectChecker: projectChecker, auditLogger: auditLogger, export: export}, nil
}

// ServeHTTP handles project routes under /api/v1/projects.
func (h *ProjectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subject := auth.SubjectFromContext(r.Context())
	if subject == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ctx := eventing.WithActor(r.Context(), subject)
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" {
		ctx = eventing.WithTenantID(ctx, tenantID)
	}
	r = r.WithContext(ctx)
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == projectsPath {
		switch r.Method {
		case http.MethodPost:
			h.handleCreateProject(w, r)
		case http.MethodGet:
			h.handleListProjects(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if !strings.HasPrefix(path, projectsPath+"/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.TrimPrefix(path, projectsPath+"/"), "/")
	projectID := parts[0]
	if projectID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" {
		if err := ensureProjectTenant(r, h.projectChecker, tenantID, projectID); err != nil {
			respondTenantError(w, err)
			return
		}
	}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleGetProject(w, r, projectID)
		case http.MethodPut:
			h.handleUpdateProject(w, r, projectID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	switch parts[1] {
	case "members":
		h.routeMembers(w, r, projectID, parts[2:])
		return
	case "expenses":
		h.routeExpenses(w, r, projectID, parts[2:])
		return
	case "obligations":
		h.routeObligations(w, r, projectID, parts[2:])
		return
	case "contributions":
		h.routeContributions(w, r, projectID, parts[2:])
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch strings.Join(parts[1:], "/") {
	case "participation":
		h.handleParticipation(w, r, projectID)
	case "balances":
		h.handleBalances(w, r, projectID)
	case "summary":
		h.handleDashboard(w, r, projectID)
	case "evolution":
		h.handleEvolution(w, r, projectID)
	case "my-status":
		h.handleMyStatus(w, r, projectID)
	case "export.xlsx":
		h.handleExportXLSX(w, r, projectID)
	case "export/obligations.csv":
		h.handleExportCSV(w, r, projectID)
	case "breakdown/providers":
		h.handleSpending(w, r, projectID, h.services.Summaries.SpendingByProvider)
	case "breakdown/categories":
		h.handleSpending(w, r, projectID, h.services.Summaries.SpendingByCategory)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ProjectHandler) routeMembers(w http.ResponseWriter, r *http.Request, projectID string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		h.handleListMembers(w, r, projectID)
	case len(rest) == 0 && r.Method == http.MethodPost:
		h.handleAddMember(w, r, projectID)
	case len(rest) == 1 && rest[0] == "history" && r.Method == http.MethodGet:
		h.handleMemberHistory(w, r, projectID)
	case len(rest) == 1 && r.Method == http.MethodPut:
		h.handleUpdateMember(w, r, projectID, rest[0])
	case len(rest) == 1 && r.Method == http.MethodDelete:
		h.handleRemoveMember(w, r, projectID, rest[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ProjectHandler) routeExpenses(w http.ResponseWriter, r *http.Request, projectID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPost:
			h.handleCreateExpense(w, r, projectID)
		case http.MethodGet:
			h.handleListExpenses(w, r, projectID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	expenseID := rest[0]
	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleGetExpense(w, r, projectID, expenseID)
		case http.MethodPut:
			h.handleUpdateExpense(w, r, projectID, expenseID)
		case http.MethodDelete:
			h.handleDeleteExpense(w, r, projectID, expenseID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if len(rest) == 2 {
		switch rest[1] {
		case "restore":
			if r.Method == http.MethodPost {
				h.handleRestoreExpense(w, r, projectID, expenseID)
				return
			}
		case "mark-all-paid":
			if r.Method == http.MethodPost {
				h.handleMarkAllPaid(w, r, projectID, expenseID)
				return
			}
		case "invoice":
			if r.Method == http.MethodPost {
				h.handleAttachInvoice(w, r, projectID, expenseID)
				return
			}
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExportPDF(w, r, projectID, expenseID)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ProjectHandler) routeObligations(w http.ResponseWriter, r *http.Request, projectID string, rest []string) {
	if len(rest) == 0 {
		if r.Method == http.MethodGet {
			h.handleListObligations(w, r, projectID)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if len(rest) == 1 && r.Method == http.MethodGet {
		if rest[0] == "pending-approval" {
			h.handlePendingApproval(w, r, projectID)
			return
		}
		h.handleGetObligation(w, r, projectID, rest[0])
		return
	}
	if len(rest) == 2 {
		obligationID := rest[0]
		switch rest[1] {
		case "submit":
			if r.Method == http.MethodPost {
				h.handleSubmitPayment(w, r, projectID, obligationID)
				return
			}
		case "review":
			if r.Method == http.MethodPost {
				h.handleReviewPayment(w, r, projectID, obligationID)
				return
			}
		case "mark-paid":
			if r.Method == http.MethodPost {
				h.handleMarkPaid(w, r, projectID, obligationID)
				return
			}
		case "unmark":
			if r.Method == http.MethodPost {
				h.handleUnmark(w, r, projectID, obligationID)
				return
			}
		case "receipt":
			switch r.Method {
			case http.MethodPut:
				h.handleAttachReceipt(w, r, projectID, obligationID)
				return
			case http.MethodDelete:
				h.handleRemoveReceipt(w, r, projectID, obligationID)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ProjectHandler) routeContributions(w http.ResponseWriter, r *http.Request, projectID string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		h.handleCreateContribution(w, r, projectID)
	case len(rest) == 0 && r.Method == http.MethodGet:
		h.handleListContributions(w, r, projectID)
	case len(rest) == 1 && rest[0] == "by-participant" && r.Method == http.MethodGet:
		h.handleContributionsByParticipant(w, r, projectID)
	case len(rest) == 1 && r.Method == http.MethodGet:
		h.handleGetContribution(w, r, projectID, rest[0])
	case len(rest) == 2 && rest[1] == "approve" && r.Method == http.MethodPost:
		h.handleApproveContribution(w, r, projectID, rest[0])
	case len(rest) == 2 && rest[1] == "reject" && r.Method == http.MethodPost:
		h.handleRejectContribution(w, r, projectID, rest[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ProjectHandler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		DisplayName  string `json:"display_name"`
		CurrencyMode string `json:"currency_mode"`
		IsIndividual bool   `json:"is_individual"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	mode := money.ModeARS
	if req.CurrencyMode != "" {
		parsed, err := money.ParseMode(req.CurrencyMode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = parsed
	}
	project, err := h.services.Projects.Create(r.Context(), application.CreateProjectCommand{
		TenantID:     auth.TenantIDFromContext(r.Context()),
		ActorID:      actorID(r),
		DisplayName:  req.DisplayName,
		Name:         req.Name,
		Description:  req.Description,
		CurrencyMode: mode,
		IsIndividual: req.IsIndividual,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(project))
	h.logAudit(r, project.ID, "project", project.ID, "project.create", map[string]any{
		"currency_mode": project.CurrencyMode,
		"individual":    project.IsIndividual,
	})
}

func (h *ProjectHandler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.services.Projects.List(r.Context(), auth.TenantIDFromContext(r.Context()), actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProjectHandler) handleGetProject(w http.ResponseWriter, r *http.Request, projectID string) {
	project, err := h.services.Projects.Get(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (h *ProjectHandler) handleUpdateProject(w http.ResponseWriter, r *http.Request, projectID string) {
	var req struct {
		Name         *string `json:"name"`
		Description  *string `json:"description"`
		CurrencyMode *string `json:"currency_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	cmd := application.UpdateProjectCommand{ProjectID: projectID, ActorID: actorID(r), Name: req.Name, Description: req.Description}
	if req.CurrencyMode != nil {
		mode, err := money.ParseMode(*req.CurrencyMode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd.CurrencyMode = &mode
	}
	project, err := h.services.Projects.Update(r.Context(), cmd)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
	h.logAudit(r, projectID, "project", projectID, "project.update", map[string]any{
		"currency_mode": project.CurrencyMode,
	})
}

func (h *ProjectHandler) handleListMembers(w http.ResponseWriter, r *http.Request, projectID string) {
	members, err := h.services.Projects.ListMembers(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProjectHandler) handleAddMember(w http.ResponseWriter, r *http.Request, projectID string) {
	var req struct {
		UserID      string          `json:"user_id"`
		DisplayName string          `json:"display_name"`
		Percentage  decimal.Decimal `json:"percentage"`
		IsAdmin     bool            `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	member, err := h.services.Projects.AddMember(r.Context(), application.AddMemberCommand{
		ProjectID:   projectID,
		ActorID:     actorID(r),
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Percentage:  req.Percentage,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberResponse(member))
	h.logAudit(r, projectID, "member", member.UserID, "member.add", map[string]any{
		"percentage": member.Percentage.String(),
		"is_admin":   member.IsAdmin,
	})
}

func (h *ProjectHandler) handleUpdateMember(w http.ResponseWriter, r *http.Request, projectID, userID string) {
	var req struct {
		DisplayName *string          `json:"display_name"`
		Percentage  *decimal.Decimal `json:"percentage"`
		IsAdmin     *bool            `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	member, err := h.services.Projects.UpdateMember(r.Context(), application.UpdateMemberCommand{
		ProjectID:   projectID,
		ActorID:     actorID(r),
		UserID:      userID,
		DisplayName: req.DisplayName,
		Percentage:  req.Percentage,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponse(member))
	h.logAudit(r, projectID, "member", member.UserID, "member.update", map[string]any{
		"percentage": member.Percentage.String(),
		"is_admin":   member.IsAdmin,
	})
}

func (h *ProjectHandler) handleRemoveMember(w http.ResponseWriter, r *http.Request, projectID, userID string) {
	if err := h.services.Projects.RemoveMember(r.Context(), projectID, actorID(r), userID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, projectID, "member", userID, "member.remove", nil)
}

func (h *ProjectHandler) handleMemberHistory(w http.ResponseWriter, r *http.Request, projectID string) {
	history, err := h.services.Projects.MemberHistory(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := make([]memberChangeResponse, 0, len(history))
	for _, c := range history {
		resp = append(resp, toMemberChangeResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProjectHandler) handleParticipation(w http.ResponseWriter, r *http.Request, projectID string) {
	report, err := h.services.Projects.ValidateParticipation(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"is_valid": report.IsValid,
		"total":    report.Total.String(),
		"message":  report.Message,
	})
}

func (h *ProjectHandler) handleBalances(w http.ResponseWriter, r *http.Request, projectID string) {
	balances, err := h.services.Summaries.MemberBalances(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponses(balances))
}

func (h *ProjectHandler) handleDashboard(w http.ResponseWriter, r *http.Request, projectID string) {
	dash, err := h.services.Summaries.Dashboard(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currency_mode":      dash.CurrencyMode,
		"total_expenses_usd": dash.TotalExpensesUSD.StringFixed(2),
		"total_expenses_ars": dash.TotalExpensesARS.StringFixed(2),
		"total_paid_usd":     dash.TotalPaidUSD.StringFixed(2),
		"total_paid_ars":     dash.TotalPaidARS.StringFixed(2),
		"total_pending_usd":  dash.TotalPendingUSD.StringFixed(2),
		"total_pending_ars":  dash.TotalPendingARS.StringFixed(2),
		"expenses_count":     dash.ExpensesCount,
		"participants_count": dash.ParticipantsCount,
		"current_rate":       dash.CurrentRate.String(),
	})
}

func (h *ProjectHandler) handleSpending(w http.ResponseWriter, r *http.Request, projectID string, load func(ctx context.Context, projectID, actorID string) ([]application.SpendingRow, error)) {
	rows, err := load(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]spendingResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, spendingResponse{
			ID:       row.ID,
			Name:     row.Name,
			Expenses: row.Expenses,
			TotalUSD: row.TotalUSD.StringFixed(2),
			TotalARS: row.TotalARS.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProjectHandler) handleEvolution(w http.ResponseWriter, r *http.Request, projectID string) {
	evolution, err := h.services.Summaries.ExpenseEvolution(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	months := make([]map[string]any, 0, len(evolution.Months))
	for _, m := range evolution.Months {
		months = append(months, map[string]any{
			"year":      m.Year,
			"month":     m.Month,
			"total_usd": m.TotalUSD.StringFixed(2),
			"total_ars": m.TotalARS.StringFixed(2),
			"count":     m.Count,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"months":         months,
		"cumulative_usd": evolution.CumulativeUSD.StringFixed(2),
		"cumulative_ars": evolution.CumulativeARS.StringFixed(2),
	})
}

func (h *ProjectHandler) handleMyStatus(w http.ResponseWriter, r *http.Request, projectID string) {
	summary, err := h.services.Summaries.UserPaymentSummary(r.Context(), projectID, actorID(r), r.URL.Query().Get("user_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":                summary.UserID,
		"percentage":             summary.Percentage.String(),
		"total_due_usd":          summary.TotalDueUSD.StringFixed(2),
		"total_due_ars":          summary.TotalDueARS.StringFixed(2),
		"total_paid_usd":         summary.TotalPaidUSD.StringFixed(2),
		"total_paid_ars":         summary.TotalPaidARS.StringFixed(2),
		"total_pending_usd":      summary.TotalPendingUSD.StringFixed(2),
		"total_pending_ars":      summary.TotalPendingARS.StringFixed(2),
		"pending_count":          summary.PendingCount,
		"pending_approval_count": summary.PendingApprovalCount,
		"balance_usd":            summary.Balance.BalanceUSD.StringFixed(2),
		"balance_ars":            summary.Balance.BalanceARS.StringFixed(2),
	})
}

func (h *ProjectHandler) handleCreateExpense(w http.ResponseWriter, r *http.Request, projectID string) {
	var req struct {
		Description  string          `json:"description"`
		ProviderID   string          `json:"provider_id"`
		CategoryID   string          `json:"category_id"`
		Amount       decimal.Decimal `json:"amount"`
		Currency     string          `json:"currency"`
		RateOverride decimal.Decimal `json:"exchange_rate_override"`
		ExpenseDate  string          `json:"expense_date"`
		InvoicePath  string          `json:"invoice_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	expenseDate, err := parseDate(req.ExpenseDate)
	if err != nil {
		http.Error(w, "invalid expense_date", http.StatusBadRequest)
		return
	}
	view, err := h.services.Expenses.Create(r.Context(), application.CreateExpenseCommand{
		ProjectID:    projectID,
		ActorID:      actorID(r),
		Description:  req.Description,
		ProviderID:   req.ProviderID,
		CategoryID:   req.CategoryID,
		Amount:       req.Amount,
		Currency:     currency,
		RateOverride: req.RateOverride,
		ExpenseDate:  expenseDate,
		InvoicePath:  req.InvoicePath,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(view.Expense, view.Obligations))
	h.logAudit(r, projectID, "expense", view.Expense.ID, "expense.create", map[string]any{
		"amount":   view.Expense.AmountOriginal.String(),
		"currency": view.Expense.CurrencyOriginal,
		"status":   view.Expense.Status,
	})
}

func (h *ProjectHandler) handleListExpenses(w http.ResponseWriter, r *http.Request, projectID string) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	expenses, err := h.services.Expenses.List(r.Context(), projectID, actorID(r), includeDeleted)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(expenses))
}

func (h *ProjectHandler) handleGetExpense(w http.ResponseWriter, r *http.Request, projectID, expenseID string) {
	view, err := h.services.Expenses.Get(r.Context(), projectID, actorID(r), expenseID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(view.Expense, view.Obligations))
}

func (h *ProjectHandler) handleUpdateExpense(w http.ResponseWriter, r *http.Request, projectID, expenseID string) {
	var req struct {
		Description  *string         `json:"description"`
		ProviderID   *string         `json:"provider_id"`
		CategoryID   *string         `json:"category_id"`
		ExpenseDate  *string         `json:"expense_date"`
		Amount       decimal.Decimal `json:"amount"`
		Currency     string          `json:"currency"`
		RateOverride decimal.Decimal `json:"exchange_rate_override"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	cmd := application.UpdateExpenseCommand{
		ProjectID:    projectID,
		ActorID:      actorID(r),
		ExpenseID:    expenseID,
		Description:  req.Description,
		ProviderID:   req.ProviderID,
		CategoryID:   req.CategoryID,
		Amount:       req.Amount,
		RateOverride: req.RateOverride,
	}
	if req.ExpenseDate != nil {
		date, err := parseDate(*req.ExpenseDate)
		if err != nil {
			http.Error(w, "invalid expense_date", http.StatusBadRequest)
			return
		}
		cmd.ExpenseDate = &date
	}
	currency, err := parseOptionalCurrency(req.Currency)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd.Currency = currency
	expense, err := h.services.Expenses.Update(r.Context(), cmd)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense, nil))
	h.logAudit(r, projectID, "expense", expenseID, "expense.update", map[string]any{
		"amount":   expense.AmountOriginal.String(),
		"currency": expense.CurrencyOriginal,
	})
}

func (h *ProjectHandler) handleDeleteExpense(w http.ResponseWriter, r *http.Request, projectID, expenseID string) {
	if err := h.services.Expenses.Delete(r.Context(), projectID, actorID(r), expenseID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, projectID, "expense", expenseID, "expense.delete", nil)
}

func (h *ProjectHandler) handleRestoreExpense(w http.ResponseWriter, r *http.Request, projectID, expenseID string) {
	view, err := h.services.Expenses.Restore(r.Context(), projectID, actorID(r), expenseID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(view.Expense, view.Obligations))
	h.logAudit(r, projectID, "expense", expenseID, "expense.restore", nil)
}

func (h *ProjectHandler) handleMarkAllPaid(w http.ResponseWriter, r *http.Request, projectID, expenseID string) {
	var req struct {
		Currency     string          `json:"currency"`
		PaymentDate  string          `json:"payment_date"`
		RateOverride decimal.Decimal `json:"exchange_rate_override"`
	}
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	currency, err := parseOptionalCurrency(req.Currency)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		http.Error(w, "invalid payment_date", http.StatusBadRequest)
		return
	}
	view, err := h.services.Expenses.MarkAllPaid(r.Context(), application.MarkAllPaidCommand{
		ProjectID:    projectID,
		ActorID:      actorID(r),
		ExpenseID:    expenseID,
		PaymentDate:  paymentDate,
		RateOverride: req.RateOverride,
		Currency:     currency,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(view.Expense, view.Obligations))
	h.logAudit(r, projectID, "expense", expenseID, "expense.mark_all_paid", map[string]any{
		"status": view.Expense.Status,
	})
}

func (h *ProjectHandler) handleAttachInvoice(w http.ResponseWriter, r *http.Request, projectID, expenseID string) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	expense, err := h.services.Expenses.AttachInvoice(r.Context(), projectID, actorID(r), expenseID, req.Path)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense, nil))
	h.logAudit(r, projectID, "expense", expenseID, "expense.invoice", map[string]any{"path": req.Path})
}

func (h *ProjectHandler) handleListObligations(w http.ResponseWriter, r *http.Request, projectID string) {
	query := r.URL.Query()
	pendingOnly := query.Get("pending") == "true"
	var (
		obligations []ledger.Obligation
		err         error
	)
	if query.Get("mine") == "false" {
		obligations, err = h.services.Payments.ListProject(r.Context(), projectID, actorID(r), pendingOnly)
	} else {
		obligations, err = h.services.Payments.ListMine(r.Context(), projectID, actorID(r), pendingOnly)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponses(obligations))
}

func (h *ProjectHandler) handlePendingApproval(w http.ResponseWriter, r *http.Request, projectID string) {
	obligations, err := h.services.Payments.ListPendingApproval(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponses(obligations))
}

func (h *ProjectHandler) handleGetObligation(w http.ResponseWriter, r *http.Request, projectID, obligationID string) {
	obligation, err := h.services.Payments.Get(r.Context(), projectID, actorID(r), obligationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponse(obligation))
}

type paymentRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	RateOverride decimal.Decimal `json:"exchange_rate_override"`
	PaymentDate  string          `json:"payment_date"`
}

func (p paymentRequest) parse() (money.Currency, time.Time, error) {
	currency, err := parseOptionalCurrency(p.Currency)
	if err != nil {
		return "", time.Time{}, err
	}
	date, err := parseDate(p.PaymentDate)
	if err != nil {
		return "", time.Time{}, errors.New("invalid payment_date")
	}
	return currency, date, nil
}

func (h *ProjectHandler) handleSubmitPayment(w http.ResponseWriter, r *http.Request, projectID, obligationID string) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	currency, paymentDate, err := req.parse()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	obligation, err := h.services.Payments.Submit(r.Context(), application.SubmitPaymentCommand{
		ProjectID:    projectID,
		ActorID:      actorID(r),
		ObligationID: obligationID,
		Amount:       req.Amount,
		Currency:     currency,
		RateOverride: req.RateOverride,
		PaymentDate:  paymentDate,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponse(obligation))
	h.logAudit(r, projectID, "obligation", obligationID, "payment.submit", map[string]any{
		"amount":   req.Amount.String(),
		"currency": currency,
		"state":    obligation.State(),
	})
}

func (h *ProjectHandler) handleReviewPayment(w http.ResponseWriter, r *http.Request, projectID, obligationID string) {
	var req struct {
		Approved bool   `json:"approved"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	obligation, err := h.services.Payments.Review(r.Context(), application.ReviewPaymentCommand{
		ProjectID:    projectID,
		ActorID:      actorID(r),
		ObligationID: obligationID,
		Approved:     req.Approved,
		Reason:       req.Reason,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponse(obligation))
	action := "payment.approve"
	if !req.Approved {
		action = "payment.reject"
	}
	h.logAudit(r, projectID, "obligation", obligationID, action, map[string]any{"reason": obligation.RejectionReason})
}

func (h *ProjectHandler) handleMarkPaid(w http.ResponseWriter, r *http.Request, projectID, obligationID string) {
	var req paymentRequest
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	currency, paymentDate, err := req.parse()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	obligation, err := h.services.Payments.MarkPaid(r.Context(), application.MarkPaidCommand{
		ProjectID:    projectID,
		ActorID:      actorID(r),
		ObligationID: obligationID,
		Amount:       req.Amount,
		Currency:     currency,
		RateOverride: req.RateOverride,
		PaymentDate:  paymentDate,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponse(obligation))
	h.logAudit(r, projectID, "obligation", obligationID, "payment.mark_paid", map[string]any{
		"amount":   formatNull(obligation.AmountPaid),
		"currency": obligation.CurrencyPaid,
	})
}

func (h *ProjectHandler) handleUnmark(w http.ResponseWriter, r *http.Request, projectID, obligationID string) {
	obligation, err := h.services.Payments.Unmark(r.Context(), projectID, actorID(r), obligationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponse(obligation))
	h.logAudit(r, projectID, "obligation", obligationID, "payment.unmark", nil)
}

func (h *ProjectHandler) handleAttachReceipt(w http.ResponseWriter, r *http.Request, projectID, obligationID string) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	obligation, err := h.services.Payments.AttachReceipt(r.Context(), projectID, actorID(r), obligationID, req.Path)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponse(obligation))
	h.logAudit(r, projectID, "obligation", obligationID, "receipt.attach", map[string]any{"path": req.Path})
}

func (h *ProjectHandler) handleRemoveReceipt(w http.ResponseWriter, r *http.Request, projectID, obligationID string) {
	obligation, err := h.services.Payments.RemoveReceipt(r.Context(), projectID, actorID(r), obligationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationResponse(obligation))
	h.logAudit(r, projectID, "obligation", obligationID, "receipt.remove", nil)
}

func (h *ProjectHandler) handleCreateContribution(w http.ResponseWriter, r *http.Request, projectID string) {
	var req struct {
		UserID           string          `json:"user_id"`
		Amount           decimal.Decimal `json:"amount"`
		Currency         string          `json:"currency"`
		RateOverride     decimal.Decimal `json:"exchange_rate_override"`
		Description      string          `json:"description"`
		Split            bool            `json:"split"`
		ContributionDate string          `json:"contribution_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.ContributionDate)
	if err != nil {
		http.Error(w, "invalid contribution_date", http.StatusBadRequest)
		return
	}
	view, err := h.services.Contributions.Create(r.Context(), application.CreateContributionCommand{
		ProjectID:        projectID,
		ActorID:          actorID(r),
		TargetUserID:     req.UserID,
		Amount:           req.Amount,
		Currency:         currency,
		RateOverride:     req.RateOverride,
		Description:      req.Description,
		Split:            req.Split,
		ContributionDate: date,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContributionResponse(view.Contribution, view.Obligations))
	h.logAudit(r, projectID, "contribution", view.Contribution.ID, "contribution.create", map[string]any{
		"amount":   view.Contribution.AmountOriginal.String(),
		"currency": view.Contribution.CurrencyOriginal,
		"split":    view.Contribution.Split,
	})
}

func (h *ProjectHandler) handleListContributions(w http.ResponseWriter, r *http.Request, projectID string) {
	contributions, err := h.services.Contributions.List(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := make([]contributionResponse, 0, len(contributions))
	for _, c := range contributions {
		resp = append(resp, toContributionResponse(c, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProjectHandler) handleGetContribution(w http.ResponseWriter, r *http.Request, projectID, contributionID string) {
	view, err := h.services.Contributions.Get(r.Context(), projectID, actorID(r), contributionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionResponse(view.Contribution, view.Obligations))
}

func (h *ProjectHandler) handleApproveContribution(w http.ResponseWriter, r *http.Request, projectID, contributionID string) {
	view, err := h.services.Contributions.Approve(r.Context(), projectID, actorID(r), contributionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionResponse(view.Contribution, view.Obligations))
	h.logAudit(r, projectID, "contribution", contributionID, "contribution.approve", nil)
}

func (h *ProjectHandler) handleRejectContribution(w http.ResponseWriter, r *http.Request, projectID, contributionID string) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	view, err := h.services.Contributions.Reject(r.Context(), projectID, actorID(r), contributionID, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionResponse(view.Contribution, view.Obligations))
	h.logAudit(r, projectID, "contribution", contributionID, "contribution.reject", map[string]any{
		"reason": view.Contribution.RejectionReason,
	})
}

func (h *ProjectHandler) handleContributionsByParticipant(w http.ResponseWriter, r *http.Request, projectID string) {
	totals, err := h.services.Summaries.ContributionsByParticipant(r.Context(), projectID, actorID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(totals))
	for _, t := range totals {
		resp = append(resp, map[string]any{
			"user_id":       t.UserID,
			"display_name":  t.DisplayName,
			"percentage":    t.Percentage.String(),
			"total_usd":     t.TotalUSD.StringFixed(2),
			"total_ars":     t.TotalARS.StringFixed(2),
			"contributions": t.Contributions,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProjectHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request, projectID string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("xlsx", result, time.Since(start))
	}()

	data, err := h.collectProjectExport(r, projectID)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	body, err := BuildProjectXLSX(data, h.export)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	h.logAudit(r, projectID, "project", projectID, "project.export", map[string]any{"format": "xlsx"})
}

func (h *ProjectHandler) collectProjectExport(r *http.Request, projectID string) (ProjectExport, error) {
	ctx := r.Context()
	actor := actorID(r)
	project, err := h.services.Projects.Get(ctx, projectID, actor)
	if err != nil {
		return ProjectExport{}, err
	}
	dash, err := h.services.Summaries.Dashboard(ctx, projectID, actor)
	if err != nil {
		return ProjectExport{}, err
	}
	expenses, err := h.services.Expenses.List(ctx, projectID, actor, false)
	if err != nil {
		return ProjectExport{}, err
	}
	balances, err := h.services.Summaries.MemberBalances(ctx, projectID, actor)
	if err != nil {
		return ProjectExport{}, err
	}
	contributions, err := h.services.Summaries.ContributionsByParticipant(ctx, projectID, actor)
	if err != nil {
		return ProjectExport{}, err
	}
	names, err := h.services.Summaries.CatalogNames(ctx, projectID, actor)
	if err != nil {
		return ProjectExport{}, err
	}
	return ProjectExport{
		Project:       project,
		Dashboard:     dash,
		Expenses:      expenses,
		Balances:      balances,
		Contributions: contributions,
		Catalog:       names,
		ByProvider:    application.SpendingRows(expenses, func(e ledger.Expense) string { return e.ProviderID }, names.Provider),
		ByCategory:    application.SpendingRows(expenses, func(e ledger.Expense) string { return e.CategoryID }, names.Category),
	}, nil
}

func (h *ProjectHandler) handleExportCSV(w http.ResponseWriter, r *http.Request, projectID string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("csv", result, time.Since(start))
	}()

	obligations, err := h.services.Payments.ListProject(r.Context(), projectID, actorID(r), false)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteObligationsCSV(&buf, obligations, h.export.DateLayout); err != nil {
		result = metrics.ResultError
		http.Error(w, "export csv error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	h.logAudit(r, projectID, "project", projectID, "project.export", map[string]any{"format": "csv"})
}

func (h *ProjectHandler) handleExportPDF(w http.ResponseWriter, r *http.Request, projectID, expenseID string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("pdf", result, time.Since(start))
	}()

	project, err := h.services.Projects.Get(r.Context(), projectID, actorID(r))
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	expense, rows, err := h.services.Summaries.ExpenseBreakdown(r.Context(), projectID, actorID(r), expenseID)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	body, err := BuildExpensePDF(project, expense, rows, h.export)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	h.logAudit(r, projectID, "expense", expenseID, "expense.export", map[string]any{"format": "pdf"})
}

func (h *ProjectHandler) logAudit(r *http.Request, projectID, resourceType, resourceID, action string, meta map[string]any) {
	writeAudit(h.auditLogger, r, projectID, resourceType, resourceID, action, meta)
}

func writeAudit(logger audit.Logger, r *http.Request, projectID, resourceType, resourceID, action string, meta map[string]any) {
	if logger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	var payload []byte
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
	_ = logger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ProjectID:    projectID,
		Metadata:     payload,
		IP:           auth.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func actorID(r *http.Request) string {
	return auth.SubjectFromContext(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// parseDate accepts YYYY-MM-DD or RFC3339. Empty means "now", decided by
// the service.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseOptionalCurrency(raw string) (money.Currency, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return money.ParseCurrency(raw)
}

func ensureProjectTenant(r *http.Request, checker auth.ProjectTenantChecker, tenantID, projectID string) error {
	if checker == nil || tenantID == "" || projectID == "" {
		return nil
	}
	return checker.EnsureProjectTenant(r.Context(), tenantID, projectID)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

var conflictErrors = []error{
	ledger.ErrMemberExists,
	ledger.ErrAlreadyPaid,
	ledger.ErrNotPendingApproval,
	ledger.ErrObligationDeleted,
	ledger.ErrCurrencyModeLocked,
	ledger.ErrExpenseDeleted,
	ledger.ErrExpenseNotDeleted,
	ledger.ErrNothingToMark,
	ledger.ErrContributionNotPending,
	ledger.ErrContributionSettled,
	ledger.ErrLastAdmin,
	ledger.ErrCategoryNameTaken,
}

var forbiddenErrors = []error{
	auth.ErrTenantMismatch,
	ledger.ErrNotOwner,
	ledger.ErrNotProjectAdmin,
	ledger.ErrNotMember,
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var blocked *ledger.BlockedError
	if errors.As(err, &blocked) {
		blockers := make([]blockerResponse, 0, len(blocked.Blockers))
		for _, b := range blocked.Blockers {
			blockers = append(blockers, blockerResponse{ObligationID: b.ObligationID, UserID: b.UserID, Reason: b.Reason})
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    err.Error(),
			"blockers": blockers,
		})
		return
	}
	if matchesAny(err, forbiddenErrors) {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if errors.Is(err, ledger.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if matchesAny(err, conflictErrors) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if errors.Is(err, ledger.ErrRateRequired) || errors.Is(err, exchangerate.ErrRateUnavailable) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
