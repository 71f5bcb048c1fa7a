package interfaces

import (
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/ledger/application"
	ledger "splitledger/internal/ledger/domain"
)

type projectResponse struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id,omitempty"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CurrencyMode string `json:"currency_mode"`
	IsIndividual bool   `json:"is_individual"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type memberResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Percentage  string `json:"percentage"`
	IsAdmin     bool   `json:"is_admin"`
	IsActive    bool   `json:"is_active"`
	BalanceUSD  string `json:"balance_usd"`
	BalanceARS  string `json:"balance_ars"`
	BalanceAt   string `json:"balance_updated_at,omitempty"`
	JoinedAt    string `json:"joined_at"`
}

type memberChangeResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Action        string  `json:"action"`
	OldPercentage *string `json:"old_percentage"`
	NewPercentage *string `json:"new_percentage"`
	OldIsAdmin    *bool   `json:"old_is_admin"`
	NewIsAdmin    *bool   `json:"new_is_admin"`
	ChangedBy     string  `json:"changed_by"`
	ChangedAt     string  `json:"changed_at"`
}

type expenseResponse struct {
	ID                 string               `json:"id"`
	Description        string               `json:"description,omitempty"`
	ProviderID         string               `json:"provider_id,omitempty"`
	CategoryID         string               `json:"category_id,omitempty"`
	AmountOriginal     string               `json:"amount_original"`
	CurrencyOriginal   string               `json:"currency_original"`
	AmountUSD          string               `json:"amount_usd"`
	AmountARS          string               `json:"amount_ars"`
	ExchangeRateUsed   string               `json:"exchange_rate_used"`
	ExchangeRateSource string               `json:"exchange_rate_source,omitempty"`
	ExpenseDate        string               `json:"expense_date"`
	InvoicePath        string               `json:"invoice_path,omitempty"`
	Status             string               `json:"status"`
	CreatedBy          string               `json:"created_by"`
	IsDeleted          bool                 `json:"is_deleted"`
	DeletedAt          string               `json:"deleted_at,omitempty"`
	DeletedBy          string               `json:"deleted_by,omitempty"`
	Obligations        []obligationResponse `json:"obligations,omitempty"`
}

type obligationResponse struct {
	ID                    string `json:"id"`
	OwnerKind             string `json:"owner_kind"`
	OwnerID               string `json:"owner_id"`
	Direction             string `json:"direction"`
	UserID                string `json:"user_id"`
	State                 string `json:"state"`
	Percentage            string `json:"percentage"`
	AmountDueUSD          string `json:"amount_due_usd"`
	AmountDueARS          string `json:"amount_due_ars"`
	AmountPaid            string `json:"amount_paid,omitempty"`
	CurrencyPaid          string `json:"currency_paid,omitempty"`
	AmountPaidUSD         string `json:"amount_paid_usd,omitempty"`
	AmountPaidARS         string `json:"amount_paid_ars,omitempty"`
	ExchangeRateAtPayment string `json:"exchange_rate_at_payment,omitempty"`
	ExchangeRateSource    string `json:"exchange_rate_source,omitempty"`
	IsPaid                bool   `json:"is_paid"`
	IsPendingApproval     bool   `json:"is_pending_approval"`
	AutoPaid              bool   `json:"auto_paid"`
	PaymentDate           string `json:"payment_date,omitempty"`
	PaidAt                string `json:"paid_at,omitempty"`
	SubmittedAt           string `json:"submitted_at,omitempty"`
	ApprovedAt            string `json:"approved_at,omitempty"`
	ApprovedBy            string `json:"approved_by,omitempty"`
	RejectionReason       string `json:"rejection_reason,omitempty"`
	ReceiptPath           string `json:"receipt_path,omitempty"`
	IsDeleted             bool   `json:"is_deleted"`
	DeletedAt             string `json:"deleted_at,omitempty"`
	DeletedBy             string `json:"deleted_by,omitempty"`
}

type contributionResponse struct {
	ID                 string               `json:"id"`
	UserID             string               `json:"user_id"`
	AmountOriginal     string               `json:"amount_original"`
	CurrencyOriginal   string               `json:"currency_original"`
	AmountUSD          string               `json:"amount_usd"`
	AmountARS          string               `json:"amount_ars"`
	ExchangeRateUsed   string               `json:"exchange_rate_used"`
	ExchangeRateSource string               `json:"exchange_rate_source,omitempty"`
	Description        string               `json:"description,omitempty"`
	Split              bool                 `json:"split"`
	Status             string               `json:"status"`
	ContributionDate   string               `json:"contribution_date"`
	ApprovedBy         string               `json:"approved_by,omitempty"`
	RejectionReason    string               `json:"rejection_reason,omitempty"`
	Obligations        []obligationResponse `json:"obligations,omitempty"`
}

type balanceResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Percentage  string `json:"percentage"`
	IsAdmin     bool   `json:"is_admin"`
	IsActive    bool   `json:"is_active"`
	BalanceUSD  string `json:"balance_usd"`
	BalanceARS  string `json:"balance_ars"`
	BalanceAt   string `json:"balance_updated_at,omitempty"`
}

type spendingResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Expenses int    `json:"expenses"`
	TotalUSD string `json:"total_usd"`
	TotalARS string `json:"total_ars"`
}

type providerResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContactInfo string `json:"contact_info,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type categoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type blockerResponse struct {
	ObligationID string `json:"obligation_id"`
	UserID       string `json:"user_id"`
	Reason       string `json:"reason"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func formatNullPtr(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func toProjectResponse(p ledger.Project) projectResponse {
	return projectResponse{
		ID:           p.ID,
		TenantID:     p.TenantID,
		Name:         p.Name,
		Description:  p.Description,
		CurrencyMode: string(p.CurrencyMode),
		IsIndividual: p.IsIndividual,
		CreatedBy:    p.CreatedBy,
		CreatedAt:    formatTime(p.CreatedAt),
		UpdatedAt:    formatTime(p.UpdatedAt),
	}
}

func toMemberResponse(m ledger.Member) memberResponse {
	return memberResponse{
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Percentage:  m.Percentage.String(),
		IsAdmin:     m.IsAdmin,
		IsActive:    m.IsActive,
		BalanceUSD:  m.Balance.USD.StringFixed(2),
		BalanceARS:  m.Balance.ARS.StringFixed(2),
		BalanceAt:   formatTime(m.Balance.UpdatedAt),
		JoinedAt:    formatTime(m.JoinedAt),
	}
}

func toMemberChangeResponse(c ledger.MemberChange) memberChangeResponse {
	return memberChangeResponse{
		ID:            c.ID,
		UserID:        c.UserID,
		Action:        c.Action,
		OldPercentage: formatNullPtr(c.OldPercentage),
		NewPercentage: formatNullPtr(c.NewPercentage),
		OldIsAdmin:    c.OldIsAdmin,
		NewIsAdmin:    c.NewIsAdmin,
		ChangedBy:     c.ChangedBy,
		ChangedAt:     formatTime(c.ChangedAt),
	}
}

func toExpenseResponse(e ledger.Expense, obligations []ledger.Obligation) expenseResponse {
	resp := expenseResponse{
		ID:                 e.ID,
		Description:        e.Description,
		ProviderID:         e.ProviderID,
		CategoryID:         e.CategoryID,
		AmountOriginal:     e.AmountOriginal.StringFixed(2),
		CurrencyOriginal:   string(e.CurrencyOriginal),
		AmountUSD:          e.AmountUSD.StringFixed(2),
		AmountARS:          e.AmountARS.StringFixed(2),
		ExchangeRateUsed:   e.ExchangeRateUsed.String(),
		ExchangeRateSource: e.ExchangeRateSource,
		ExpenseDate:        e.ExpenseDate.Format("2006-01-02"),
		InvoicePath:        e.InvoicePath,
		Status:             string(e.Status),
		CreatedBy:          e.CreatedBy,
		IsDeleted:          e.IsDeleted,
		DeletedAt:          formatTimePtr(e.DeletedAt),
		DeletedBy:          e.DeletedBy,
	}
	if len(obligations) > 0 {
		resp.Obligations = toObligationResponses(obligations)
	}
	return resp
}

func toExpenseResponses(expenses []ledger.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e, nil))
	}
	return out
}

func toObligationResponse(o ledger.Obligation) obligationResponse {
	return obligationResponse{
		ID:                    o.ID,
		OwnerKind:             string(o.Owner.Kind),
		OwnerID:               o.Owner.ID,
		Direction:             string(o.Direction),
		UserID:                o.UserID,
		State:                 string(o.State()),
		Percentage:            o.Percentage.String(),
		AmountDueUSD:          o.AmountDueUSD.StringFixed(2),
		AmountDueARS:          o.AmountDueARS.StringFixed(2),
		AmountPaid:            formatNull(o.AmountPaid),
		CurrencyPaid:          string(o.CurrencyPaid),
		AmountPaidUSD:         formatNull(o.AmountPaidUSD),
		AmountPaidARS:         formatNull(o.AmountPaidARS),
		ExchangeRateAtPayment: formatNull(o.ExchangeRateAtPayment),
		ExchangeRateSource:    o.ExchangeRateSource,
		IsPaid:                o.IsPaid,
		IsPendingApproval:     o.IsPendingApproval,
		AutoPaid:              o.AutoPaid,
		PaymentDate:           formatTimePtr(o.PaymentDate),
		PaidAt:                formatTimePtr(o.PaidAt),
		SubmittedAt:           formatTimePtr(o.SubmittedAt),
		ApprovedAt:            formatTimePtr(o.ApprovedAt),
		ApprovedBy:            o.ApprovedBy,
		RejectionReason:       o.RejectionReason,
		ReceiptPath:           o.ReceiptPath,
		IsDeleted:             o.IsDeleted,
		DeletedAt:             formatTimePtr(o.DeletedAt),
		DeletedBy:             o.DeletedBy,
	}
}

func toObligationResponses(obligations []ledger.Obligation) []obligationResponse {
	out := make([]obligationResponse, 0, len(obligations))
	for _, o := range obligations {
		out = append(out, toObligationResponse(o))
	}
	return out
}

func toContributionResponse(c ledger.Contribution, obligations []ledger.Obligation) contributionResponse {
	resp := contributionResponse{
		ID:                 c.ID,
		UserID:             c.UserID,
		AmountOriginal:     c.AmountOriginal.StringFixed(2),
		CurrencyOriginal:   string(c.CurrencyOriginal),
		AmountUSD:          c.AmountUSD.StringFixed(2),
		AmountARS:          c.AmountARS.StringFixed(2),
		ExchangeRateUsed:   c.ExchangeRateUsed.String(),
		ExchangeRateSource: c.ExchangeRateSource,
		Description:        c.Description,
		Split:              c.Split,
		Status:             string(c.Status),
		ContributionDate:   c.ContributionDate.Format("2006-01-02"),
		ApprovedBy:         c.ApprovedBy,
		RejectionReason:    c.RejectionReason,
	}
	if len(obligations) > 0 {
		resp.Obligations = toObligationResponses(obligations)
	}
	return resp
}

func toBalanceResponses(balances []application.MemberBalance) []balanceResponse {
	out := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, balanceResponse{
			UserID:      b.UserID,
			DisplayName: b.DisplayName,
			Percentage:  b.Percentage.String(),
			IsAdmin:     b.IsAdmin,
			IsActive:    b.IsActive,
			BalanceUSD:  b.BalanceUSD.StringFixed(2),
			BalanceARS:  b.BalanceARS.StringFixed(2),
			BalanceAt:   formatTime(b.UpdatedAt),
		})
	}
	return out
}

func toProviderResponse(p ledger.Provider) providerResponse {
	return providerResponse{
		ID:          p.ID,
		Name:        p.Name,
		ContactInfo: p.ContactInfo,
		IsActive:    p.IsActive,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

func toCategoryResponse(c ledger.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Color:       c.Color,
		IsActive:    c.IsActive,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
	}
}
