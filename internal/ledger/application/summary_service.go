package application

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

// MemberBalance is a member's balance as reported to readers. In DUAL
// projects BalanceUSD is derived from BalanceARS at the current rate.
type MemberBalance struct {
	UserID      string
	DisplayName string
	Percentage  decimal.Decimal
	IsAdmin     bool
	IsActive    bool
	BalanceUSD  decimal.Decimal
	BalanceARS  decimal.Decimal
	UpdatedAt   time.Time
}

// PaymentSummary totals one member's obligations.
type PaymentSummary struct {
	UserID               string
	Percentage           decimal.Decimal
	TotalDueUSD          decimal.Decimal
	TotalDueARS          decimal.Decimal
	TotalPaidUSD         decimal.Decimal
	TotalPaidARS         decimal.Decimal
	TotalPendingUSD      decimal.Decimal
	TotalPendingARS      decimal.Decimal
	PendingCount         int
	PendingApprovalCount int
	Balance              MemberBalance
}

// DashboardSummary is the project-wide overview.
type DashboardSummary struct {
	CurrencyMode      money.Mode
	TotalExpensesUSD  decimal.Decimal
	TotalExpensesARS  decimal.Decimal
	TotalPaidUSD      decimal.Decimal
	TotalPaidARS      decimal.Decimal
	TotalPendingUSD   decimal.Decimal
	TotalPendingARS   decimal.Decimal
	ExpensesCount     int
	ParticipantsCount int
	CurrentRate       decimal.Decimal
}

// MonthlyTotal is one month of expense evolution.
type MonthlyTotal struct {
	Year     int
	Month    int
	TotalUSD decimal.Decimal
	TotalARS decimal.Decimal
	Count    int
}

// Evolution is the per-month expense history with running totals.
type Evolution struct {
	Months        []MonthlyTotal
	CumulativeUSD decimal.Decimal
	CumulativeARS decimal.Decimal
}

// BreakdownRow is one participant line of an expense.
type BreakdownRow struct {
	ObligationID string
	UserID       string
	DisplayName  string
	Percentage   decimal.Decimal
	DueUSD       decimal.Decimal
	DueARS       decimal.Decimal
	AmountPaid   decimal.NullDecimal
	CurrencyPaid money.Currency
	State        ledger.PaymentState
	AutoPaid     bool
	HasReceipt   bool
	IsDeleted    bool
	PaymentDate  *time.Time
}

// ParticipantContributions totals approved contributions per member.
type ParticipantContributions struct {
	UserID        string
	DisplayName   string
	Percentage    decimal.Decimal
	TotalUSD      decimal.Decimal
	TotalARS      decimal.Decimal
	Contributions int
}

// SummaryService serves read models. Reads never fail on a missing rate;
// they fall back to zero.
type SummaryService struct {
	store ledger.Store
	rates RateSource
}

// NewSummaryService constructs the service.
func NewSummaryService(store ledger.Store, rates RateSource) (*SummaryService, error) {
	if store == nil {
		return nil, errors.New("summary service: nil store")
	}
	return &SummaryService{store: store, rates: rates}, nil
}

func (s *SummaryService) currentRate(ctx context.Context, mode money.Mode) decimal.Decimal {
	if mode != money.ModeDual || s.rates == nil {
		return decimal.Zero
	}
	rate, err := s.rates.Rate(ctx)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero
	}
	return rate
}

func (s *SummaryService) access(ctx context.Context, projectID, actorID string) (*ledger.Project, ledger.Actor, error) {
	project, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return nil, ledger.Actor{}, err
	}
	actor, err := resolveActor(ctx, s.store, project.ID, actorID)
	if err != nil {
		return nil, ledger.Actor{}, err
	}
	return project, actor, nil
}

func memberBalance(m ledger.Member, mode money.Mode, rate decimal.Decimal) MemberBalance {
	usd := m.Balance.USD
	if mode == money.ModeDual {
		usd = m.Balance.DerivedUSD(rate)
	}
	return MemberBalance{
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Percentage:  m.Percentage,
		IsAdmin:     m.IsAdmin,
		IsActive:    m.IsActive,
		BalanceUSD:  usd,
		BalanceARS:  m.Balance.ARS,
		UpdatedAt:   m.Balance.UpdatedAt,
	}
}

// MemberBalances lists every member's balance.
func (s *SummaryService) MemberBalances(ctx context.Context, projectID, actorID string) ([]MemberBalance, error) {
	project, _, err := s.access(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Members().ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	rate := s.currentRate(ctx, project.CurrencyMode)
	out := make([]MemberBalance, 0, len(members))
	for _, m := range members {
		out = append(out, memberBalance(m, project.CurrencyMode, rate))
	}
	return out, nil
}

// UserPaymentSummary totals a member's live obligations. userID defaults to
// the caller; other members need an admin.
func (s *SummaryService) UserPaymentSummary(ctx context.Context, projectID, actorID, userID string) (PaymentSummary, error) {
	project, actor, err := s.access(ctx, projectID, actorID)
	if err != nil {
		return PaymentSummary{}, err
	}
	if userID == "" {
		userID = actor.UserID
	}
	if userID != actor.UserID && !actor.IsProjectAdmin {
		return PaymentSummary{}, ledger.ErrNotProjectAdmin
	}
	member, err := s.store.Members().Get(ctx, project.ID, userID)
	if err != nil {
		return PaymentSummary{}, err
	}
	if member == nil {
		return PaymentSummary{}, ledger.ErrNotMember
	}
	obligations, err := s.store.Obligations().ListByProject(ctx, project.ID, ledger.ObligationFilter{UserID: userID})
	if err != nil {
		return PaymentSummary{}, err
	}
	summary := PaymentSummary{
		UserID:          userID,
		Percentage:      member.Percentage,
		TotalDueUSD:     decimal.Zero,
		TotalDueARS:     decimal.Zero,
		TotalPaidUSD:    decimal.Zero,
		TotalPaidARS:    decimal.Zero,
		TotalPendingUSD: decimal.Zero,
		TotalPendingARS: decimal.Zero,
		Balance:         memberBalance(*member, project.CurrencyMode, s.currentRate(ctx, project.CurrencyMode)),
	}
	for _, o := range obligations {
		summary.TotalDueUSD = summary.TotalDueUSD.Add(o.AmountDueUSD)
		summary.TotalDueARS = summary.TotalDueARS.Add(o.AmountDueARS)
		if o.IsPaid {
			summary.TotalPaidUSD = summary.TotalPaidUSD.Add(o.AmountDueUSD)
			summary.TotalPaidARS = summary.TotalPaidARS.Add(o.AmountDueARS)
			continue
		}
		summary.TotalPendingUSD = summary.TotalPendingUSD.Add(o.AmountDueUSD)
		summary.TotalPendingARS = summary.TotalPendingARS.Add(o.AmountDueARS)
		summary.PendingCount++
		if o.IsPendingApproval {
			summary.PendingApprovalCount++
		}
	}
	return summary, nil
}

// Dashboard summarizes live expenses and their paid shares.
func (s *SummaryService) Dashboard(ctx context.Context, projectID, actorID string) (DashboardSummary, error) {
	project, _, err := s.access(ctx, projectID, actorID)
	if err != nil {
		return DashboardSummary{}, err
	}
	expenses, err := s.store.Expenses().ListByProject(ctx, project.ID, false)
	if err != nil {
		return DashboardSummary{}, err
	}
	obligations, err := s.store.Obligations().ListByProject(ctx, project.ID, ledger.ObligationFilter{Direction: ledger.Debit})
	if err != nil {
		return DashboardSummary{}, err
	}
	members, err := s.store.Members().ListByProject(ctx, project.ID)
	if err != nil {
		return DashboardSummary{}, err
	}

	summary := DashboardSummary{
		CurrencyMode:      project.CurrencyMode,
		TotalExpensesUSD:  decimal.Zero,
		TotalExpensesARS:  decimal.Zero,
		TotalPaidUSD:      decimal.Zero,
		TotalPaidARS:      decimal.Zero,
		ExpensesCount:     len(expenses),
		ParticipantsCount: len(ledger.ActiveMembers(members)),
		CurrentRate:       s.currentRate(ctx, project.CurrencyMode),
	}
	live := make(map[string]struct{}, len(expenses))
	for _, e := range expenses {
		live[e.ID] = struct{}{}
		summary.TotalExpensesUSD = summary.TotalExpensesUSD.Add(e.AmountUSD)
		summary.TotalExpensesARS = summary.TotalExpensesARS.Add(e.AmountARS)
	}
	for _, o := range obligations {
		if _, ok := live[o.Owner.ID]; !ok || !o.IsPaid {
			continue
		}
		summary.TotalPaidUSD = summary.TotalPaidUSD.Add(o.AmountDueUSD)
		summary.TotalPaidARS = summary.TotalPaidARS.Add(o.AmountDueARS)
	}
	summary.TotalPendingUSD = summary.TotalExpensesUSD.Sub(summary.TotalPaidUSD)
	summary.TotalPendingARS = summary.TotalExpensesARS.Sub(summary.TotalPaidARS)
	return summary, nil
}

// ExpenseEvolution groups live expenses by expense month, oldest first.
func (s *SummaryService) ExpenseEvolution(ctx context.Context, projectID, actorID string) (Evolution, error) {
	project, _, err := s.access(ctx, projectID, actorID)
	if err != nil {
		return Evolution{}, err
	}
	expenses, err := s.store.Expenses().ListByProject(ctx, project.ID, false)
	if err != nil {
		return Evolution{}, err
	}
	type monthKey struct{ year, month int }
	buckets := make(map[monthKey]*MonthlyTotal)
	for _, e := range expenses {
		key := monthKey{e.ExpenseDate.Year(), int(e.ExpenseDate.Month())}
		bucket, ok := buckets[key]
		if !ok {
			bucket = &MonthlyTotal{Year: key.year, Month: key.month, TotalUSD: decimal.Zero, TotalARS: decimal.Zero}
			buckets[key] = bucket
		}
		bucket.TotalUSD = bucket.TotalUSD.Add(e.AmountUSD)
		bucket.TotalARS = bucket.TotalARS.Add(e.AmountARS)
		bucket.Count++
	}
	evolution := Evolution{Months: make([]MonthlyTotal, 0, len(buckets)), CumulativeUSD: decimal.Zero, CumulativeARS: decimal.Zero}
	for _, bucket := range buckets {
		evolution.Months = append(evolution.Months, *bucket)
	}
	sort.Slice(evolution.Months, func(i, j int) bool {
		if evolution.Months[i].Year != evolution.Months[j].Year {
			return evolution.Months[i].Year < evolution.Months[j].Year
		}
		return evolution.Months[i].Month < evolution.Months[j].Month
	})
	for _, m := range evolution.Months {
		evolution.CumulativeUSD = evolution.CumulativeUSD.Add(m.TotalUSD)
		evolution.CumulativeARS = evolution.CumulativeARS.Add(m.TotalARS)
	}
	return evolution, nil
}

// ExpenseBreakdown returns the participant rows of an expense.
func (s *SummaryService) ExpenseBreakdown(ctx context.Context, projectID, actorID, expenseID string) (ledger.Expense, []BreakdownRow, error) {
	project, _, err := s.access(ctx, projectID, actorID)
	if err != nil {
		return ledger.Expense{}, nil, err
	}
	expense, err := s.store.Expenses().Get(ctx, project.ID, expenseID)
	if err != nil {
		return ledger.Expense{}, nil, err
	}
	if expense == nil {
		return ledger.Expense{}, nil, ledger.ErrNotFound
	}
	obligations, err := s.store.Obligations().ListByOwner(ctx, ledger.Owner{Kind: ledger.OwnerExpense, ID: expense.ID}, expense.IsDeleted)
	if err != nil {
		return ledger.Expense{}, nil, err
	}
	names, err := s.displayNames(ctx, project.ID)
	if err != nil {
		return ledger.Expense{}, nil, err
	}
	rows := make([]BreakdownRow, 0, len(obligations))
	for i := range obligations {
		o := &obligations[i]
		rows = append(rows, BreakdownRow{
			ObligationID: o.ID,
			UserID:       o.UserID,
			DisplayName:  names[o.UserID],
			Percentage:   o.Percentage,
			DueUSD:       o.AmountDueUSD,
			DueARS:       o.AmountDueARS,
			AmountPaid:   o.AmountPaid,
			CurrencyPaid: o.CurrencyPaid,
			State:        o.State(),
			AutoPaid:     o.AutoPaid,
			HasReceipt:   o.HasParticipantReceipt(),
			IsDeleted:    o.IsDeleted,
			PaymentDate:  o.PaymentDate,
		})
	}
	return *expense, rows, nil
}

// ContributionsByParticipant totals approved contributions per member. In
// DUAL projects USD is derived from ARS at the current rate.
func (s *SummaryService) ContributionsByParticipant(ctx context.Context, projectID, actorID string) ([]ParticipantContributions, error) {
	project, _, err := s.access(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}
	contributions, err := s.store.Contributions().ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Members().ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]ledger.Member, len(members))
	for _, m := range members {
		byUser[m.UserID] = m
	}
	totals := make(map[string]*ParticipantContributions)
	for _, c := range contributions {
		if c.Status != ledger.ContributionApproved {
			continue
		}
		row, ok := totals[c.UserID]
		if !ok {
			m := byUser[c.UserID]
			row = &ParticipantContributions{UserID: c.UserID, DisplayName: m.DisplayName, Percentage: m.Percentage, TotalUSD: decimal.Zero, TotalARS: decimal.Zero}
			totals[c.UserID] = row
		}
		row.TotalUSD = row.TotalUSD.Add(c.AmountUSD)
		row.TotalARS = row.TotalARS.Add(c.AmountARS)
		row.Contributions++
	}
	rate := s.currentRate(ctx, project.CurrencyMode)
	out := make([]ParticipantContributions, 0, len(totals))
	for _, row := range totals {
		if project.CurrencyMode == money.ModeDual {
			row.TotalUSD = decimal.Zero
			if rate.IsPositive() {
				row.TotalUSD = money.Round2(row.TotalARS.Div(rate))
			}
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *SummaryService) displayNames(ctx context.Context, projectID string) (map[string]string, error) {
	members, err := s.store.Members().ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.UserID] = m.DisplayName
	}
	return names, nil
}

// SpendingRow totals live expenses attributed to one provider or category.
// Expenses with no reference land in the row with an empty ID.
type SpendingRow struct {
	ID       string
	Name     string
	Expenses int
	TotalUSD decimal.Decimal
	TotalARS decimal.Decimal
}

// CatalogNames resolves provider and category ids for display.
type CatalogNames struct {
	Providers  map[string]string
	Categories map[string]string
}

// Provider returns the provider name, "-" when unassigned and the raw id
// when the provider is unknown.
func (n CatalogNames) Provider(id string) string { return lookupName(n.Providers, id) }

// Category is the category counterpart of Provider.
func (n CatalogNames) Category(id string) string { return lookupName(n.Categories, id) }

func lookupName(names map[string]string, id string) string {
	if id == "" {
		return ledger.Unassigned
	}
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

// CatalogNames loads the names of every provider and category of the
// project's tenant, inactive ones included.
func (s *SummaryService) CatalogNames(ctx context.Context, projectID, actorID string) (CatalogNames, error) {
	project, _, err := s.access(ctx, projectID, actorID)
	if err != nil {
		return CatalogNames{}, err
	}
	return s.catalogNames(ctx, project.TenantID)
}

func (s *SummaryService) catalogNames(ctx context.Context, tenantID string) (CatalogNames, error) {
	providers, err := s.store.Providers().List(ctx, tenantID, true)
	if err != nil {
		return CatalogNames{}, err
	}
	categories, err := s.store.Categories().List(ctx, tenantID, true)
	if err != nil {
		return CatalogNames{}, err
	}
	names := CatalogNames{
		Providers:  make(map[string]string, len(providers)),
		Categories: make(map[string]string, len(categories)),
	}
	for _, p := range providers {
		names.Providers[p.ID] = p.Name
	}
	for _, c := range categories {
		names.Categories[c.ID] = c.Name
	}
	return names, nil
}

// SpendingByProvider totals live expenses per provider.
func (s *SummaryService) SpendingByProvider(ctx context.Context, projectID, actorID string) ([]SpendingRow, error) {
	return s.spending(ctx, projectID, actorID, func(e ledger.Expense) string { return e.ProviderID }, CatalogNames.Provider)
}

// SpendingByCategory totals live expenses per category.
func (s *SummaryService) SpendingByCategory(ctx context.Context, projectID, actorID string) ([]SpendingRow, error) {
	return s.spending(ctx, projectID, actorID, func(e ledger.Expense) string { return e.CategoryID }, CatalogNames.Category)
}

func (s *SummaryService) spending(ctx context.Context, projectID, actorID string, key func(ledger.Expense) string, label func(CatalogNames, string) string) ([]SpendingRow, error) {
	project, _, err := s.access(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.Expenses().ListByProject(ctx, project.ID, false)
	if err != nil {
		return nil, err
	}
	names, err := s.catalogNames(ctx, project.TenantID)
	if err != nil {
		return nil, err
	}
	return SpendingRows(expenses, key, func(id string) string { return label(names, id) }), nil
}

// SpendingRows groups expenses by key. Rows are ordered by name with the
// unassigned row last.
func SpendingRows(expenses []ledger.Expense, key func(ledger.Expense) string, label func(string) string) []SpendingRow {
	rows := make(map[string]*SpendingRow)
	for _, e := range expenses {
		if e.IsDeleted {
			continue
		}
		id := key(e)
		row, ok := rows[id]
		if !ok {
			row = &SpendingRow{ID: id, Name: label(id), TotalUSD: decimal.Zero, TotalARS: decimal.Zero}
			rows[id] = row
		}
		row.Expenses++
		row.TotalUSD = row.TotalUSD.Add(e.AmountUSD)
		row.TotalARS = row.TotalARS.Add(e.AmountARS)
	}
	out := make([]SpendingRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].ID == "") != (out[j].ID == "") {
			return out[j].ID == ""
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
