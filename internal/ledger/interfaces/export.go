package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"splitledger/internal/ledger/application"
	ledger "splitledger/internal/ledger/domain"
)

const (
	defaultExportTitle = "Project Ledger"
	defaultDateLayout  = "2006-01-02"
)

// ProjectExport is everything the project workbook shows.
type ProjectExport struct {
	Project       ledger.Project
	Dashboard     application.DashboardSummary
	Expenses      []ledger.Expense
	Balances      []application.MemberBalance
	Contributions []application.ParticipantContributions
	Catalog       application.CatalogNames
	ByProvider    []application.SpendingRow
	ByCategory    []application.SpendingRow
}

func exportDefaults(cfg application.ExportConfig) application.ExportConfig {
	if cfg.Title == "" {
		cfg.Title = defaultExportTitle
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = defaultDateLayout
	}
	return cfg
}

// BuildProjectXLSX renders the project workbook: a summary sheet, the
// expense list, member balances, contributions and spending per provider
// and per category.
func BuildProjectXLSX(data ProjectExport, cfg application.ExportConfig) ([]byte, error) {
	cfg = exportDefaults(cfg)
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summarySheet := "summary"
	expensesSheet := "expenses"
	balancesSheet := "balances"
	contributionsSheet := "contributions"
	providersSheet := "providers"
	categoriesSheet := "categories"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	for _, sheet := range []string{expensesSheet, balancesSheet, contributionsSheet, providersSheet, categoriesSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}

	dash := data.Dashboard
	_ = f.SetCellValue(summarySheet, "A1", cfg.Title)
	_ = f.SetCellValue(summarySheet, "A3", "Project")
	_ = f.SetCellValue(summarySheet, "B3", data.Project.Name)
	_ = f.SetCellValue(summarySheet, "A4", "Currency Mode")
	_ = f.SetCellValue(summarySheet, "B4", string(data.Project.CurrencyMode))
	_ = f.SetCellValue(summarySheet, "A5", "Expenses")
	_ = f.SetCellValue(summarySheet, "B5", dash.ExpensesCount)
	_ = f.SetCellValue(summarySheet, "A6", "Participants")
	_ = f.SetCellValue(summarySheet, "B6", dash.ParticipantsCount)
	_ = f.SetCellValue(summarySheet, "A7", "Total USD")
	_ = f.SetCellValue(summarySheet, "B7", dash.TotalExpensesUSD.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A8", "Total ARS")
	_ = f.SetCellValue(summarySheet, "B8", dash.TotalExpensesARS.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A9", "Paid ARS")
	_ = f.SetCellValue(summarySheet, "B9", dash.TotalPaidARS.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A10", "Pending ARS")
	_ = f.SetCellValue(summarySheet, "B10", dash.TotalPendingARS.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A11", "Rate")
	_ = f.SetCellValue(summarySheet, "B11", dash.CurrentRate.String())

	setHeaders(f, expensesSheet, "Date", "Description", "Provider", "Category", "Currency", "Amount", "USD", "ARS", "Rate", "Status")
	for i, e := range data.Expenses {
		row := i + 2
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("A%d", row), e.ExpenseDate.Format(cfg.DateLayout))
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("B%d", row), e.Description)
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("C%d", row), data.Catalog.Provider(e.ProviderID))
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("D%d", row), data.Catalog.Category(e.CategoryID))
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("E%d", row), string(e.CurrencyOriginal))
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("F%d", row), e.AmountOriginal.InexactFloat64())
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("G%d", row), e.AmountUSD.InexactFloat64())
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("H%d", row), e.AmountARS.InexactFloat64())
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("I%d", row), e.ExchangeRateUsed.String())
		_ = f.SetCellValue(expensesSheet, fmt.Sprintf("J%d", row), string(e.Status))
	}

	_ = f.SetCellValue(balancesSheet, "A1", "Member")
	_ = f.SetCellValue(balancesSheet, "B1", "Percentage")
	_ = f.SetCellValue(balancesSheet, "C1", "Admin")
	_ = f.SetCellValue(balancesSheet, "D1", "Balance USD")
	_ = f.SetCellValue(balancesSheet, "E1", "Balance ARS")
	for i, b := range data.Balances {
		row := i + 2
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("A%d", row), memberLabel(b.UserID, b.DisplayName))
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("B%d", row), b.Percentage.InexactFloat64())
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("C%d", row), b.IsAdmin)
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("D%d", row), b.BalanceUSD.InexactFloat64())
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("E%d", row), b.BalanceARS.InexactFloat64())
	}

	_ = f.SetCellValue(contributionsSheet, "A1", "Member")
	_ = f.SetCellValue(contributionsSheet, "B1", "Contributions")
	_ = f.SetCellValue(contributionsSheet, "C1", "Total USD")
	_ = f.SetCellValue(contributionsSheet, "D1", "Total ARS")
	for i, c := range data.Contributions {
		row := i + 2
		_ = f.SetCellValue(contributionsSheet, fmt.Sprintf("A%d", row), memberLabel(c.UserID, c.DisplayName))
		_ = f.SetCellValue(contributionsSheet, fmt.Sprintf("B%d", row), c.Contributions)
		_ = f.SetCellValue(contributionsSheet, fmt.Sprintf("C%d", row), c.TotalUSD.InexactFloat64())
		_ = f.SetCellValue(contributionsSheet, fmt.Sprintf("D%d", row), c.TotalARS.InexactFloat64())
	}

	writeSpendingSheet(f, providersSheet, "Provider", data.ByProvider)
	writeSpendingSheet(f, categoriesSheet, "Category", data.ByCategory)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setHeaders(f *excelize.File, sheet string, headers ...string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
}

func writeSpendingSheet(f *excelize.File, sheet, label string, rows []application.SpendingRow) {
	setHeaders(f, sheet, label, "Expenses", "Total USD", "Total ARS")
	for i, r := range rows {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.Name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.Expenses)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.TotalUSD.InexactFloat64())
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.TotalARS.InexactFloat64())
	}
}

// BuildExpensePDF renders the participant breakdown of one expense.
func BuildExpensePDF(project ledger.Project, expense ledger.Expense, rows []application.BreakdownRow, cfg application.ExportConfig) ([]byte, error) {
	cfg = exportDefaults(cfg)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, cfg.Title)
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Project: %s (%s)", project.Name, project.CurrencyMode))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Expense: %s", expense.Description))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", expense.ExpenseDate.Format(cfg.DateLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Amount: %s %s", expense.AmountOriginal.StringFixed(2), expense.CurrencyOriginal))
	pdf.Ln(5)
	if expense.ExchangeRateUsed.IsPositive() {
		pdf.Cell(0, 6, fmt.Sprintf("Rate: %s (%s)", expense.ExchangeRateUsed.String(), expense.ExchangeRateSource))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", expense.Status))
	pdf.Ln(5)
	if expense.IsDeleted && expense.DeletedAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Deleted: %s", expense.DeletedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Member", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "%", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Due USD", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Due ARS", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Paid", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "State", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		paid := "-"
		if row.AmountPaid.Valid {
			paid = fmt.Sprintf("%s %s", row.AmountPaid.Decimal.StringFixed(2), row.CurrencyPaid)
		}
		state := string(row.State)
		if row.AutoPaid {
			state = "AUTO"
		}
		pdf.CellFormat(45, 6, memberLabel(row.UserID, row.DisplayName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, row.Percentage.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, row.DueUSD.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, row.DueARS.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, paid, "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, state, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var obligationCSVHeader = []string{
	"obligation_id", "owner_kind", "owner_id", "direction", "user_id", "state",
	"due_usd", "due_ars", "amount_paid", "currency_paid", "auto_paid", "receipt", "payment_date",
}

// WriteObligationsCSV writes one line per obligation.
func WriteObligationsCSV(w io.Writer, obligations []ledger.Obligation, dateLayout string) error {
	if dateLayout == "" {
		dateLayout = defaultDateLayout
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(obligationCSVHeader); err != nil {
		return err
	}
	for _, o := range obligations {
		paymentDate := ""
		if o.PaymentDate != nil {
			paymentDate = o.PaymentDate.Format(dateLayout)
		}
		record := []string{
			o.ID,
			string(o.Owner.Kind),
			o.Owner.ID,
			string(o.Direction),
			o.UserID,
			string(o.State()),
			o.AmountDueUSD.StringFixed(2),
			o.AmountDueARS.StringFixed(2),
			formatNull(o.AmountPaid),
			string(o.CurrencyPaid),
			strconv.FormatBool(o.AutoPaid),
			strconv.FormatBool(o.HasParticipantReceipt()),
			paymentDate,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func memberLabel(userID, displayName string) string {
	if displayName == "" {
		return userID
	}
	return displayName
}
