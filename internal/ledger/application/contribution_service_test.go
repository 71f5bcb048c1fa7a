package application

import (
	"errors"
	"testing"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

func TestContributionService_CreditDebitSymmetry(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "100"})
	start := f.balanceARS(project.ID, "alice")

	contribution, err := f.contributions.Create(f.ctx, CreateContributionCommand{ProjectID: project.ID, ActorID: "alice", Amount: d("300"), Currency: money.CurrencyARS})
	if err != nil {
		t.Fatalf("create contribution: %v", err)
	}
	if got := f.balanceARS(project.ID, "alice"); !got.Equal(start) {
		t.Fatalf("pending contribution must not credit, got %s", got)
	}
	if _, err := f.contributions.Approve(f.ctx, project.ID, "alice", contribution.Contribution.ID); !errors.Is(err, ledger.ErrNotProjectAdmin) {
		t.Fatalf("expected ErrNotProjectAdmin, got %v", err)
	}
	approved, err := f.contributions.Approve(f.ctx, project.ID, "admin", contribution.Contribution.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Contribution.Status != ledger.ContributionApproved || !approved.Obligations[0].IsPaid {
		t.Fatalf("unexpected approval %+v", approved)
	}
	credited := f.balanceARS(project.ID, "alice")
	if !credited.Equal(start.Add(d("300"))) {
		t.Fatalf("expected credit of 300, got %s", credited)
	}

	view := f.createExpense(project.ID, "admin", "300", money.CurrencyARS)
	if !view.Obligations[0].AutoPaid {
		t.Fatalf("expected auto-pay from the contribution")
	}
	if got := f.balanceARS(project.ID, "alice"); !got.Equal(start) {
		t.Fatalf("expected balance back to start after auto-pay, got %s", got)
	}
	if err := f.expenses.Delete(f.ctx, project.ID, "admin", view.Expense.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.balanceARS(project.ID, "alice"); !got.Equal(credited) {
		t.Fatalf("expected reversal to %s, got %s", credited, got)
	}
}

func TestContributionService_SubmissionNeverAutoApproves(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "100"})
	view, err := f.contributions.Create(f.ctx, CreateContributionCommand{ProjectID: project.ID, ActorID: "admin", TargetUserID: "alice", Amount: d("50"), Currency: money.CurrencyARS})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	credit := view.Obligations[0]
	if credit.Direction != ledger.Credit || credit.UserID != "alice" {
		t.Fatalf("unexpected credit obligation %+v", credit)
	}

	submitted, err := f.payments.Submit(f.ctx, SubmitPaymentCommand{ProjectID: project.ID, ActorID: "alice", ObligationID: credit.ID, Amount: d("50"), Currency: money.CurrencyARS})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.IsPaid || !submitted.IsPendingApproval {
		t.Fatalf("credit submission must wait for an admin, got %+v", submitted)
	}
	if got := f.balanceARS(project.ID, "alice"); !got.IsZero() {
		t.Fatalf("submission must not credit, got %s", got)
	}
	if _, err := f.payments.Review(f.ctx, ReviewPaymentCommand{ProjectID: project.ID, ActorID: "admin", ObligationID: credit.ID, Approved: true}); err != nil {
		t.Fatalf("review: %v", err)
	}
	if got := f.balanceARS(project.ID, "alice"); !got.Equal(d("50")) {
		t.Fatalf("approval must credit 50, got %s", got)
	}

	if _, err := f.contributions.Reject(f.ctx, project.ID, "admin", view.Contribution.ID, ""); !errors.Is(err, ledger.ErrContributionSettled) {
		t.Fatalf("expected ErrContributionSettled, got %v", err)
	}

	if _, err := f.payments.Unmark(f.ctx, project.ID, "admin", credit.ID); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if got := f.balanceARS(project.ID, "alice"); !got.IsZero() {
		t.Fatalf("unmark must debit the credit back, got %s", got)
	}
}

func TestContributionService_DualStoresARS(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeDual, map[string]string{"alice": "100"})

	view, err := f.contributions.Create(f.ctx, CreateContributionCommand{ProjectID: project.ID, ActorID: "alice", Amount: d("10"), Currency: money.CurrencyUSD, RateOverride: d("1200")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := view.Contribution
	if !c.AmountUSD.IsZero() || !c.AmountARS.Equal(d("12000")) || c.ExchangeRateSource != money.RateSourceManual {
		t.Fatalf("unexpected dual contribution %+v", c)
	}
	if _, err := f.contributions.Approve(f.ctx, project.ID, "admin", c.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := f.balanceARS(project.ID, "alice"); !got.Equal(d("12000")) {
		t.Fatalf("expected ARS balance 12000, got %s", got)
	}

	balances, err := f.summaries.MemberBalances(f.ctx, project.ID, "alice")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	for _, b := range balances {
		if b.UserID == "alice" && !b.BalanceUSD.Equal(d("12")) {
			t.Fatalf("expected derived usd 12, got %s", b.BalanceUSD)
		}
	}
}

func TestContributionService_SplitAndReject(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "60", "bob": "40"})

	if _, err := f.contributions.Create(f.ctx, CreateContributionCommand{ProjectID: project.ID, ActorID: "alice", Amount: d("100"), Currency: money.CurrencyARS, Split: true}); !errors.Is(err, ledger.ErrNotProjectAdmin) {
		t.Fatalf("expected ErrNotProjectAdmin, got %v", err)
	}
	if _, err := f.contributions.Create(f.ctx, CreateContributionCommand{ProjectID: project.ID, ActorID: "alice", Amount: d("100"), Currency: money.CurrencyUSD}); !errors.Is(err, ledger.ErrCurrencyNotAllowed) {
		t.Fatalf("expected ErrCurrencyNotAllowed, got %v", err)
	}
	view, err := f.contributions.Create(f.ctx, CreateContributionCommand{ProjectID: project.ID, ActorID: "admin", Amount: d("100"), Currency: money.CurrencyARS, Split: true})
	if err != nil {
		t.Fatalf("create split: %v", err)
	}
	if len(view.Obligations) != 2 || !obligationFor(t, view.Obligations, "alice").AmountDueARS.Equal(d("60")) {
		t.Fatalf("unexpected split %+v", view.Obligations)
	}

	rejected, err := f.contributions.Reject(f.ctx, project.ID, "admin", view.Contribution.ID, "duplicate")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Contribution.Status != ledger.ContributionRejected || rejected.Contribution.RejectionReason != "duplicate" {
		t.Fatalf("unexpected rejection %+v", rejected.Contribution)
	}
	if got := f.balanceARS(project.ID, "alice"); !got.IsZero() {
		t.Fatalf("rejection must not touch balances, got %s", got)
	}
	mine, err := f.payments.ListMine(f.ctx, project.ID, "alice", true)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("rejected credits must not stay pending, got %d", len(mine))
	}
}
