package application

import (
	"context"
	"errors"
	"testing"

	ledger "splitledger/internal/ledger/domain"
	"splitledger/internal/money"
)

func TestPaymentService_RejectThenResubmit(t *testing.T) {
	f := newFixture(t)
	payments, err := NewPaymentService(f.store, f.rates, f.publisher, f.clock, WithDefaultRejectionReason("receipt unreadable"))
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "50", "bob": "50"})
	view := f.createExpense(project.ID, "admin", "100", money.CurrencyARS)
	bob := obligationFor(t, view.Obligations, "bob")

	if _, err := payments.Submit(f.ctx, SubmitPaymentCommand{ProjectID: project.ID, ActorID: "alice", ObligationID: bob.ID, Amount: d("50"), Currency: money.CurrencyARS}); !errors.Is(err, ledger.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := payments.Submit(f.ctx, SubmitPaymentCommand{ProjectID: project.ID, ActorID: "bob", ObligationID: bob.ID, Amount: d("50"), Currency: money.CurrencyARS}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	pending, err := payments.ListPendingApproval(f.ctx, project.ID, "admin")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != bob.ID {
		t.Fatalf("unexpected pending list %+v", pending)
	}
	if _, err := payments.ListPendingApproval(f.ctx, project.ID, "bob"); !errors.Is(err, ledger.ErrNotProjectAdmin) {
		t.Fatalf("expected ErrNotProjectAdmin, got %v", err)
	}

	rejected, err := payments.Review(f.ctx, ReviewPaymentCommand{ProjectID: project.ID, ActorID: "admin", ObligationID: bob.ID})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.State() != ledger.StateRejected || rejected.RejectionReason != "receipt unreadable" || rejected.AmountPaid.Valid {
		t.Fatalf("unexpected rejected obligation %+v", rejected)
	}
	if _, err := payments.Review(f.ctx, ReviewPaymentCommand{ProjectID: project.ID, ActorID: "admin", ObligationID: bob.ID, Approved: true}); !errors.Is(err, ledger.ErrNotPendingApproval) {
		t.Fatalf("expected ErrNotPendingApproval, got %v", err)
	}

	resubmitted, err := payments.Submit(f.ctx, SubmitPaymentCommand{ProjectID: project.ID, ActorID: "bob", ObligationID: bob.ID, Amount: d("50"), Currency: money.CurrencyARS})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.State() != ledger.StateSubmitted || resubmitted.RejectionReason != "" {
		t.Fatalf("expected fresh submission, got %+v", resubmitted)
	}
	approved, err := payments.Review(f.ctx, ReviewPaymentCommand{ProjectID: project.ID, ActorID: "admin", ObligationID: bob.ID, Approved: true})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.IsPaid || approved.ApprovedBy != "admin" {
		t.Fatalf("unexpected approval %+v", approved)
	}
	if _, err := payments.Submit(f.ctx, SubmitPaymentCommand{ProjectID: project.ID, ActorID: "bob", ObligationID: bob.ID, Amount: d("50"), Currency: money.CurrencyARS}); !errors.Is(err, ledger.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestPaymentService_AdminSubmissionAutoApproves(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "100"})
	yes := true
	if _, err := f.projects.UpdateMember(f.ctx, UpdateMemberCommand{ProjectID: project.ID, ActorID: "admin", UserID: "alice", IsAdmin: &yes}); err != nil {
		t.Fatalf("promote alice: %v", err)
	}
	view := f.createExpense(project.ID, "admin", "80", money.CurrencyARS)
	alice := obligationFor(t, view.Obligations, "alice")

	paid, err := f.payments.Submit(f.ctx, SubmitPaymentCommand{ProjectID: project.ID, ActorID: "alice", ObligationID: alice.ID, Amount: d("80"), Currency: money.CurrencyARS})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !paid.IsPaid || paid.IsPendingApproval {
		t.Fatalf("admin submission must auto-approve, got %+v", paid)
	}
	expense, err := f.expenses.Get(f.ctx, project.ID, "alice", view.Expense.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if expense.Expense.Status != ledger.ExpensePaid {
		t.Fatalf("expected PAID, got %s", expense.Expense.Status)
	}
}

func TestPaymentService_ReceiptsAndUnmark(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "50", "bob": "50"})
	view := f.createExpense(project.ID, "admin", "100", money.CurrencyARS)
	alice := obligationFor(t, view.Obligations, "alice")

	if _, err := f.payments.AttachReceipt(f.ctx, project.ID, "bob", alice.ID, "receipts/a.pdf"); !errors.Is(err, ledger.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	withReceipt, err := f.payments.AttachReceipt(f.ctx, project.ID, "alice", alice.ID, "receipts/a.pdf")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if !withReceipt.HasParticipantReceipt() {
		t.Fatalf("expected receipt")
	}
	if _, err := f.payments.MarkPaid(f.ctx, MarkPaidCommand{ProjectID: project.ID, ActorID: "admin", ObligationID: alice.ID}); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	unmarked, err := f.payments.Unmark(f.ctx, project.ID, "admin", alice.ID)
	if err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if unmarked.IsPaid || unmarked.ReceiptPath != "receipts/a.pdf" {
		t.Fatalf("unmark must keep the receipt, got %+v", unmarked)
	}
	cleared, err := f.payments.RemoveReceipt(f.ctx, project.ID, "alice", alice.ID)
	if err != nil {
		t.Fatalf("remove receipt: %v", err)
	}
	if cleared.HasParticipantReceipt() {
		t.Fatalf("expected receipt removed")
	}
}

func TestMemoryStore_RollsBackFailedTransactions(t *testing.T) {
	f := newFixture(t)
	project := f.sharedProject(money.ModeARS, map[string]string{"alice": "100"})
	f.setBalanceARS(project.ID, "alice", "100")

	boom := errors.New("boom")
	err := f.store.WithinTx(f.ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		m, err := uow.Members().GetForUpdate(ctx, project.ID, "alice")
		if err != nil {
			return err
		}
		m.Balance.ARS = d("0")
		if err := uow.Members().Update(ctx, m); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := f.balanceARS(project.ID, "alice"); !got.Equal(d("100")) {
		t.Fatalf("expected rollback to 100, got %s", got)
	}
}
