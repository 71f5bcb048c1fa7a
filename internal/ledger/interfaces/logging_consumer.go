package interfaces

import (
	"context"
	"errors"
	"log"

	"splitledger/internal/eventing"
	"splitledger/internal/ledger/application"
)

// LoggingConsumer logs delivered ledger events.
type LoggingConsumer struct {
	logger *log.Logger
}

// NewLoggingConsumer constructs a logging consumer.
func NewLoggingConsumer(logger *log.Logger) *LoggingConsumer {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingConsumer{logger: logger}
}

// Register subscribes the consumer to every ledger event type.
func (c *LoggingConsumer) Register(bus eventing.Subscriber, store eventing.ProcessedStore) {
	for _, sample := range application.EventSamples() {
		eventing.Subscribe(bus, eventing.EventType(sample), "ledger-log", c.Handle, store)
	}
}

// Handle logs the event.
func (c *LoggingConsumer) Handle(ctx context.Context, event any) error {
	_ = ctx
	if c == nil {
		return errors.New("ledger consumer: nil consumer")
	}
	switch e := event.(type) {
	case application.ExpenseCreated:
		c.logger.Printf("ledger event: type=expense_created project=%s expense=%s ars=%s usd=%s auto_paid=%d status=%s", e.ProjectID, e.ExpenseID, e.AmountARS.StringFixed(2), e.AmountUSD.StringFixed(2), e.AutoPaid, e.Status)
	case application.ExpenseDeleted:
		c.logger.Printf("ledger event: type=expense_deleted project=%s expense=%s refunded=%d", e.ProjectID, e.ExpenseID, e.Refunded)
	case application.ExpenseRestored:
		c.logger.Printf("ledger event: type=expense_restored project=%s expense=%s", e.ProjectID, e.ExpenseID)
	case application.ExpenseStatusChanged:
		c.logger.Printf("ledger event: type=expense_status project=%s expense=%s from=%s to=%s", e.ProjectID, e.ExpenseID, e.From, e.To)
	case application.ObligationChanged:
		c.logger.Printf("ledger event: type=obligation project=%s obligation=%s action=%s state=%s user=%s", e.ProjectID, e.ObligationID, e.Action, e.State, e.UserID)
	case application.BalanceAdjusted:
		c.logger.Printf("ledger event: type=balance project=%s user=%s kind=%s amount=%s %s", e.ProjectID, e.UserID, e.Kind, e.Amount.StringFixed(2), e.Currency)
	case application.ContributionCreated:
		c.logger.Printf("ledger event: type=contribution_created project=%s contribution=%s user=%s split=%t", e.ProjectID, e.ContributionID, e.UserID, e.Split)
	case application.ContributionResolved:
		c.logger.Printf("ledger event: type=contribution_resolved project=%s contribution=%s status=%s", e.ProjectID, e.ContributionID, e.Status)
	default:
		c.logger.Printf("ledger event: type=%s", eventing.EventType(event))
	}
	return nil
}
