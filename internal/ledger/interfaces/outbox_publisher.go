package interfaces

import (
	"context"

	"splitledger/internal/eventing"
)

// OutboxPublisher writes ledger events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
	tenantID  string
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher, tenantID string) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher, tenantID: tenantID}
}

// Publish writes event to the outbox. A tenant already on ctx wins over
// the default one.
func (p *OutboxPublisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	if eventing.MetaFromContext(ctx, "").TenantID == "" {
		ctx = eventing.WithTenantID(ctx, p.tenantID)
	}
	return p.publisher.Publish(ctx, event)
}
