package interfaces

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"splitledger/internal/eventing"
	"splitledger/internal/eventing/infrastructure/memory"
	"splitledger/internal/ledger/application"
)

func TestLoggingConsumer_ReceivesPublishedEvents(t *testing.T) {
	var buf bytes.Buffer
	consumer := NewLoggingConsumer(log.New(&buf, "", 0))
	bus := eventing.NewInMemoryBus()
	consumer.Register(bus, nil)

	registry := eventing.NewRegistry()
	registry.Register(application.EventSamples()...)
	outbox := memory.NewOutboxStore()
	dispatcher := eventing.NewDispatcher(bus, outbox, registry, memory.NewDLQStore())
	publisher := NewOutboxPublisher(eventing.NewPublisher(outbox, dispatcher, "", bus), "tenant-a")

	err := publisher.Publish(context.Background(), application.ExpenseStatusChanged{ProjectID: "p1", ExpenseID: "e1", From: "PENDING", To: "PAID"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.Contains(buf.String(), "type=expense_status project=p1 expense=e1 from=PENDING to=PAID") {
		t.Fatalf("unexpected log %q", buf.String())
	}
}
