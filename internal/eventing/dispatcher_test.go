package eventing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"splitledger/internal/eventing"
	"splitledger/internal/eventing/infrastructure/memory"
)

type sampleEvent struct {
	ProjectID  string
	Amount     string
	OccurredAt time.Time
}

func TestDispatcher_DeliversOncePerEvent(t *testing.T) {
	bus := eventing.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(sampleEvent{})

	outbox := memory.NewOutboxStore()
	processed := memory.NewProcessedStore()
	dispatcher := eventing.NewDispatcher(bus, outbox, registry, memory.NewDLQStore())
	publisher := eventing.NewPublisher(outbox, nil, "tenant-a", bus)

	var got []sampleEvent
	eventing.Subscribe(publisher, eventing.EventTypeOf[sampleEvent](), "recorder", func(ctx context.Context, event any) error {
		got = append(got, event.(sampleEvent))
		env, ok := eventing.EnvelopeFromContext(ctx)
		if !ok || env.ProjectID != "p-1" || env.TenantID != "tenant-a" {
			t.Fatalf("unexpected envelope %+v", env)
		}
		return nil
	}, processed)

	ctx := eventing.WithEventID(context.Background(), "evt-1")
	event := sampleEvent{ProjectID: "p-1", Amount: "10.00", OccurredAt: time.Now().UTC()}
	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("publish duplicate: %v", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Sent != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(got) != 1 || got[0].Amount != "10.00" {
		t.Fatalf("expected one delivery, got %+v", got)
	}
}

func TestDispatcher_FailedHandlerGoesToDLQ(t *testing.T) {
	bus := eventing.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(&sampleEvent{})

	outbox := memory.NewOutboxStore()
	dlq := memory.NewDLQStore()
	dispatcher := eventing.NewDispatcher(bus, outbox, registry, dlq)
	publisher := eventing.NewPublisher(outbox, nil, "tenant-a", bus)

	bus.Subscribe(eventing.EventTypeOf[sampleEvent](), func(context.Context, any) error {
		return errors.New("boom")
	})

	if err := publisher.Publish(context.Background(), sampleEvent{ProjectID: "p-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	result, err := dispatcher.Dispatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Failed != 1 || result.DLQ != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if dlq.Len() != 1 || outbox.Count("failed") != 1 {
		t.Fatalf("expected failure recorded, dlq=%d failed=%d", dlq.Len(), outbox.Count("failed"))
	}
}

func TestDispatcher_UnknownTypeIsFailed(t *testing.T) {
	outbox := memory.NewOutboxStore()
	dlq := memory.NewDLQStore()
	dispatcher := eventing.NewDispatcher(eventing.NewInMemoryBus(), outbox, eventing.NewRegistry(), dlq)

	env, err := eventing.BuildEnvelope(sampleEvent{ProjectID: "p-9"}, eventing.Meta{TenantID: "t"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if _, err := outbox.Insert(context.Background(), env); err != nil {
		t.Fatalf("insert: %v", err)
	}
	result, err := dispatcher.Dispatch(context.Background(), 5)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Failed != 1 || dlq.Len() != 1 {
		t.Fatalf("expected unknown type in dlq, got %+v", result)
	}
}

func TestBuildEnvelope_Defaults(t *testing.T) {
	occurred := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	env, err := eventing.BuildEnvelope(&sampleEvent{ProjectID: "p-2", OccurredAt: occurred}, eventing.Meta{TenantID: "t"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env.ProjectID != "p-2" || !env.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.EventID == "" || env.CorrelationID != env.EventID || env.SchemaVersion != 1 {
		t.Fatalf("unexpected defaults %+v", env)
	}
	if env.EventType != eventing.EventTypeOf[sampleEvent]() {
		t.Fatalf("event type mismatch: %s", env.EventType)
	}
}

func TestProcessedStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProcessedStore()
	if err := store.MarkProcessed(ctx, "evt-1", "recorder"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if n, _ := store.Prune(ctx, time.Now().Add(-time.Hour)); n != 0 {
		t.Fatalf("expected nothing pruned, got %d", n)
	}
	if n, _ := store.Prune(ctx, time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if ok, _ := store.HasProcessed(ctx, "evt-1", "recorder"); ok {
		t.Fatalf("receipt survived prune")
	}
}
