package memory

import (
	"context"
	"testing"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repositories().Outbox

	msg := domain.OutboxMessage{
		AggregateType: "customer",
		AggregateID:   "customer-1",
		EventType:     domain.EventCustomerCreated,
		Payload:       []byte(`{"email":"john@example.com"}`),
	}

	saved, err := repo.Enqueue(ctx, msg)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}
	if pending[0].ID != saved.ID {
		t.Fatalf("expected same message id, got %s", pending[0].ID)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOutboxRepository_PullKeepsEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repositories().Outbox

	var ids []string
	for i := 0; i < 5; i++ {
		saved, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "product"})
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		ids = append(ids, saved.ID)
	}

	pending, err := repo.PullPending(ctx, 3)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(pending))
	}
	for i, msg := range pending {
		if msg.ID != ids[i] {
			t.Fatalf("position %d: expected %s, got %s", i, ids[i], msg.ID)
		}
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repositories().Outbox

	saved, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(ctx, saved.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	pending, _ := repo.PullPending(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected no pending messages after MarkSent, got %d", len(pending))
	}

	if err := repo.MarkFailed(ctx, saved.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := repo.MarkFailed(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing record")
	}
}
