package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

func orderCreated(id string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: "order",
		AggregateID:   "order-" + id,
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"total_amount":"1225.00"}`),
	}
}

func TestWorker_ProcessOnce_MarksSent(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderCreated("m1"), orderCreated("m2")}}
	publisher := &stubPublisher{}

	sent := NewWorker(repo, publisher, WithRetryBaseDelay(0)).ProcessOnce(context.Background())

	require.Equal(t, 2, sent)
	require.Equal(t, []string{"m1", "m2"}, repo.sentIDs)
	require.Empty(t, repo.failedIDs)
	require.Equal(t, 2, publisher.calls())
}

func TestWorker_ProcessOnce_DeadLetterAfterRetries(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderCreated("m1")}}
	publisher := &stubPublisher{err: errors.New("broker down")}
	deadLetter := &stubPublisher{}

	worker := NewWorker(repo, publisher,
		WithDeadLetter(deadLetter),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	require.Zero(t, worker.ProcessOnce(context.Background()))
	require.Equal(t, 3, publisher.calls())
	require.Equal(t, []string{"m1"}, repo.failedIDs)
	require.Empty(t, repo.sentIDs)
	require.Equal(t, 1, deadLetter.calls())

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(deadLetter.last.Payload, &envelope))
	require.Equal(t, "m1", envelope["outbox_id"])
	require.Contains(t, envelope["error"], "broker down")
}

func TestWorker_ProcessOnce_SucceedsAfterRetry(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderCreated("m1")}}
	publisher := &stubPublisher{sequence: []error{errors.New("attempt 1"), nil}}

	sent := NewWorker(repo, publisher, WithRetryBaseDelay(0)).ProcessOnce(context.Background())

	require.Equal(t, 1, sent)
	require.Equal(t, 2, publisher.calls())
	require.Equal(t, []string{"m1"}, repo.sentIDs)
}

func TestWorker_ProcessOnce_MemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	_, err := repos.Outbox.Enqueue(ctx, orderCreated(""))
	require.NoError(t, err)

	publisher := &stubPublisher{}
	require.Equal(t, 1, NewWorker(repos.Outbox, publisher).ProcessOnce(ctx))

	stats, err := repos.Outbox.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
}

func TestWorker_Backoff(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, nil, WithRetryBaseDelay(10*time.Millisecond))
	require.Equal(t, 10*time.Millisecond, w.backoff(1))
	require.Equal(t, 40*time.Millisecond, w.backoff(3))
	require.Zero(t, NewWorker(nil, nil, WithRetryBaseDelay(0)).backoff(5))
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&stubOutboxRepo{}, &stubPublisher{}, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

type stubOutboxRepo struct {
	mu        sync.Mutex
	pending   []domain.OutboxMessage
	sentIDs   []string
	failedIDs []string
}

func (s *stubOutboxRepo) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}

func (s *stubOutboxRepo) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubOutboxRepo) Stats(context.Context) (domain.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.OutboxStats{PendingCount: len(s.pending)}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubOutboxRepo) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	sequence  []error
	callCount int
	last      domain.OutboxMessage
}

func (s *stubPublisher) Publish(event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	s.last = event
	if len(s.sequence) > 0 {
		err := s.sequence[0]
		s.sequence = s.sequence[1:]
		return err
	}
	return s.err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

var (
	_ domain.OutboxRepository = (*stubOutboxRepo)(nil)
	_ domain.OutboxPublisher  = (*stubPublisher)(nil)
)
