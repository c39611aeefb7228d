package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepository — in-memory хранилище transactional outbox.
// Записи живут в том же dataset, что и сущности, и откатываются вместе с ними.
type outboxRepository struct {
	store *Store
	inTx  bool
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с идентификатором.
func (r *outboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	defer r.store.acquire(r.inTx)()
	d := r.store.data

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.outbox[msg.ID] = row[outboxRecord]{
		value: outboxRecord{msg: msg, status: outboxStatusPending, createdAt: now, updatedAt: now},
		seq:   d.next(),
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке постановки.
func (r *outboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	defer r.store.acquire(r.inTx)()

	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.OutboxMessage, 0, limit)
	for _, rec := range ordered(r.store.data.outbox) {
		if rec.status != outboxStatusPending {
			continue
		}
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Stats возвращает размер backlog и возраст самого старого pending-сообщения.
func (r *outboxRepository) Stats(context.Context) (domain.OutboxStats, error) {
	defer r.store.acquire(r.inTx)()

	var stats domain.OutboxStats
	for _, rec := range r.store.data.outbox {
		if rec.value.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.value.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.value.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepository) MarkSent(_ context.Context, id string) error {
	return r.mark(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.mark(id, outboxStatusFailed)
}

func (r *outboxRepository) mark(id, status string) error {
	defer r.store.acquire(r.inTx)()
	d := r.store.data

	rec, ok := d.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	rec.value.status = status
	rec.value.attemptCnt++
	rec.value.updatedAt = time.Now().UTC()
	d.outbox[id] = rec
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
