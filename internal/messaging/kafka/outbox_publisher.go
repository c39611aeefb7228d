package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// Envelope — формат сообщения о событии CRM в топике.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OutboxPublisher публикует outbox-сообщения в один топик.
// Ключ сообщения — идентификатор агрегата, чтобы события одной сущности шли по порядку.
type OutboxPublisher struct {
	producer *Producer
	topic    string
}

func NewOutboxPublisher(producer *Producer, topic string) *OutboxPublisher {
	if topic == "" {
		topic = TopicCRMEvents
	}
	return &OutboxPublisher{producer: producer, topic: topic}
}

func (p *OutboxPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("%w: kafka publisher is not initialized", domain.ErrOutboxPublish)
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	body, err := json.Marshal(Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event.EventType, err)
	}

	return p.producer.Send(p.topic, key, body, map[string]string{"event_type": event.EventType})
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)
