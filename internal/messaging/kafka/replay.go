package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

// ReplayConfig описывает один проход по dead-letter топику.
type ReplayConfig struct {
	SourceTopic string
	TargetTopic string
	Limit       int
	// Execute публикует события повторно; без него выполняется пробный проход.
	Execute bool
	// FromNewest читает последние Limit сообщений каждой партиции.
	FromNewest  bool
	IdleTimeout time.Duration
}

// Normalize подставляет значения по умолчанию и проверяет настройки.
func (c ReplayConfig) Normalize() (ReplayConfig, error) {
	c.SourceTopic = strings.TrimSpace(c.SourceTopic)
	c.TargetTopic = strings.TrimSpace(c.TargetTopic)
	if c.SourceTopic == "" {
		c.SourceTopic = TopicCRMDeadLetter
	}
	if c.TargetTopic == "" {
		c.TargetTopic = TopicCRMEvents
	}
	if c.SourceTopic == c.TargetTopic {
		return c, fmt.Errorf("source and target topics must differ: %s", c.SourceTopic)
	}
	if c.Limit == 0 {
		c.Limit = defaultReplayLimit
	}
	if c.Limit < 0 {
		return c, fmt.Errorf("limit must be > 0")
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	return c, nil
}

// ReplayStats — итог прохода.
type ReplayStats struct {
	Processed int
	Replayed  int
	Skipped   int
}

// OffsetSource отдаёт партиции и границы смещений топика (реализуется sarama.Client).
type OffsetSource interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
}

// PartitionConsumer — часть sarama.PartitionConsumer, нужная для чтения.
type PartitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

// PartitionSource открывает чтение партиции.
type PartitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (PartitionConsumer, error)
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (PartitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// Replayer переносит события из dead-letter топика обратно в основной.
type Replayer struct {
	offsets  OffsetSource
	consumer PartitionSource
	producer *Producer
	logger   *log.Entry
}

// NewReplayer собирает Replayer из готовых клиентов. producer нужен только для Execute.
func NewReplayer(offsets OffsetSource, consumer PartitionSource, producer *Producer, logger *log.Entry) *Replayer {
	if logger == nil {
		logger = log.WithField("component", "dlq-replay")
	}
	return &Replayer{offsets: offsets, consumer: consumer, producer: producer, logger: logger}
}

// DialReplayer подключается к брокерам. Возвращённая функция закрывает все клиенты.
func DialReplayer(brokers []string, execute bool, logger *log.Entry) (*Replayer, func() error, error) {
	if len(brokers) == 0 {
		return nil, nil, fmt.Errorf("kafka brokers are required")
	}

	consumerConfig := sarama.NewConfig()
	consumerConfig.ClientID = defaultClientID + "-replay"
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(brokers, consumerConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	var producer *Producer
	if execute {
		producer, err = NewProducer(ProducerConfig{Brokers: brokers, ClientID: defaultClientID + "-replay"})
		if err != nil {
			_ = consumer.Close()
			_ = client.Close()
			return nil, nil, err
		}
	}

	closeFn := func() error {
		var errs []error
		if producer != nil {
			errs = append(errs, producer.Close())
		}
		errs = append(errs, consumer.Close(), client.Close())
		return errors.Join(errs...)
	}
	return NewReplayer(client, saramaConsumerAdapter{consumer: consumer}, producer, logger), closeFn, nil
}

// Run читает не больше cfg.Limit сообщений, начиная с младших партиций.
func (r *Replayer) Run(ctx context.Context, cfg ReplayConfig) (ReplayStats, error) {
	var total ReplayStats
	cfg, err := cfg.Normalize()
	if err != nil {
		return total, err
	}
	if r.offsets == nil || r.consumer == nil {
		return total, fmt.Errorf("kafka client and consumer are required")
	}
	if cfg.Execute && r.producer == nil {
		return total, fmt.Errorf("producer is required in execute mode")
	}

	r.logger.WithFields(log.Fields{
		"source_topic": cfg.SourceTopic,
		"target_topic": cfg.TargetTopic,
		"limit":        cfg.Limit,
		"execute":      cfg.Execute,
		"from_newest":  cfg.FromNewest,
	}).Info("starting dlq replay")

	partitions, err := r.offsets.Partitions(cfg.SourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.SourceTopic, err)
	}
	if len(partitions) == 0 {
		r.logger.WithField("topic", cfg.SourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		if total.Processed >= cfg.Limit {
			break
		}
		stats, err := r.processPartition(ctx, cfg, partition, cfg.Limit-total.Processed)
		total.Processed += stats.Processed
		total.Replayed += stats.Replayed
		total.Skipped += stats.Skipped
		if err != nil {
			return total, err
		}
	}

	mode := "dry-run"
	if cfg.Execute {
		mode = "execute"
	}
	r.logger.WithFields(log.Fields{
		"mode":      mode,
		"processed": total.Processed,
		"replayed":  total.Replayed,
		"skipped":   total.Skipped,
	}).Info("dlq replay finished")
	return total, nil
}

func (r *Replayer) processPartition(ctx context.Context, cfg ReplayConfig, partition int32, limit int) (ReplayStats, error) {
	var stats ReplayStats

	oldest, err := r.offsets.GetOffset(cfg.SourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.offsets.GetOffset(cfg.SourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if cfg.FromNewest {
		start = max(newest-int64(limit), oldest)
	}

	pc, err := r.consumer.ConsumePartition(cfg.SourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.IdleTimeout)
	defer idle.Stop()

	for stats.Processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case cerr := <-pc.Errors():
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case <-idle.C:
			return stats, nil
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(cfg.IdleTimeout)
			stats.Processed++

			envelope, err := extractReplayEnvelope(msg.Value)
			if err != nil {
				stats.Skipped++
				r.logger.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip unsupported dlq message")
			} else if err := r.replay(cfg, envelope, msg); err != nil {
				return stats, err
			} else {
				stats.Replayed++
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

func (r *Replayer) replay(cfg ReplayConfig, envelope Envelope, msg *sarama.ConsumerMessage) error {
	key := envelope.AggregateID
	if key == "" {
		key = envelope.ID
	}
	if !cfg.Execute {
		r.logger.WithFields(log.Fields{
			"partition":    msg.Partition,
			"offset":       msg.Offset,
			"target_topic": cfg.TargetTopic,
			"event_type":   envelope.EventType,
			"key":          key,
		}).Info("dlq replay candidate")
		return nil
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode replay envelope: %w", err)
	}
	if err := r.producer.Send(cfg.TargetTopic, key, body, map[string]string{
		"event_type": envelope.EventType,
		"replayed":   "true",
	}); err != nil {
		return fmt.Errorf("publish replay message: %w", err)
	}
	return nil
}

// deadLetterPayload — содержимое Envelope.Payload в dead-letter топике.
type deadLetterPayload struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Error         string          `json:"error"`
}

// extractReplayEnvelope восстанавливает исходное событие из сообщения dead-letter топика.
func extractReplayEnvelope(value []byte) (Envelope, error) {
	var outer Envelope
	if err := json.Unmarshal(value, &outer); err != nil {
		return Envelope{}, fmt.Errorf("decode dlq envelope: %w", err)
	}
	if len(outer.Payload) == 0 {
		return Envelope{}, fmt.Errorf("dlq envelope has no payload")
	}

	var dead deadLetterPayload
	if err := json.Unmarshal(outer.Payload, &dead); err != nil {
		return Envelope{}, fmt.Errorf("decode dlq payload: %w", err)
	}
	if len(dead.Payload) == 0 {
		return Envelope{}, fmt.Errorf("dlq payload does not contain the original event")
	}

	return Envelope{
		ID:            firstNonEmpty(dead.OutboxID, outer.ID),
		AggregateType: firstNonEmpty(dead.AggregateType, outer.AggregateType),
		AggregateID:   firstNonEmpty(dead.AggregateID, outer.AggregateID),
		EventType:     firstNonEmpty(dead.EventType, outer.EventType),
		Payload:       dead.Payload,
		PublishedAt:   time.Now().UTC(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
