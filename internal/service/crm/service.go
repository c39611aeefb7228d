// Package crm реализует мутации и запросы CRM: клиенты, товары, заказы.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
)

// HelloMessage возвращается запросом hello.
const HelloMessage = "Hello from CRM API!"

// Service объединяет правила валидации, репозитории и единицу работы.
type Service struct {
	repos    domain.Repositories
	uow      domain.UnitOfWork
	logger   *log.Entry
	metrics  *metrics.CRMMetrics
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	events   bool
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics включает запись метрик мутаций.
func WithMetrics(m *metrics.CRMMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithEvents включает запись доменных событий в outbox.
func WithEvents(enabled bool) Option {
	return func(s *Service) {
		s.events = enabled
	}
}

// NewService создаёт сервис. repos используются для чтения вне транзакций,
// uow — для всех мутаций.
func NewService(repos domain.Repositories, uow domain.UnitOfWork, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.WithField("component", "crm-service")
	}
	s := &Service{
		repos:    repos,
		uow:      uow,
		logger:   logger,
		validate: newValidator(),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hello отвечает на проверочный запрос API.
func (s *Service) Hello() string {
	return HelloMessage
}

// record пишет метрику по результату операции.
func (s *Service) record(operation string, err error) {
	s.metrics.RecordMutation(operation, resultLabel(err))
}

// logFailure логирует ошибку мутации с уровнем, зависящим от её класса.
func (s *Service) logFailure(operation string, err error, fields log.Fields) {
	entry := s.logger.WithError(err).WithField("operation", operation).WithFields(fields)
	if domain.IsValidation(err) {
		entry.Warn("mutation rejected")
		return
	}
	entry.Error("mutation failed")
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case domain.IsStorageFailure(err):
		return metrics.ResultStorageError
	case domain.IsValidation(err):
		return metrics.ResultValidationError
	default:
		return metrics.ResultError
	}
}

// enqueueEvent пишет событие в outbox текущей единицы работы.
func (s *Service) enqueueEvent(ctx context.Context, repos domain.Repositories, aggregateType, aggregateID, eventType string, payload any) error {
	if !s.events || repos.Outbox == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	_, err = repos.Outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	})
	return err
}
