package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// CustomerCreatedMessage сопровождает успешное создание клиента.
const CustomerCreatedMessage = "Customer created successfully."

// CreateCustomerInput — данные для создания клиента.
type CreateCustomerInput struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

func (in CreateCustomerInput) normalized() CreateCustomerInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

// CreateCustomerResult — созданный клиент и подтверждение.
type CreateCustomerResult struct {
	Customer domain.Customer
	Message  string
}

// BulkCreateResult содержит две упорядоченные последовательности:
// созданных клиентов и ошибки по номерам входных записей.
type BulkCreateResult struct {
	Customers []domain.Customer
	Errors    []domain.RecordError
}

// Messages возвращает ошибки в виде строк "Record N: причина".
func (r BulkCreateResult) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}

// CreateCustomer проверяет и сохраняет одного клиента.
// Первое нарушенное правило возвращается как ошибка, запись не производится.
func (s *Service) CreateCustomer(ctx context.Context, in CreateCustomerInput) (CreateCustomerResult, error) {
	in = in.normalized()

	var created domain.Customer
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		c, err := s.createCustomer(ctx, repos, in)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	s.record("create_customer", err)
	if err != nil {
		s.logFailure("create_customer", err, log.Fields{"email": in.Email})
		return CreateCustomerResult{}, err
	}

	s.logger.WithFields(log.Fields{
		"customer_id": created.ID,
		"email":       created.Email,
	}).Info("customer created")
	return CreateCustomerResult{Customer: created, Message: CustomerCreatedMessage}, nil
}

// BulkCreateCustomers создаёт клиентов в одной транзакции. Ошибки валидации
// копятся по записям и не прерывают пакет; сбой хранилища откатывает всё.
func (s *Service) BulkCreateCustomers(ctx context.Context, inputs []CreateCustomerInput) (BulkCreateResult, error) {
	var result BulkCreateResult
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		result = BulkCreateResult{
			Customers: make([]domain.Customer, 0, len(inputs)),
			Errors:    make([]domain.RecordError, 0),
		}
		for i, in := range inputs {
			c, err := s.createCustomer(ctx, repos, in.normalized())
			if err != nil {
				if !domain.IsValidation(err) {
					return err
				}
				result.Errors = append(result.Errors, domain.RecordError{Index: i + 1, Err: err})
				continue
			}
			result.Customers = append(result.Customers, c)
		}
		return nil
	})
	s.record("bulk_create_customers", err)
	if err != nil {
		s.logFailure("bulk_create_customers", err, log.Fields{"records": len(inputs)})
		return BulkCreateResult{}, fmt.Errorf("bulk create customers: %w", err)
	}

	s.metrics.RecordBulkRecords(len(result.Customers), len(result.Errors))
	s.logger.WithFields(log.Fields{
		"records": len(inputs),
		"created": len(result.Customers),
		"failed":  len(result.Errors),
	}).Info("bulk customer creation finished")
	return result, nil
}

// createCustomer выполняет проверки в порядке: уникальность email, формат телефона,
// ограничения полей. Вызывается внутри единицы работы.
func (s *Service) createCustomer(ctx context.Context, repos domain.Repositories, in CreateCustomerInput) (domain.Customer, error) {
	unique, err := domain.ValidateEmailUnique(ctx, repos.Customers, in.Email)
	if err != nil {
		return domain.Customer{}, err
	}
	if !unique {
		return domain.Customer{}, domain.ErrDuplicateEmail
	}
	if !domain.ValidatePhone(in.Phone) {
		return domain.Customer{}, domain.ErrInvalidPhoneFormat
	}
	if err := s.checkStruct(in); err != nil {
		return domain.Customer{}, err
	}

	customer := domain.Customer{
		ID:        s.newID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: s.now(),
	}
	if err := repos.Customers.Create(ctx, customer); err != nil {
		return domain.Customer{}, err
	}

	err = s.enqueueEvent(ctx, repos, "customer", customer.ID, domain.EventCustomerCreated, customerEvent{
		ID:        customer.ID,
		Name:      customer.Name,
		Email:     customer.Email,
		Phone:     customer.Phone,
		CreatedAt: customer.CreatedAt,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

type customerEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
