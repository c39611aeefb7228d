package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerRepository описывает требования к хранилищу клиентов.
// Уникальность email хранилище обязано обеспечивать само, независимо от сервиса.
type CustomerRepository interface {
	// Create сохраняет клиента. Возвращает ErrDuplicateEmail при конфликте email.
	Create(ctx context.Context, customer Customer) error
	// Get возвращает клиента или ErrCustomerNotFound.
	Get(ctx context.Context, id string) (Customer, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, filter CustomerFilter, order SortOrder) ([]Customer, error)
	Count(ctx context.Context) (int, error)
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// GetMany возвращает только существующие товары, без повторов.
	GetMany(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context, filter ProductFilter, order SortOrder) ([]Product, error)
	// Save обновляет изменяемые поля товара (остаток).
	Save(ctx context.Context, product Product) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ без товаров. Возвращает ErrCustomerNotFound, если клиента нет.
	Create(ctx context.Context, order Order) error
	// SetProducts заменяет набор товаров заказа.
	SetProducts(ctx context.Context, orderID string, productIDs []string) error
	// Get возвращает заказ или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, filter OrderFilter, order SortOrder) ([]OrderDetails, error)
	// ListPlacedSince возвращает заказы с order_date не раньше since.
	ListPlacedSince(ctx context.Context, since time.Time) ([]OrderDetails, error)
	// Save обновляет order_date и total_amount.
	Save(ctx context.Context, order Order) error
	Count(ctx context.Context) (int, error)
	TotalRevenue(ctx context.Context) (decimal.Decimal, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// Repositories — набор репозиториев, доступных внутри одной единицы работы.
type Repositories struct {
	Customers CustomerRepository
	Products  ProductRepository
	Orders    OrderRepository
	Outbox    OutboxRepository
}

// UnitOfWork выполняет fn атомарно: при ошибке ни одна запись не сохраняется.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Типы доменных событий для outbox.
const (
	EventCustomerCreated  = "customer.created"
	EventProductCreated   = "product.created"
	EventProductRestocked = "product.restocked"
	EventOrderCreated     = "order.created"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
