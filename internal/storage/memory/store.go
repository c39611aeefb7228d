package memory

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

var errDuplicateID = errors.New("record with this id already exists")

// row хранит сущность вместе с порядковым номером вставки.
type row[T any] struct {
	value T
	seq   int64
}

// dataset — всё состояние in-memory хранилища.
type dataset struct {
	seq       int64
	customers map[string]row[domain.Customer]
	// emails индексирует клиентов по email для проверки уникальности.
	emails   map[string]string
	products map[string]row[domain.Product]
	orders   map[string]row[domain.Order]
	outbox   map[string]row[outboxRecord]
}

func newDataset() *dataset {
	return &dataset{
		customers: make(map[string]row[domain.Customer]),
		emails:    make(map[string]string),
		products:  make(map[string]row[domain.Product]),
		orders:    make(map[string]row[domain.Order]),
		outbox:    make(map[string]row[outboxRecord]),
	}
}

func (d *dataset) next() int64 {
	d.seq++
	return d.seq
}

// clone делает снимок для отката. Срезы ProductIDs не меняются на месте,
// поэтому достаточно копировать карты.
func (d *dataset) clone() *dataset {
	return &dataset{
		seq:       d.seq,
		customers: maps.Clone(d.customers),
		emails:    maps.Clone(d.emails),
		products:  maps.Clone(d.products),
		orders:    maps.Clone(d.orders),
		outbox:    maps.Clone(d.outbox),
	}
}

// Store — in-memory хранилище CRM для локальной разработки и тестов.
// Одна мьютекс-блокировка сериализует все операции, а Do даёт атомарность через снимок.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Repositories возвращает репозитории вне транзакции; каждая операция берёт блокировку сама.
func (s *Store) Repositories() domain.Repositories {
	return s.views(false)
}

// Do выполняет fn под блокировкой. Если fn вернула ошибку, состояние откатывается к снимку.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, s.views(true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Reset удаляет все данные.
func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newDataset()
	return nil
}

// Ping всегда успешен: in-memory хранилище не требует подключения.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close ничего не освобождает.
func (s *Store) Close() error {
	return nil
}

func (s *Store) views(inTx bool) domain.Repositories {
	return domain.Repositories{
		Customers: &customerRepository{store: s, inTx: inTx},
		Products:  &productRepository{store: s, inTx: inTx},
		Orders:    &orderRepository{store: s, inTx: inTx},
		Outbox:    &outboxRepository{store: s, inTx: inTx},
	}
}

// acquire берёт блокировку, если вызов происходит вне Do.
func (s *Store) acquire(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

var _ domain.UnitOfWork = (*Store)(nil)
