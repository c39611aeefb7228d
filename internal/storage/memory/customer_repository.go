package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// customerRepository — in-memory реализация CustomerRepository.
type customerRepository struct {
	store *Store
	inTx  bool
}

// Create сохраняет клиента; email должен быть уникален.
func (r *customerRepository) Create(_ context.Context, customer domain.Customer) error {
	defer r.store.acquire(r.inTx)()
	d := r.store.data

	if _, exists := d.emails[customer.Email]; exists {
		return domain.ErrDuplicateEmail
	}
	if _, exists := d.customers[customer.ID]; exists {
		return domain.NewStorageError("insert customer", errDuplicateID)
	}
	d.customers[customer.ID] = row[domain.Customer]{value: customer, seq: d.next()}
	d.emails[customer.Email] = customer.ID
	return nil
}

// Get возвращает клиента или ErrCustomerNotFound.
func (r *customerRepository) Get(_ context.Context, id string) (domain.Customer, error) {
	defer r.store.acquire(r.inTx)()

	rec, ok := r.store.data.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return rec.value, nil
}

func (r *customerRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	defer r.store.acquire(r.inTx)()

	_, exists := r.store.data.emails[email]
	return exists, nil
}

// List возвращает клиентов в порядке создания, затем применяет фильтр и сортировку.
func (r *customerRepository) List(_ context.Context, filter domain.CustomerFilter, order domain.SortOrder) ([]domain.Customer, error) {
	defer r.store.acquire(r.inTx)()

	predicates := filter.Predicates()
	result := make([]domain.Customer, 0, len(r.store.data.customers))
	for _, c := range ordered(r.store.data.customers) {
		if domain.MatchAll(c, predicates) {
			result = append(result, c)
		}
	}
	domain.SortCustomers(result, order)
	return result, nil
}

func (r *customerRepository) Count(context.Context) (int, error) {
	defer r.store.acquire(r.inTx)()
	return len(r.store.data.customers), nil
}

// ordered возвращает значения карты в порядке вставки.
func ordered[T any](items map[string]row[T]) []T {
	rows := make([]row[T], 0, len(items))
	for _, rec := range items {
		rows = append(rows, rec)
	}
	slices.SortFunc(rows, func(a, b row[T]) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]T, len(rows))
	for i, rec := range rows {
		out[i] = rec.value
	}
	return out
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
