package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	store *Store
	inTx  bool
}

// Create сохраняет заказ без товаров; клиент обязан существовать.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	defer r.store.acquire(r.inTx)()
	d := r.store.data

	if _, ok := d.customers[order.CustomerID]; !ok {
		return domain.ErrCustomerNotFound
	}
	if _, exists := d.orders[order.ID]; exists {
		return domain.NewStorageError("insert order", errDuplicateID)
	}
	order.ProductIDs = nil
	d.orders[order.ID] = row[domain.Order]{value: order, seq: d.next()}
	return nil
}

// SetProducts заменяет набор товаров заказа новым срезом.
func (r *orderRepository) SetProducts(_ context.Context, orderID string, productIDs []string) error {
	defer r.store.acquire(r.inTx)()
	d := r.store.data

	rec, ok := d.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	ids := domain.UniqueIDs(productIDs)
	for _, id := range ids {
		if _, exists := d.products[id]; !exists {
			return domain.ErrInvalidProductID
		}
	}
	rec.value.ProductIDs = ids
	d.orders[orderID] = rec
	return nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	defer r.store.acquire(r.inTx)()

	rec, ok := r.store.data.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(rec.value), nil
}

func (r *orderRepository) List(_ context.Context, filter domain.OrderFilter, order domain.SortOrder) ([]domain.OrderDetails, error) {
	defer r.store.acquire(r.inTx)()

	predicates := filter.Predicates()
	result := make([]domain.OrderDetails, 0, len(r.store.data.orders))
	for _, o := range ordered(r.store.data.orders) {
		details := r.details(o)
		if domain.MatchAll(details, predicates) {
			result = append(result, details)
		}
	}
	domain.SortOrders(result, order)
	return result, nil
}

// ListPlacedSince возвращает заказы с order_date >= since по возрастанию даты.
func (r *orderRepository) ListPlacedSince(_ context.Context, since time.Time) ([]domain.OrderDetails, error) {
	defer r.store.acquire(r.inTx)()

	result := make([]domain.OrderDetails, 0)
	for _, o := range ordered(r.store.data.orders) {
		if o.OrderDate.Before(since) {
			continue
		}
		result = append(result, r.details(o))
	}
	domain.SortOrders(result, domain.SortOrder{Field: "order_date"})
	return result, nil
}

// Save обновляет дату и сумму заказа.
func (r *orderRepository) Save(_ context.Context, order domain.Order) error {
	defer r.store.acquire(r.inTx)()
	d := r.store.data

	rec, ok := d.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	rec.value.OrderDate = order.OrderDate
	rec.value.TotalAmount = order.TotalAmount
	d.orders[order.ID] = rec
	return nil
}

func (r *orderRepository) Count(context.Context) (int, error) {
	defer r.store.acquire(r.inTx)()
	return len(r.store.data.orders), nil
}

// TotalRevenue суммирует total_amount всех заказов.
func (r *orderRepository) TotalRevenue(context.Context) (decimal.Decimal, error) {
	defer r.store.acquire(r.inTx)()

	total := decimal.Zero
	for _, rec := range r.store.data.orders {
		total = total.Add(rec.value.TotalAmount)
	}
	return total, nil
}

// details разворачивает заказ: клиент и товары в порядке их создания.
// Вызывается под блокировкой.
func (r *orderRepository) details(o domain.Order) domain.OrderDetails {
	d := r.store.data
	out := domain.OrderDetails{Order: cloneOrder(o)}
	if c, ok := d.customers[o.CustomerID]; ok {
		out.Customer = c.value
	}

	recs := make([]row[domain.Product], 0, len(o.ProductIDs))
	for _, id := range o.ProductIDs {
		if p, ok := d.products[id]; ok {
			recs = append(recs, p)
		}
	}
	slices.SortFunc(recs, func(a, b row[domain.Product]) int { return cmp.Compare(a.seq, b.seq) })
	out.Products = make([]domain.Product, len(recs))
	for i, rec := range recs {
		out.Products[i] = rec.value
	}
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	o.ProductIDs = slices.Clone(o.ProductIDs)
	return o
}

var _ domain.OrderRepository = (*orderRepository)(nil)
