package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

var orderSortColumns = map[string]string{
	"id":           "o.id",
	"order_date":   "o.order_date",
	"total_amount": "o.total_amount",
	"created_at":   "o.created_at",
}

type orderRepository struct {
	q querier
}

// Create вставляет заказ без товаров. Нарушение внешнего ключа означает неизвестного клиента.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, order_date, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, order.ID, order.CustomerID, order.OrderDate, order.TotalAmount, order.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrCustomerNotFound
		}
		return domain.NewStorageError("insert order", err)
	}
	return nil
}

// SetProducts заменяет строки order_products для заказа.
func (r *orderRepository) SetProducts(ctx context.Context, orderID string, productIDs []string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return domain.NewStorageError("check order exists", err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM order_products WHERE order_id = $1`, orderID); err != nil {
		return domain.NewStorageError("clear order products", err)
	}
	for _, productID := range domain.UniqueIDs(productIDs) {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO order_products (order_id, product_id) VALUES ($1, $2)
		`, orderID, productID); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrInvalidProductID
			}
			return domain.NewStorageError("insert order product", err)
		}
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var o domain.Order
	err := r.q.QueryRowContext(ctx, `
		SELECT id, customer_id, order_date, total_amount, created_at
		FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.TotalAmount, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, domain.NewStorageError("get order", err)
	}
	o.OrderDate = o.OrderDate.UTC()
	o.CreatedAt = o.CreatedAt.UTC()

	products, err := r.loadProducts(ctx, []string{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	for _, p := range products[o.ID] {
		o.ProductIDs = append(o.ProductIDs, p.ID)
	}
	return o, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter, order domain.SortOrder) ([]domain.OrderDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var w whereBuilder
	if filter.CustomerNameContains != "" {
		w.add("strpos(lower(c.name), lower(%s)) > 0", filter.CustomerNameContains)
	}
	if filter.ProductNameContains != "" {
		w.add(`EXISTS (
			SELECT 1 FROM order_products op JOIN products p ON p.id = op.product_id
			WHERE op.order_id = o.id AND strpos(lower(p.name), lower(%s)) > 0)`, filter.ProductNameContains)
	}
	if filter.ProductID != "" {
		w.add("EXISTS (SELECT 1 FROM order_products op WHERE op.order_id = o.id AND op.product_id = %s)", filter.ProductID)
	}
	if filter.TotalAmountGTE != nil {
		w.add("o.total_amount >= %s", *filter.TotalAmountGTE)
	}
	if filter.TotalAmountLTE != nil {
		w.add("o.total_amount <= %s", *filter.TotalAmountLTE)
	}
	if filter.OrderDateGTE != nil {
		w.add("o.order_date >= %s", *filter.OrderDateGTE)
	}
	if filter.OrderDateLTE != nil {
		w.add("o.order_date <= %s", *filter.OrderDateLTE)
	}

	return r.listDetails(ctx, w, orderByClause(order, orderSortColumns, "o.created_at, o.id"))
}

// ListPlacedSince возвращает заказы с order_date >= since по возрастанию даты.
func (r *orderRepository) ListPlacedSince(ctx context.Context, since time.Time) ([]domain.OrderDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var w whereBuilder
	w.add("o.order_date >= %s", since)
	return r.listDetails(ctx, w, " ORDER BY o.order_date, o.created_at, o.id")
}

// Save обновляет дату и сумму заказа.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE orders SET order_date = $2, total_amount = $3 WHERE id = $1
	`, order.ID, order.OrderDate, order.TotalAmount)
	if err != nil {
		return domain.NewStorageError("update order", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("update order rows affected", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, domain.NewStorageError("count orders", err)
	}
	return n, nil
}

func (r *orderRepository) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total decimal.Decimal
	if err := r.q.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM orders`).Scan(&total); err != nil {
		return decimal.Zero, domain.NewStorageError("sum order revenue", err)
	}
	return total, nil
}

// listDetails читает заказы вместе с клиентами, затем одним запросом подгружает товары.
// Товары читаются после закрытия первого курсора: внутри транзакции одно соединение.
func (r *orderRepository) listDetails(ctx context.Context, w whereBuilder, orderBy string) ([]domain.OrderDetails, error) {
	query := `
		SELECT o.id, o.customer_id, o.order_date, o.total_amount, o.created_at,
		       c.id, c.name, c.email, c.phone, c.created_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id` + w.clause() + orderBy

	rows, err := r.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, domain.NewStorageError("list orders", err)
	}

	result := make([]domain.OrderDetails, 0)
	for rows.Next() {
		var d domain.OrderDetails
		if err := rows.Scan(
			&d.ID, &d.CustomerID, &d.OrderDate, &d.TotalAmount, &d.Order.CreatedAt,
			&d.Customer.ID, &d.Customer.Name, &d.Customer.Email, &d.Customer.Phone, &d.Customer.CreatedAt,
		); err != nil {
			_ = rows.Close()
			return nil, domain.NewStorageError("scan order", err)
		}
		d.OrderDate = d.OrderDate.UTC()
		d.Order.CreatedAt = d.Order.CreatedAt.UTC()
		d.Customer.CreatedAt = d.Customer.CreatedAt.UTC()
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, domain.NewStorageError("iterate orders", err)
	}
	_ = rows.Close()

	if len(result) == 0 {
		return result, nil
	}

	ids := make([]string, len(result))
	for i := range result {
		ids[i] = result[i].ID
	}
	products, err := r.loadProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Products = products[result[i].ID]
		result[i].ProductIDs = make([]string, 0, len(result[i].Products))
		for _, p := range result[i].Products {
			result[i].ProductIDs = append(result[i].ProductIDs, p.ID)
		}
	}
	return result, nil
}

// loadProducts возвращает товары заказов, сгруппированные по order_id.
func (r *orderRepository) loadProducts(ctx context.Context, orderIDs []string) (map[string][]domain.Product, error) {
	var w whereBuilder
	query := `
		SELECT op.order_id, p.id, p.name, p.description, p.price, p.stock, p.created_at
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id IN (` + w.in(orderIDs) + `)
		ORDER BY p.created_at, p.id`

	rows, err := r.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, domain.NewStorageError("load order products", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.Product, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			p       domain.Product
		)
		if err := rows.Scan(&orderID, &p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
			return nil, domain.NewStorageError("scan order product", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		result[orderID] = append(result[orderID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate order products", err)
	}
	return result, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
