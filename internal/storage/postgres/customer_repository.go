package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const customerColumns = `id, name, email, phone, created_at`

var customerSortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"email":      "email",
	"phone":      "phone",
	"created_at": "created_at",
}

type customerRepository struct {
	q querier
}

// Create вставляет клиента. Конфликт по email не прерывает транзакцию:
// ON CONFLICT DO NOTHING, а отсутствие вставленной строки означает дубликат.
func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, customer.ID, customer.Name, customer.Email, customer.Phone, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return domain.NewStorageError("insert customer", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("insert customer rows affected", err)
	}
	if affected == 0 {
		return domain.ErrDuplicateEmail
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	c, err := scanCustomer(r.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	if err != nil {
		return domain.Customer{}, domain.NewStorageError("get customer", err)
	}
	return c, nil
}

func (r *customerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, domain.NewStorageError("check customer email", err)
	}
	return exists, nil
}

func (r *customerRepository) List(ctx context.Context, filter domain.CustomerFilter, order domain.SortOrder) ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var w whereBuilder
	if filter.NameContains != "" {
		w.add("strpos(lower(name), lower(%s)) > 0", filter.NameContains)
	}
	if filter.EmailContains != "" {
		w.add("strpos(lower(email), lower(%s)) > 0", filter.EmailContains)
	}
	if filter.CreatedAtGTE != nil {
		w.add("created_at >= %s", *filter.CreatedAtGTE)
	}
	if filter.CreatedAtLTE != nil {
		w.add("created_at <= %s", *filter.CreatedAtLTE)
	}
	if filter.PhonePrefix != "" {
		w.add("starts_with(phone, %s)", filter.PhonePrefix)
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + w.clause() +
		orderByClause(order, customerSortColumns, "created_at, id")
	rows, err := r.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, domain.NewStorageError("list customers", err)
	}
	defer rows.Close()

	result := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan customer", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate customers", err)
	}
	return result, nil
}

func (r *customerRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return 0, domain.NewStorageError("count customers", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
