package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const productColumns = `id, name, description, price, stock, created_at`

var productSortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"price":      "price",
	"stock":      "stock",
	"created_at": "created_at",
}

type productRepository struct {
	q querier
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, product.ID, product.Name, product.Description, product.Price, product.Stock, product.CreatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInvalidInput
		}
		return domain.NewStorageError("insert product", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	p, err := scanProduct(r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, domain.NewStorageError("get product", err)
	}
	return p, nil
}

// GetMany возвращает найденные товары в порядке создания.
func (r *productRepository) GetMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	ids = domain.UniqueIDs(ids)
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var w whereBuilder
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + w.in(ids) + `) ORDER BY created_at, id`
	return r.query(ctx, "get products", query, w.args...)
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter, order domain.SortOrder) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var w whereBuilder
	if filter.NameContains != "" {
		w.add("strpos(lower(name), lower(%s)) > 0", filter.NameContains)
	}
	if filter.PriceGTE != nil {
		w.add("price >= %s", *filter.PriceGTE)
	}
	if filter.PriceLTE != nil {
		w.add("price <= %s", *filter.PriceLTE)
	}
	if filter.StockGTE != nil {
		w.add("stock >= %s", *filter.StockGTE)
	}
	if filter.StockLTE != nil {
		w.add("stock <= %s", *filter.StockLTE)
	}
	if filter.Stock != nil {
		w.add("stock = %s", *filter.Stock)
	}
	if filter.LowStock {
		w.add("stock < %s", domain.LowStockThreshold)
	}

	query := `SELECT ` + productColumns + ` FROM products` + w.clause() +
		orderByClause(order, productSortColumns, "created_at, id")
	return r.query(ctx, "list products", query, w.args...)
}

// Save обновляет остаток товара.
func (r *productRepository) Save(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, product.ID, product.Stock)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInvalidStock
		}
		return domain.NewStorageError("update product", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("update product rows affected", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) query(ctx context.Context, op, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan product", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	return result, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
