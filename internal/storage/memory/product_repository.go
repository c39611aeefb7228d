package memory

import (
	"context"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// productRepository — in-memory реализация ProductRepository.
type productRepository struct {
	store *Store
	inTx  bool
}

func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	defer r.store.acquire(r.inTx)()
	d := r.store.data

	if product.Stock < 0 {
		return domain.ErrInvalidStock
	}
	if _, exists := d.products[product.ID]; exists {
		return domain.NewStorageError("insert product", errDuplicateID)
	}
	d.products[product.ID] = row[domain.Product]{value: product, seq: d.next()}
	return nil
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	defer r.store.acquire(r.inTx)()

	rec, ok := r.store.data.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return rec.value, nil
}

// GetMany возвращает найденные товары в порядке запроса, пропуская повторы и отсутствующие.
func (r *productRepository) GetMany(_ context.Context, ids []string) ([]domain.Product, error) {
	defer r.store.acquire(r.inTx)()

	result := make([]domain.Product, 0, len(ids))
	for _, id := range domain.UniqueIDs(ids) {
		if rec, ok := r.store.data.products[id]; ok {
			result = append(result, rec.value)
		}
	}
	return result, nil
}

func (r *productRepository) List(_ context.Context, filter domain.ProductFilter, order domain.SortOrder) ([]domain.Product, error) {
	defer r.store.acquire(r.inTx)()

	predicates := filter.Predicates()
	result := make([]domain.Product, 0, len(r.store.data.products))
	for _, p := range ordered(r.store.data.products) {
		if domain.MatchAll(p, predicates) {
			result = append(result, p)
		}
	}
	domain.SortProducts(result, order)
	return result, nil
}

// Save обновляет остаток товара.
func (r *productRepository) Save(_ context.Context, product domain.Product) error {
	defer r.store.acquire(r.inTx)()
	d := r.store.data

	rec, ok := d.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.Stock < 0 {
		return domain.ErrInvalidStock
	}
	rec.value.Stock = product.Stock
	d.products[product.ID] = rec
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
