package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// CreateProductInput — данные для создания товара.
type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	// Stock по умолчанию 0.
	Stock *int `json:"stock,omitempty"`
}

// RestockResult — итог пополнения заканчивающихся товаров.
type RestockResult struct {
	Products []domain.Product
	Message  string
	Count    int
}

// CreateProduct проверяет цену, остаток и поля, затем сохраняет товар.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)

	var created domain.Product
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		p, err := s.createProduct(ctx, repos, in)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	s.record("create_product", err)
	if err != nil {
		s.logFailure("create_product", err, log.Fields{"name": in.Name})
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"price":      created.Price.StringFixed(2),
		"stock":      created.Stock,
	}).Info("product created")
	return created, nil
}

func (s *Service) createProduct(ctx context.Context, repos domain.Repositories, in CreateProductInput) (domain.Product, error) {
	if !domain.ValidatePrice(in.Price) {
		return domain.Product{}, domain.ErrInvalidPrice
	}
	stock := 0
	if in.Stock != nil {
		stock = *in.Stock
	}
	if !domain.ValidateStock(stock) {
		return domain.Product{}, domain.ErrInvalidStock
	}
	if err := s.checkStruct(in); err != nil {
		return domain.Product{}, err
	}
	if !domain.ValidatePriceScale(in.Price) {
		return domain.Product{}, fmt.Errorf("%w: price must have at most %d decimal places and %d integer digits",
			domain.ErrInvalidInput, domain.PriceScale, domain.MaxPriceIntDigits)
	}

	product := domain.Product{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       stock,
		CreatedAt:   s.now(),
	}
	if err := repos.Products.Create(ctx, product); err != nil {
		return domain.Product{}, err
	}

	err := s.enqueueEvent(ctx, repos, "product", product.ID, domain.EventProductCreated, productEvent{
		ID:        product.ID,
		Name:      product.Name,
		Price:     product.Price.StringFixed(2),
		Stock:     product.Stock,
		CreatedAt: product.CreatedAt,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// UpdateLowStockProducts пополняет все товары с остатком ниже порога в одной транзакции.
// Повторный вызов сразу после успешного не найдёт этих товаров: их остаток уже не ниже порога.
func (s *Service) UpdateLowStockProducts(ctx context.Context) (RestockResult, error) {
	var updated []domain.Product
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		low, err := repos.Products.List(ctx, domain.ProductFilter{LowStock: true}, domain.SortOrder{})
		if err != nil {
			return err
		}

		updated = make([]domain.Product, 0, len(low))
		for _, p := range low {
			previous := p.Stock
			p.Restock()
			if err := repos.Products.Save(ctx, p); err != nil {
				return err
			}
			updated = append(updated, p)

			err := s.enqueueEvent(ctx, repos, "product", p.ID, domain.EventProductRestocked, restockEvent{
				ID:            p.ID,
				Name:          p.Name,
				PreviousStock: previous,
				Stock:         p.Stock,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	s.record("update_low_stock_products", err)
	if err != nil {
		s.logFailure("update_low_stock_products", err, nil)
		return RestockResult{}, fmt.Errorf("failed to update low-stock products: %w", err)
	}

	s.metrics.RecordRestocked(len(updated))
	s.logger.WithField("count", len(updated)).Info("low-stock products replenished")
	return RestockResult{
		Products: updated,
		Message:  fmt.Sprintf("Successfully updated %d low-stock products", len(updated)),
		Count:    len(updated),
	}, nil
}

type productEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
}

type restockEvent struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PreviousStock int    `json:"previous_stock"`
	Stock         int    `json:"stock"`
}
