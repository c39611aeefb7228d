package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

// SeedResult описывает, что было создано при заполнении.
type SeedResult struct {
	Customers int
	Products  int
	Orders    int
	Skipped   bool
}

var (
	seedCustomers = []crm.CreateCustomerInput{
		{Name: "John Doe", Email: "john.doe@example.com", Phone: "+11234567890"},
		{Name: "Jane Smith", Email: "jane.smith@example.com", Phone: "123-456-7890"},
	}
	seedProducts = []struct {
		name, description, price string
		stock                    int
	}{
		{"Laptop", "A powerful laptop.", "1200.00", 15},
		{"Mouse", "A wireless mouse.", "25.00", 100},
		{"Keyboard", "A mechanical keyboard.", "75.00", 50},
	}
	// Заказы по индексам клиентов и товаров.
	seedOrders = []struct {
		customer int
		products []int
	}{
		{0, []int{0, 1}},
		{1, []int{2}},
	}
)

// Seed заполняет хранилище демонстрационными данными. При reset данные сначала удаляются;
// без reset заполнение пропускается, если клиенты уже есть.
func Seed(ctx context.Context, svc *crm.Service, resetter Resetter, reset bool, logger *log.Entry) (SeedResult, error) {
	if logger == nil {
		logger = log.WithField("component", "seed")
	}

	if reset {
		if resetter == nil {
			return SeedResult{}, fmt.Errorf("storage does not support reset")
		}
		if err := resetter.Reset(ctx); err != nil {
			return SeedResult{}, fmt.Errorf("reset storage: %w", err)
		}
		logger.Info("storage cleared")
	} else {
		stats, err := svc.ReportStats(ctx)
		if err != nil {
			return SeedResult{}, err
		}
		if stats.Customers > 0 {
			logger.WithField("customers", stats.Customers).Info("storage is not empty, seeding skipped")
			return SeedResult{Skipped: true}, nil
		}
	}

	var result SeedResult
	customerIDs := make([]string, 0, len(seedCustomers))
	for _, in := range seedCustomers {
		created, err := svc.CreateCustomer(ctx, in)
		if err != nil {
			return result, fmt.Errorf("seed customer %s: %w", in.Email, err)
		}
		customerIDs = append(customerIDs, created.Customer.ID)
		result.Customers++
	}

	productIDs := make([]string, 0, len(seedProducts))
	for _, p := range seedProducts {
		stock := p.stock
		product, err := svc.CreateProduct(ctx, crm.CreateProductInput{
			Name:        p.name,
			Description: p.description,
			Price:       decimal.RequireFromString(p.price),
			Stock:       &stock,
		})
		if err != nil {
			return result, fmt.Errorf("seed product %s: %w", p.name, err)
		}
		productIDs = append(productIDs, product.ID)
		result.Products++
	}

	for _, o := range seedOrders {
		ids := make([]string, 0, len(o.products))
		for _, idx := range o.products {
			ids = append(ids, productIDs[idx])
		}
		order, err := svc.CreateOrder(ctx, crm.CreateOrderInput{CustomerID: customerIDs[o.customer], ProductIDs: ids})
		if err != nil {
			return result, fmt.Errorf("seed order: %w", err)
		}
		logger.WithFields(log.Fields{
			"order_id":     order.ID,
			"total_amount": order.TotalAmount.StringFixed(2),
		}).Debug("order seeded")
		result.Orders++
	}

	logger.WithFields(log.Fields{
		"customers": result.Customers,
		"products":  result.Products,
		"orders":    result.Orders,
	}).Info("database seeded")
	return result, nil
}
