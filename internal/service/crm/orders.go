package crm

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// CreateOrderInput — данные для создания заказа.
type CreateOrderInput struct {
	CustomerID string   `json:"customer_id"`
	ProductIDs []string `json:"product_ids"`
	// OrderDate переопределяет дату заказа; по умолчанию — момент создания.
	OrderDate *time.Time `json:"order_date,omitempty"`
}

// CreateOrder создаёт заказ, привязывает товары и пересчитывает сумму атомарно:
// заказ без товаров или без верной суммы никогда не становится видимым.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.OrderDetails, error) {
	in.CustomerID = strings.TrimSpace(in.CustomerID)

	var details domain.OrderDetails
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		customer, err := repos.Customers.Get(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if len(in.ProductIDs) == 0 {
			return domain.ErrEmptyProductList
		}

		ids := domain.UniqueIDs(in.ProductIDs)
		products, err := repos.Products.GetMany(ctx, ids)
		if err != nil {
			return err
		}
		// Повтор id тоже считается ошибкой: найденных товаров меньше, чем запрошено.
		if len(products) != len(in.ProductIDs) {
			return domain.ErrInvalidProductID
		}

		now := s.now()
		order := domain.Order{
			ID:         s.newID(),
			CustomerID: customer.ID,
			OrderDate:  now,
			CreatedAt:  now,
		}
		if in.OrderDate != nil {
			order.OrderDate = in.OrderDate.UTC()
		}
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}
		if err := repos.Orders.SetProducts(ctx, order.ID, ids); err != nil {
			return err
		}

		order, products, err = s.updateTotalAmount(ctx, repos, order.ID)
		if err != nil {
			return err
		}

		err = s.enqueueEvent(ctx, repos, "order", order.ID, domain.EventOrderCreated, orderEvent{
			ID:          order.ID,
			CustomerID:  order.CustomerID,
			ProductIDs:  order.ProductIDs,
			OrderDate:   order.OrderDate,
			TotalAmount: order.TotalAmount.StringFixed(2),
		})
		if err != nil {
			return err
		}

		details = domain.OrderDetails{Order: order, Customer: customer, Products: products}
		return nil
	})
	s.record("create_order", err)
	if err != nil {
		s.logFailure("create_order", err, log.Fields{
			"customer_id": in.CustomerID,
			"products":    len(in.ProductIDs),
		})
		return domain.OrderDetails{}, err
	}

	total, _ := details.TotalAmount.Float64()
	s.metrics.ObserveOrderTotal(total)
	s.logger.WithFields(log.Fields{
		"order_id":     details.ID,
		"customer_id":  details.CustomerID,
		"total_amount": details.TotalAmount.StringFixed(2),
	}).Info("order created")
	return details, nil
}

// UpdateTotalAmount пересчитывает сумму заказа по текущим ценам привязанных товаров.
// Безопасно вызывать в любой момент после изменения цен или состава заказа.
func (s *Service) UpdateTotalAmount(ctx context.Context, orderID string) (domain.OrderDetails, error) {
	var details domain.OrderDetails
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		order, products, err := s.updateTotalAmount(ctx, repos, orderID)
		if err != nil {
			return err
		}
		customer, err := repos.Customers.Get(ctx, order.CustomerID)
		if err != nil {
			return err
		}
		details = domain.OrderDetails{Order: order, Customer: customer, Products: products}
		return nil
	})
	s.record("update_total_amount", err)
	if err != nil {
		s.logFailure("update_total_amount", err, log.Fields{"order_id": orderID})
		return domain.OrderDetails{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":     details.ID,
		"total_amount": details.TotalAmount.StringFixed(2),
	}).Debug("order total recalculated")
	return details, nil
}

// updateTotalAmount — шаг агрегации: сумма всегда выводится из живого набора товаров.
func (s *Service) updateTotalAmount(ctx context.Context, repos domain.Repositories, orderID string) (domain.Order, []domain.Product, error) {
	order, err := repos.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	products, err := repos.Products.GetMany(ctx, order.ProductIDs)
	if err != nil {
		return domain.Order{}, nil, err
	}

	order.TotalAmount = domain.CalculateTotal(products)
	if err := repos.Orders.Save(ctx, order); err != nil {
		return domain.Order{}, nil, err
	}
	return order, products, nil
}

type orderEvent struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	ProductIDs  []string  `json:"product_ids"`
	OrderDate   time.Time `json:"order_date"`
	TotalAmount string    `json:"total_amount"`
}
