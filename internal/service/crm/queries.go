package crm

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// ReminderWindow — глубина выборки заказов для напоминаний.
const ReminderWindow = 7 * 24 * time.Hour

// AllCustomers возвращает клиентов по фильтру; order_by проверяется до обращения к хранилищу.
func (s *Service) AllCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	order, err := domain.ParseOrderBy(filter.OrderBy, domain.CustomerSortFields)
	if err != nil {
		return nil, err
	}
	return s.repos.Customers.List(ctx, filter, order)
}

// AllProducts возвращает товары по фильтру.
func (s *Service) AllProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	order, err := domain.ParseOrderBy(filter.OrderBy, domain.ProductSortFields)
	if err != nil {
		return nil, err
	}
	return s.repos.Products.List(ctx, filter, order)
}

// AllOrders возвращает заказы с клиентами и товарами, без повторов.
func (s *Service) AllOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderDetails, error) {
	order, err := domain.ParseOrderBy(filter.OrderBy, domain.OrderSortFields)
	if err != nil {
		return nil, err
	}
	return s.repos.Orders.List(ctx, filter, order)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	return s.repos.Customers.Get(ctx, id)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.repos.Products.Get(ctx, id)
}

// GetOrder возвращает заказ вместе с клиентом и товарами.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.OrderDetails, error) {
	order, err := s.repos.Orders.Get(ctx, id)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	customer, err := s.repos.Customers.Get(ctx, order.CustomerID)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	products, err := s.repos.Products.GetMany(ctx, order.ProductIDs)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	return domain.OrderDetails{Order: order, Customer: customer, Products: products}, nil
}

// ReportStats собирает число клиентов, заказов и суммарную выручку.
func (s *Service) ReportStats(ctx context.Context) (domain.ReportStats, error) {
	customers, err := s.repos.Customers.Count(ctx)
	if err != nil {
		return domain.ReportStats{}, err
	}
	orders, err := s.repos.Orders.Count(ctx)
	if err != nil {
		return domain.ReportStats{}, err
	}
	revenue, err := s.repos.Orders.TotalRevenue(ctx)
	if err != nil {
		return domain.ReportStats{}, err
	}
	return domain.ReportStats{Customers: customers, Orders: orders, Revenue: revenue}, nil
}

// RecentOrders возвращает заказы, оформленные за последние ReminderWindow.
func (s *Service) RecentOrders(ctx context.Context) ([]domain.OrderDetails, error) {
	return s.repos.Orders.ListPlacedSince(ctx, s.now().Add(-ReminderWindow))
}
