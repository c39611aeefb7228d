package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortOrder — разобранный параметр order_by.
type SortOrder struct {
	Field string
	Desc  bool
}

// IsZero сообщает, что сортировка не задана.
func (s SortOrder) IsZero() bool {
	return s.Field == ""
}

// Поля, по которым разрешена сортировка.
var (
	CustomerSortFields = []string{"id", "name", "email", "phone", "created_at"}
	ProductSortFields  = []string{"id", "name", "price", "stock", "created_at"}
	OrderSortFields    = []string{"id", "order_date", "total_amount", "created_at"}
)

// ParseOrderBy разбирает строку вида "name" или "-name".
// Пустая строка означает сортировку по умолчанию.
func ParseOrderBy(raw string, allowed []string) (SortOrder, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SortOrder{}, nil
	}
	order := SortOrder{Field: raw}
	if strings.HasPrefix(raw, "-") {
		order = SortOrder{Field: strings.TrimPrefix(raw, "-"), Desc: true}
	}
	if !slices.Contains(allowed, order.Field) {
		return SortOrder{}, fmt.Errorf("%w: %q", ErrInvalidOrderBy, raw)
	}
	return order, nil
}

// SortCustomers стабильно сортирует клиентов по заданному полю.
func SortCustomers(items []Customer, order SortOrder) {
	if order.IsZero() {
		return
	}
	slices.SortStableFunc(items, func(a, b Customer) int {
		var c int
		switch order.Field {
		case "id":
			c = cmp.Compare(a.ID, b.ID)
		case "name":
			c = cmp.Compare(a.Name, b.Name)
		case "email":
			c = cmp.Compare(a.Email, b.Email)
		case "phone":
			c = cmp.Compare(a.Phone, b.Phone)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		return direction(c, order.Desc)
	})
}

// SortProducts стабильно сортирует товары по заданному полю.
func SortProducts(items []Product, order SortOrder) {
	if order.IsZero() {
		return
	}
	slices.SortStableFunc(items, func(a, b Product) int {
		var c int
		switch order.Field {
		case "id":
			c = cmp.Compare(a.ID, b.ID)
		case "name":
			c = cmp.Compare(a.Name, b.Name)
		case "price":
			c = a.Price.Cmp(b.Price)
		case "stock":
			c = cmp.Compare(a.Stock, b.Stock)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		return direction(c, order.Desc)
	})
}

// SortOrders стабильно сортирует заказы по заданному полю.
func SortOrders(items []OrderDetails, order SortOrder) {
	if order.IsZero() {
		return
	}
	slices.SortStableFunc(items, func(a, b OrderDetails) int {
		var c int
		switch order.Field {
		case "id":
			c = cmp.Compare(a.ID, b.ID)
		case "order_date":
			c = a.OrderDate.Compare(b.OrderDate)
		case "total_amount":
			c = a.TotalAmount.Cmp(b.TotalAmount)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		return direction(c, order.Desc)
	})
}

func direction(c int, desc bool) int {
	if desc {
		return -c
	}
	return c
}
