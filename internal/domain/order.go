package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Order связывает клиента с набором товаров.
type Order struct {
	ID         string
	CustomerID string
	// ProductIDs — множество товаров заказа без повторов.
	ProductIDs []string
	// OrderDate по умолчанию совпадает с моментом создания.
	OrderDate time.Time
	// TotalAmount всегда пересчитывается из текущих цен товаров, напрямую не задаётся.
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
}

// OrderDetails — заказ вместе с клиентом и товарами, как его отдаёт API.
type OrderDetails struct {
	Order
	Customer Customer
	Products []Product
}

// CalculateTotal суммирует цены переданных товаров. Для пустого набора возвращает ноль.
func CalculateTotal(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}

// HasProduct проверяет, входит ли товар в заказ.
func (o Order) HasProduct(productID string) bool {
	return slices.Contains(o.ProductIDs, productID)
}

// UniqueIDs убирает повторы, сохраняя порядок первого появления.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
