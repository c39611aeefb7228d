package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Predicate проверяет одну сущность на соответствие условию фильтра.
type Predicate[T any] func(T) bool

// MatchAll применяет все предикаты конъюнктивно. Пустой набор пропускает всё.
func MatchAll[T any](item T, predicates map[string]Predicate[T]) bool {
	for _, p := range predicates {
		if !p(item) {
			return false
		}
	}
	return true
}

// CustomerFilter задаёт необязательные условия выборки клиентов.
// Нулевые значения полей означают «условие не задано».
type CustomerFilter struct {
	NameContains  string
	EmailContains string
	CreatedAtGTE  *time.Time
	CreatedAtLTE  *time.Time
	// PhonePrefix соответствует phone_pattern: телефон начинается с указанной строки.
	PhonePrefix string
	OrderBy     string
}

// Predicates строит карту поле → предикат только для заданных условий.
func (f CustomerFilter) Predicates() map[string]Predicate[Customer] {
	out := make(map[string]Predicate[Customer])
	if f.NameContains != "" {
		out["name"] = func(c Customer) bool { return containsFold(c.Name, f.NameContains) }
	}
	if f.EmailContains != "" {
		out["email"] = func(c Customer) bool { return containsFold(c.Email, f.EmailContains) }
	}
	if f.CreatedAtGTE != nil {
		from := *f.CreatedAtGTE
		out["created_at_gte"] = func(c Customer) bool { return !c.CreatedAt.Before(from) }
	}
	if f.CreatedAtLTE != nil {
		to := *f.CreatedAtLTE
		out["created_at_lte"] = func(c Customer) bool { return !c.CreatedAt.After(to) }
	}
	if f.PhonePrefix != "" {
		out["phone_pattern"] = func(c Customer) bool { return strings.HasPrefix(c.Phone, f.PhonePrefix) }
	}
	return out
}

// ProductFilter задаёт необязательные условия выборки товаров.
type ProductFilter struct {
	NameContains string
	PriceGTE     *decimal.Decimal
	PriceLTE     *decimal.Decimal
	StockGTE     *int
	StockLTE     *int
	Stock        *int
	// LowStock оставляет товары с остатком ниже LowStockThreshold.
	LowStock bool
	OrderBy  string
}

// Predicates строит карту поле → предикат только для заданных условий.
func (f ProductFilter) Predicates() map[string]Predicate[Product] {
	out := make(map[string]Predicate[Product])
	if f.NameContains != "" {
		out["name"] = func(p Product) bool { return containsFold(p.Name, f.NameContains) }
	}
	if f.PriceGTE != nil {
		v := *f.PriceGTE
		out["price_gte"] = func(p Product) bool { return p.Price.GreaterThanOrEqual(v) }
	}
	if f.PriceLTE != nil {
		v := *f.PriceLTE
		out["price_lte"] = func(p Product) bool { return p.Price.LessThanOrEqual(v) }
	}
	if f.StockGTE != nil {
		v := *f.StockGTE
		out["stock_gte"] = func(p Product) bool { return p.Stock >= v }
	}
	if f.StockLTE != nil {
		v := *f.StockLTE
		out["stock_lte"] = func(p Product) bool { return p.Stock <= v }
	}
	if f.Stock != nil {
		v := *f.Stock
		out["stock"] = func(p Product) bool { return p.Stock == v }
	}
	if f.LowStock {
		out["low_stock"] = Product.IsLowStock
	}
	return out
}

// OrderFilter задаёт необязательные условия выборки заказов.
type OrderFilter struct {
	CustomerNameContains string
	ProductNameContains  string
	ProductID            string
	TotalAmountGTE       *decimal.Decimal
	TotalAmountLTE       *decimal.Decimal
	OrderDateGTE         *time.Time
	OrderDateLTE         *time.Time
	OrderBy              string
}

// Predicates строит карту поле → предикат только для заданных условий.
// Условия по клиенту и товарам проверяются на развёрнутом заказе.
func (f OrderFilter) Predicates() map[string]Predicate[OrderDetails] {
	out := make(map[string]Predicate[OrderDetails])
	if f.CustomerNameContains != "" {
		out["customer_name"] = func(o OrderDetails) bool {
			return containsFold(o.Customer.Name, f.CustomerNameContains)
		}
	}
	if f.ProductNameContains != "" {
		out["product_name"] = func(o OrderDetails) bool {
			for _, p := range o.Products {
				if containsFold(p.Name, f.ProductNameContains) {
					return true
				}
			}
			return false
		}
	}
	if f.ProductID != "" {
		out["product_id"] = func(o OrderDetails) bool { return o.HasProduct(f.ProductID) }
	}
	if f.TotalAmountGTE != nil {
		v := *f.TotalAmountGTE
		out["total_amount_gte"] = func(o OrderDetails) bool { return o.TotalAmount.GreaterThanOrEqual(v) }
	}
	if f.TotalAmountLTE != nil {
		v := *f.TotalAmountLTE
		out["total_amount_lte"] = func(o OrderDetails) bool { return o.TotalAmount.LessThanOrEqual(v) }
	}
	if f.OrderDateGTE != nil {
		from := *f.OrderDateGTE
		out["order_date_gte"] = func(o OrderDetails) bool { return !o.OrderDate.Before(from) }
	}
	if f.OrderDateLTE != nil {
		to := *f.OrderDateLTE
		out["order_date_lte"] = func(o OrderDetails) bool { return !o.OrderDate.After(to) }
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
