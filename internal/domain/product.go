package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// LowStockThreshold — остаток, ниже которого товар считается заканчивающимся.
	LowStockThreshold = 10
	// RestockQuantity — на сколько единиц пополняется такой товар.
	RestockQuantity = 10
)

// Product описывает товар каталога.
type Product struct {
	ID          string
	Name        string
	Description string
	// Price хранится с точностью до двух знаков после запятой.
	Price decimal.Decimal
	// Stock никогда не бывает отрицательным.
	Stock     int
	CreatedAt time.Time
}

// IsLowStock сообщает, попадает ли товар под пополнение.
func (p Product) IsLowStock() bool {
	return p.Stock < LowStockThreshold
}

// Restock увеличивает остаток на RestockQuantity.
func (p *Product) Restock() {
	p.Stock += RestockQuantity
}
