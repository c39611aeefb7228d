package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTotal(t *testing.T) {
	products := []domain.Product{
		{ID: "p1", Name: "Laptop", Price: price("1200.00")},
		{ID: "p2", Name: "Mouse", Price: price("25.00")},
	}
	got := domain.CalculateTotal(products)
	if !got.Equal(price("1225.00")) {
		t.Fatalf("expected total 1225.00, got %s", got.StringFixed(2))
	}
}

func TestCalculateTotal_Empty(t *testing.T) {
	if got := domain.CalculateTotal(nil); !got.IsZero() {
		t.Fatalf("expected zero total for empty product set, got %s", got)
	}
}

func TestCalculateTotal_FractionalPrices(t *testing.T) {
	products := []domain.Product{
		{Price: price("0.10")},
		{Price: price("0.20")},
	}
	if got := domain.CalculateTotal(products); !got.Equal(price("0.30")) {
		t.Fatalf("expected exact 0.30, got %s", got)
	}
}

func TestOrderHasProduct(t *testing.T) {
	order := domain.Order{ID: "o1", ProductIDs: []string{"p1", "p2"}, OrderDate: time.Now()}
	if !order.HasProduct("p2") {
		t.Fatal("expected order to contain p2")
	}
	if order.HasProduct("p3") {
		t.Fatal("did not expect order to contain p3")
	}
}

func TestUniqueIDs(t *testing.T) {
	got := domain.UniqueIDs([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestProductRestock(t *testing.T) {
	p := domain.Product{Stock: 5}
	if !p.IsLowStock() {
		t.Fatal("stock 5 must be low")
	}
	p.Restock()
	if p.Stock != 15 {
		t.Fatalf("expected stock 15, got %d", p.Stock)
	}
	if p.IsLowStock() {
		t.Fatal("stock 15 must not be low")
	}

	boundary := domain.Product{Stock: domain.LowStockThreshold}
	if boundary.IsLowStock() {
		t.Fatal("stock equal to threshold must not be low")
	}
}
