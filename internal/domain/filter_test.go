package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func TestCustomerFilter_OnlySuppliedPredicates(t *testing.T) {
	require.Empty(t, domain.CustomerFilter{}.Predicates())

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	preds := domain.CustomerFilter{NameContains: "jo", CreatedAtGTE: &from, PhonePrefix: "+1"}.Predicates()
	require.Len(t, preds, 3)
	require.Contains(t, preds, "name")
	require.Contains(t, preds, "created_at_gte")
	require.Contains(t, preds, "phone_pattern")
}

func TestCustomerFilter_Match(t *testing.T) {
	created := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	john := domain.Customer{Name: "John Doe", Email: "john@example.com", Phone: "+11234567890", CreatedAt: created}

	before := created.Add(-time.Hour)
	after := created.Add(time.Hour)

	cases := []struct {
		name   string
		filter domain.CustomerFilter
		want   bool
	}{
		{name: "empty filter", filter: domain.CustomerFilter{}, want: true},
		{name: "name contains case-insensitive", filter: domain.CustomerFilter{NameContains: "JOHN"}, want: true},
		{name: "email contains", filter: domain.CustomerFilter{EmailContains: "example"}, want: true},
		{name: "email mismatch", filter: domain.CustomerFilter{EmailContains: "acme"}, want: false},
		{name: "created range", filter: domain.CustomerFilter{CreatedAtGTE: &before, CreatedAtLTE: &after}, want: true},
		{name: "created after bound", filter: domain.CustomerFilter{CreatedAtLTE: &before}, want: false},
		{name: "phone prefix", filter: domain.CustomerFilter{PhonePrefix: "+1"}, want: true},
		{name: "phone prefix mismatch", filter: domain.CustomerFilter{PhonePrefix: "123"}, want: false},
		{name: "conjunction fails on one", filter: domain.CustomerFilter{NameContains: "john", EmailContains: "acme"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.MatchAll(john, tc.filter.Predicates())
			require.Equal(t, tc.want, got)
		})
	}
}

func TestProductFilter_Match(t *testing.T) {
	mouse := domain.Product{Name: "Mouse", Price: price("25.00"), Stock: 5}
	low := price("20")
	high := price("25.00")
	five := 5
	six := 6

	require.True(t, domain.MatchAll(mouse, domain.ProductFilter{PriceGTE: &low, PriceLTE: &high}.Predicates()))
	require.True(t, domain.MatchAll(mouse, domain.ProductFilter{Stock: &five, LowStock: true}.Predicates()))
	require.False(t, domain.MatchAll(mouse, domain.ProductFilter{Stock: &six}.Predicates()))
	require.False(t, domain.MatchAll(mouse, domain.ProductFilter{StockGTE: &six}.Predicates()))
	require.True(t, domain.MatchAll(mouse, domain.ProductFilter{StockLTE: &six, NameContains: "mou"}.Predicates()))

	stocked := domain.Product{Name: "Laptop", Price: price("1200"), Stock: 15}
	require.False(t, domain.MatchAll(stocked, domain.ProductFilter{LowStock: true}.Predicates()))
}

func TestOrderFilter_Match(t *testing.T) {
	orderDate := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	details := domain.OrderDetails{
		Order: domain.Order{
			ID:          "o1",
			CustomerID:  "c1",
			ProductIDs:  []string{"p1", "p2"},
			OrderDate:   orderDate,
			TotalAmount: price("1225.00"),
		},
		Customer: domain.Customer{ID: "c1", Name: "John Doe"},
		Products: []domain.Product{{ID: "p1", Name: "Laptop"}, {ID: "p2", Name: "Mouse"}},
	}
	minTotal := price("1000")
	maxTotal := price("1200")
	from := orderDate.Add(-24 * time.Hour)

	require.True(t, domain.MatchAll(details, domain.OrderFilter{CustomerNameContains: "doe"}.Predicates()))
	require.True(t, domain.MatchAll(details, domain.OrderFilter{ProductNameContains: "mouse", ProductID: "p1"}.Predicates()))
	require.False(t, domain.MatchAll(details, domain.OrderFilter{ProductID: "p3"}.Predicates()))
	require.True(t, domain.MatchAll(details, domain.OrderFilter{TotalAmountGTE: &minTotal, OrderDateGTE: &from}.Predicates()))
	require.False(t, domain.MatchAll(details, domain.OrderFilter{TotalAmountLTE: &maxTotal}.Predicates()))
	require.False(t, domain.MatchAll(details, domain.OrderFilter{OrderDateLTE: &from}.Predicates()))
}
