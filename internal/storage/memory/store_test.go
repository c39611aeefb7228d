package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

func seedCustomer(t *testing.T, repos domain.Repositories, id, name, email string) domain.Customer {
	t.Helper()
	c := domain.Customer{ID: id, Name: name, Email: email, CreatedAt: time.Now().UTC()}
	require.NoError(t, repos.Customers.Create(context.Background(), c))
	return c
}

func seedProduct(t *testing.T, repos domain.Repositories, id, name, price string, stock int) domain.Product {
	t.Helper()
	p := domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock, CreatedAt: time.Now().UTC()}
	require.NoError(t, repos.Products.Create(context.Background(), p))
	return p
}

func TestCustomerRepository_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()

	seedCustomer(t, repos, "c1", "John", "john@example.com")
	err := repos.Customers.Create(ctx, domain.Customer{ID: "c2", Name: "Other", Email: "john@example.com"})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)

	exists, err := repos.Customers.ExistsByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	require.True(t, exists)

	count, err := repos.Customers.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = repos.Customers.Get(ctx, "c2")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCustomerRepository_ListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()

	seedCustomer(t, repos, "c1", "John Doe", "john@example.com")
	seedCustomer(t, repos, "c2", "Jane Smith", "jane@example.com")
	seedCustomer(t, repos, "c3", "Bob", "bob@acme.io")

	all, err := repos.Customers.List(ctx, domain.CustomerFilter{}, domain.SortOrder{})
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2", "c3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	filtered, err := repos.Customers.List(ctx, domain.CustomerFilter{EmailContains: "example"}, domain.SortOrder{Field: "name"})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	require.Equal(t, "Jane Smith", filtered[0].Name)
}

func TestProductRepository_GetManyAndSave(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()

	seedProduct(t, repos, "p1", "Laptop", "1200.00", 15)
	seedProduct(t, repos, "p2", "Mouse", "25.00", 5)

	found, err := repos.Products.GetMany(ctx, []string{"p2", "missing", "p1", "p2"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "p2", found[0].ID)

	mouse := found[0]
	mouse.Stock = 15
	require.NoError(t, repos.Products.Save(ctx, mouse))

	stored, err := repos.Products.Get(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, 15, stored.Stock)

	mouse.Stock = -1
	require.ErrorIs(t, repos.Products.Save(ctx, mouse), domain.ErrInvalidStock)
	require.ErrorIs(t, repos.Products.Save(ctx, domain.Product{ID: "nope"}), domain.ErrProductNotFound)

	low, err := repos.Products.List(ctx, domain.ProductFilter{LowStock: true}, domain.SortOrder{})
	require.NoError(t, err)
	require.Empty(t, low)
}

func TestOrderRepository_CreateSetProductsAndDetails(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()

	seedCustomer(t, repos, "c1", "John Doe", "john@example.com")
	seedProduct(t, repos, "p1", "Laptop", "1200.00", 15)
	seedProduct(t, repos, "p2", "Mouse", "25.00", 100)

	err := repos.Orders.Create(ctx, domain.Order{ID: "o0", CustomerID: "missing"})
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)

	now := time.Now().UTC()
	require.NoError(t, repos.Orders.Create(ctx, domain.Order{ID: "o1", CustomerID: "c1", OrderDate: now, CreatedAt: now}))
	require.ErrorIs(t, repos.Orders.SetProducts(ctx, "o1", []string{"p1", "ghost"}), domain.ErrInvalidProductID)
	require.NoError(t, repos.Orders.SetProducts(ctx, "o1", []string{"p2", "p1", "p2"}))

	order, err := repos.Orders.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, []string{"p2", "p1"}, order.ProductIDs)

	order.TotalAmount = decimal.RequireFromString("1225.00")
	require.NoError(t, repos.Orders.Save(ctx, order))

	list, err := repos.Orders.List(ctx, domain.OrderFilter{ProductNameContains: "lap"}, domain.SortOrder{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "John Doe", list[0].Customer.Name)
	require.Equal(t, []string{"p1", "p2"}, []string{list[0].Products[0].ID, list[0].Products[1].ID})

	revenue, err := repos.Orders.TotalRevenue(ctx)
	require.NoError(t, err)
	require.True(t, revenue.Equal(decimal.RequireFromString("1225")))

	recent, err := repos.Orders.ListPlacedSince(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)

	old, err := repos.Orders.ListPlacedSince(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, old)
}

func TestStoreDo_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	boom := errors.New("boom")

	err := store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		seedCustomer(t, repos, "c1", "John", "john@example.com")
		seedProduct(t, repos, "p1", "Laptop", "1200", 1)
		if _, err := repos.Outbox.Enqueue(ctx, domain.OutboxMessage{EventType: domain.EventCustomerCreated}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	repos := store.Repositories()
	count, err := repos.Customers.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	exists, err := repos.Customers.ExistsByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	require.False(t, exists, "email index must be rolled back too")

	products, err := repos.Products.List(ctx, domain.ProductFilter{}, domain.SortOrder{})
	require.NoError(t, err)
	require.Empty(t, products)

	stats, err := repos.Outbox.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
}

func TestStoreDo_Commits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	err := store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		seedCustomer(t, repos, "c1", "John", "john@example.com")
		return nil
	})
	require.NoError(t, err)

	count, err := store.Repositories().Customers.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestStoreDo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memory.NewStore().Do(ctx, func(context.Context, domain.Repositories) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()
	seedCustomer(t, repos, "c1", "John", "john@example.com")

	require.NoError(t, store.Reset(ctx))

	count, err := repos.Customers.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	seedCustomer(t, repos, "c2", "John", "john@example.com")
}
