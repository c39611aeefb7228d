package httpsvc_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	httpsvc "github.com/vladislavdragonenkov/crm/internal/service/http"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

func newRouter(t *testing.T) *chi.Mux {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)
	entry := log.NewEntry(logger)

	store := memory.NewStore()
	svc := crm.NewService(store.Repositories(), store, entry)
	return httpsvc.NewRouter(svc, entry)
}

func do(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func doList(t *testing.T, router http.Handler, path string) []map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return decoded
}

func createCustomer(t *testing.T, router http.Handler, name, email string) string {
	t.Helper()
	w, body := do(t, router, http.MethodPost, "/api/customers", map[string]string{"name": name, "email": email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["customer"].(map[string]any)["id"].(string)
}

func createProduct(t *testing.T, router http.Handler, name, price string, stock int) string {
	t.Helper()
	w, body := do(t, router, http.MethodPost, "/api/products", map[string]any{"name": name, "price": price, "stock": stock})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["product"].(map[string]any)["id"].(string)
}

func TestHello(t *testing.T) {
	w, body := do(t, newRouter(t), http.MethodGet, "/api/hello", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Hello from CRM API!", body["hello"])
}

func TestCreateCustomer(t *testing.T) {
	router := newRouter(t)

	w, body := do(t, router, http.MethodPost, "/api/customers", map[string]string{
		"name": "John Doe", "email": "john@example.com", "phone": "+11234567890",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, crm.CustomerCreatedMessage, body["message"])

	w, body = do(t, router, http.MethodPost, "/api/customers", map[string]string{"name": "J", "email": "john@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "email already exists", body["error"])

	w, body = do(t, router, http.MethodPost, "/api/customers", map[string]string{"name": "J", "email": "j@example.com", "phone": "12345"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, body["error"], "invalid phone format")
}

func TestCreateCustomer_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/customers", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	newRouter(t).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "malformed JSON body")
}

func TestBulkCreateCustomers(t *testing.T) {
	router := newRouter(t)
	createCustomer(t, router, "Taken", "taken@example.com")

	w, body := do(t, router, http.MethodPost, "/api/customers/bulk", map[string]any{
		"customers": []map[string]string{
			{"name": "Alice", "email": "alice@example.com"},
			{"name": "Dup", "email": "taken@example.com"},
			{"name": "Carol", "email": "carol@example.com"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["customers"], 2)
	require.Equal(t, []any{"Record 2: email already exists"}, body["errors"])
}

func TestGetCustomer_NotFound(t *testing.T) {
	w, body := do(t, newRouter(t), http.MethodGet, "/api/customers/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "customer not found", body["error"])
}

func TestCreateProduct_Validation(t *testing.T) {
	router := newRouter(t)

	w, body := do(t, router, http.MethodPost, "/api/products", map[string]any{"name": "Free", "price": "0"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "price must be positive", body["error"])

	w, body = do(t, router, http.MethodPost, "/api/products", map[string]any{"name": "Neg", "price": "1", "stock": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "stock cannot be negative", body["error"])

	w, body = do(t, router, http.MethodPost, "/api/products", map[string]any{"name": "Laptop", "price": 999.5})
	require.Equal(t, http.StatusCreated, w.Code)
	product := body["product"].(map[string]any)
	require.Equal(t, "999.50", product["price"])
	require.EqualValues(t, 0, product["stock"])
}

func TestOrderFlow(t *testing.T) {
	router := newRouter(t)
	customerID := createCustomer(t, router, "John Doe", "john@example.com")
	laptop := createProduct(t, router, "Laptop", "1200.00", 15)
	mouse := createProduct(t, router, "Mouse", "25.00", 100)

	w, body := do(t, router, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": customerID,
		"product_ids": []string{laptop, mouse},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := body["order"].(map[string]any)
	require.Equal(t, "1225.00", order["total_amount"])
	require.Equal(t, "john@example.com", order["customer"].(map[string]any)["email"])
	orderID := order["id"].(string)

	w, body = do(t, router, http.MethodGet, "/api/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["products"], 2)

	w, body = do(t, router, http.MethodPost, "/api/orders/"+orderID+"/recalculate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1225.00", body["order"].(map[string]any)["total_amount"])

	orders := doList(t, router, "/api/orders?product_name=mouse&total_amount_gte=1000")
	require.Len(t, orders, 1)
}

func TestCreateOrder_Errors(t *testing.T) {
	router := newRouter(t)
	customerID := createCustomer(t, router, "John", "john@example.com")
	mouse := createProduct(t, router, "Mouse", "25.00", 100)

	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"unknown customer", map[string]any{"customer_id": "nope", "product_ids": []string{mouse}}, "invalid customer ID"},
		{"no products", map[string]any{"customer_id": customerID, "product_ids": []string{}}, "at least one product must be selected"},
		{"unknown product", map[string]any{"customer_id": customerID, "product_ids": []string{mouse, "ghost"}}, "one or more product IDs are invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := do(t, router, http.MethodPost, "/api/orders", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, tc.want, body["error"])
		})
	}

	require.Empty(t, doList(t, router, "/api/orders"))
}

func TestGetOrder_NotFound(t *testing.T) {
	w, _ := do(t, newRouter(t), http.MethodGet, "/api/orders/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestockLowStock(t *testing.T) {
	router := newRouter(t)
	createProduct(t, router, "A", "1.00", 5)
	createProduct(t, router, "B", "1.00", 15)
	createProduct(t, router, "C", "1.00", 3)

	w, body := do(t, router, http.MethodPost, "/api/products/restock-low-stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 2, body["count"])
	require.Equal(t, "Successfully updated 2 low-stock products", body["message"])

	updated := body["updated_products"].([]any)
	require.EqualValues(t, 15, updated[0].(map[string]any)["stock"])
	require.EqualValues(t, 13, updated[1].(map[string]any)["stock"])

	require.Empty(t, doList(t, router, "/api/products?low_stock=true"))
}

func TestListFilters(t *testing.T) {
	router := newRouter(t)
	createCustomer(t, router, "John Doe", "john@example.com")
	createCustomer(t, router, "Jane Smith", "jane@example.com")
	createProduct(t, router, "Laptop", "1200.00", 15)
	createProduct(t, router, "Mouse", "25.00", 100)

	customers := doList(t, router, "/api/customers?name=JANE")
	require.Len(t, customers, 1)
	require.Equal(t, "Jane Smith", customers[0]["name"])

	products := doList(t, router, "/api/products?order_by=-price")
	require.Equal(t, "Laptop", products[0]["name"])

	products = doList(t, router, "/api/products?price_lte=100&stock_gte=50")
	require.Len(t, products, 1)

	w, body := do(t, router, http.MethodGet, "/api/customers?order_by=salary", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, body["error"], "invalid order_by field")

	w, body = do(t, router, http.MethodGet, "/api/products?price_gte=cheap", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, body["error"], "price_gte must be a decimal number")
}
