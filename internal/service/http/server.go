// Package httpsvc публикует операции CRM как JSON API поверх chi.
package httpsvc

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

const (
	requestTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// CRMService — операции, которые обслуживает API.
type CRMService interface {
	Hello() string
	CreateCustomer(ctx context.Context, in crm.CreateCustomerInput) (crm.CreateCustomerResult, error)
	BulkCreateCustomers(ctx context.Context, inputs []crm.CreateCustomerInput) (crm.BulkCreateResult, error)
	CreateProduct(ctx context.Context, in crm.CreateProductInput) (domain.Product, error)
	CreateOrder(ctx context.Context, in crm.CreateOrderInput) (domain.OrderDetails, error)
	UpdateTotalAmount(ctx context.Context, orderID string) (domain.OrderDetails, error)
	UpdateLowStockProducts(ctx context.Context) (crm.RestockResult, error)
	AllCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error)
	AllProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	AllOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderDetails, error)
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	GetOrder(ctx context.Context, id string) (domain.OrderDetails, error)
}

// Handler обслуживает маршруты /api.
type Handler struct {
	svc    CRMService
	logger *log.Entry
}

func NewHandler(svc CRMService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{svc: svc, logger: logger}
}

// NewRouter собирает роутер API с middleware.
func NewRouter(svc CRMService, logger *log.Entry) *chi.Mux {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(h.logger), middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Route("/api", h.Register)
	return r
}

// Register вешает маршруты на r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/hello", h.hello)

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Post("/bulk", h.bulkCreateCustomers)
		r.Get("/{id}", h.getCustomer)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Post("/restock-low-stock", h.restockLowStock)
		r.Get("/{id}", h.getProduct)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/recalculate", h.recalculateOrder)
	})
}

// requestLogger пишет одну строку logrus на запрос.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := logger.WithFields(log.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"request_id":  middleware.GetReqID(r.Context()),
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("request failed")
					return
				}
				entry.Debug("request served")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
