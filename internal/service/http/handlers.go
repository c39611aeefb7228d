package httpsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

func (h *Handler) hello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"hello": h.svc.Hello()})
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCustomerFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	customers, err := h.svc.AllCustomers(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(customers, toCustomerDTO))
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.svc.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrCustomerNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "customer not found"})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(customer))
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in crm.CreateCustomerInput
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.svc.CreateCustomer(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createCustomerResponse{
		Customer: toCustomerDTO(res.Customer),
		Message:  res.Message,
	})
}

func (h *Handler) bulkCreateCustomers(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.BulkCreateCustomers(r.Context(), req.Customers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkCreateResponse{
		Customers: mapSlice(res.Customers, toCustomerDTO),
		Errors:    res.Messages(),
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	products, err := h.svc.AllProducts(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(products, toProductDTO))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(product))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in crm.CreateProductInput
	if !h.decode(w, r, &in) {
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]productDTO{"product": toProductDTO(product)})
}

func (h *Handler) restockLowStock(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.UpdateLowStockProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, restockResponse{
		UpdatedProducts: mapSlice(res.Products, toProductDTO),
		Message:         res.Message,
		Count:           res.Count,
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.svc.AllOrders(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(orders, toOrderDTO))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in crm.CreateOrderInput
	if !h.decode(w, r, &in) {
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]orderDTO{"order": toOrderDTO(order)})
}

func (h *Handler) recalculateOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.UpdateTotalAmount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]orderDTO{"order": toOrderDTO(order)})
}

// decode читает JSON-тело; при ошибке сам пишет 400 и возвращает false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidInput, err))
		return false
	}
	return true
}

// writeError переводит доменную ошибку в HTTP-статус. Детали сбоев хранилища наружу не выдаются.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"
	switch {
	case domain.IsNotFound(err):
		status, msg = http.StatusNotFound, err.Error()
	case domain.IsValidation(err):
		status, msg = http.StatusBadRequest, err.Error()
	case domain.IsStorageFailure(err):
		msg = domain.ErrStorageFailure.Error()
	}
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
