package httpsvc

import (
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

type customerDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type productDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

type orderDTO struct {
	ID          string       `json:"id"`
	Customer    customerDTO  `json:"customer"`
	Products    []productDTO `json:"products"`
	ProductIDs  []string     `json:"product_ids"`
	OrderDate   time.Time    `json:"order_date"`
	TotalAmount string       `json:"total_amount"`
	CreatedAt   time.Time    `json:"created_at"`
}

type createCustomerResponse struct {
	Customer customerDTO `json:"customer"`
	Message  string      `json:"message"`
}

type bulkCreateRequest struct {
	Customers []crm.CreateCustomerInput `json:"customers"`
}

type bulkCreateResponse struct {
	Customers []customerDTO `json:"customers"`
	Errors    []string      `json:"errors"`
}

type restockResponse struct {
	UpdatedProducts []productDTO `json:"updated_products"`
	Message         string       `json:"message"`
	Count           int          `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toCustomerDTO(c domain.Customer) customerDTO {
	return customerDTO{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, CreatedAt: c.CreatedAt}
}

func toProductDTO(p domain.Product) productDTO {
	return productDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
	}
}

func toOrderDTO(o domain.OrderDetails) orderDTO {
	ids := o.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	return orderDTO{
		ID:          o.ID,
		Customer:    toCustomerDTO(o.Customer),
		Products:    mapSlice(o.Products, toProductDTO),
		ProductIDs:  ids,
		OrderDate:   o.OrderDate,
		TotalAmount: o.TotalAmount.StringFixed(2),
		CreatedAt:   o.CreatedAt,
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
