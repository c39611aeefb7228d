package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ограничения длины полей клиента.
const (
	MaxNameLength  = 255
	MaxEmailLength = 254
	MaxPhoneLength = 20
)

// Customer описывает клиента CRM.
type Customer struct {
	ID    string
	Name  string
	Email string
	// Phone необязателен; формат проверяет ValidatePhone.
	Phone string
	// CreatedAt выставляется один раз при создании.
	CreatedAt time.Time
}

// ReportStats агрегирует показатели для периодического отчёта.
type ReportStats struct {
	Customers int
	Orders    int
	Revenue   decimal.Decimal
}
