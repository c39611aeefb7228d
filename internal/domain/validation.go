package domain

import (
	"context"
	"regexp"

	"github.com/shopspring/decimal"
)

var phonePattern = regexp.MustCompile(`^(\+1\d{10}|\d{3}-\d{3}-\d{4})$`)

// Ограничения точности цены: decimal(10,2).
const (
	PriceScale        = 2
	MaxPriceIntDigits = 8
)

var maxPrice = decimal.New(1, MaxPriceIntDigits)

// EmailLookup — часть репозитория клиентов, достаточная для проверки уникальности.
type EmailLookup interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// ValidatePhone проверяет формат телефона. Пустой телефон допустим.
func ValidatePhone(phone string) bool {
	if phone == "" {
		return true
	}
	return phonePattern.MatchString(phone)
}

// ValidateEmailUnique возвращает true, если клиента с таким email ещё нет.
func ValidateEmailUnique(ctx context.Context, lookup EmailLookup, email string) (bool, error) {
	exists, err := lookup.ExistsByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// ValidatePrice возвращает true для строго положительной цены.
func ValidatePrice(price decimal.Decimal) bool {
	return price.IsPositive()
}

// ValidateStock возвращает true для неотрицательного остатка.
func ValidateStock(stock int) bool {
	return stock >= 0
}

// ValidatePriceScale проверяет, что цена помещается в decimal(10,2).
func ValidatePriceScale(price decimal.Decimal) bool {
	if !price.Equal(price.Truncate(PriceScale)) {
		return false
	}
	return price.Abs().LessThan(maxPrice)
}
