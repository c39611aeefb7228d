package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func TestValidatePhone(t *testing.T) {
	valid := []string{"", "+11234567890", "123-456-7890", "+19999999999"}
	for _, phone := range valid {
		if !domain.ValidatePhone(phone) {
			t.Errorf("expected %q to be valid", phone)
		}
	}

	invalid := []string{"12345", "+1123456789", "+112345678901", "1234567890", "123-4567-890", "+2 1234567890", "abc-def-ghij", " 123-456-7890"}
	for _, phone := range invalid {
		if domain.ValidatePhone(phone) {
			t.Errorf("expected %q to be invalid", phone)
		}
	}
}

type emailSet map[string]bool

func (s emailSet) ExistsByEmail(_ context.Context, email string) (bool, error) {
	return s[email], nil
}

type failingLookup struct{}

func (failingLookup) ExistsByEmail(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func TestValidateEmailUnique(t *testing.T) {
	ctx := context.Background()
	lookup := emailSet{"john@example.com": true}

	ok, err := domain.ValidateEmailUnique(ctx, lookup, "john@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = domain.ValidateEmailUnique(ctx, lookup, "jane@example.com")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = domain.ValidateEmailUnique(ctx, failingLookup{}, "x@example.com")
	require.Error(t, err)
}

func TestValidatePriceAndStock(t *testing.T) {
	require.True(t, domain.ValidatePrice(price("0.01")))
	require.False(t, domain.ValidatePrice(price("0")))
	require.False(t, domain.ValidatePrice(price("-5")))

	require.True(t, domain.ValidateStock(0))
	require.True(t, domain.ValidateStock(100))
	require.False(t, domain.ValidateStock(-1))
}

func TestValidatePriceScale(t *testing.T) {
	require.True(t, domain.ValidatePriceScale(price("1200.00")))
	require.True(t, domain.ValidatePriceScale(price("99999999.99")))
	require.False(t, domain.ValidatePriceScale(price("19.999")))
	require.False(t, domain.ValidatePriceScale(price("100000000")))
}
