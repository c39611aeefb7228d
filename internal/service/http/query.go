package httpsvc

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const dateLayout = "2006-01-02"

// queryParser читает параметры фильтра и копит ошибки формата.
type queryParser struct {
	values url.Values
	errs   []string
}

func (p *queryParser) str(key string) string {
	return strings.TrimSpace(p.values.Get(key))
}

func (p *queryParser) timeParam(key string) *time.Time {
	raw := p.str(key)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, dateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	p.errs = append(p.errs, fmt.Sprintf("%s must be RFC 3339 or YYYY-MM-DD", key))
	return nil
}

func (p *queryParser) decimalParam(key string) *decimal.Decimal {
	raw := p.str(key)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.errs = append(p.errs, key+" must be a decimal number")
		return nil
	}
	return &d
}

func (p *queryParser) intParam(key string) *int {
	raw := p.str(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, key+" must be an integer")
		return nil
	}
	return &v
}

func (p *queryParser) boolParam(key string) bool {
	raw := p.str(key)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, key+" must be a boolean")
	}
	return v
}

func (p *queryParser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(p.errs, "; "))
}

func parseCustomerFilter(values url.Values) (domain.CustomerFilter, error) {
	p := &queryParser{values: values}
	f := domain.CustomerFilter{
		NameContains:  p.str("name"),
		EmailContains: p.str("email"),
		CreatedAtGTE:  p.timeParam("created_at_gte"),
		CreatedAtLTE:  p.timeParam("created_at_lte"),
		PhonePrefix:   p.str("phone_pattern"),
		OrderBy:       p.str("order_by"),
	}
	return f, p.err()
}

func parseProductFilter(values url.Values) (domain.ProductFilter, error) {
	p := &queryParser{values: values}
	f := domain.ProductFilter{
		NameContains: p.str("name"),
		PriceGTE:     p.decimalParam("price_gte"),
		PriceLTE:     p.decimalParam("price_lte"),
		StockGTE:     p.intParam("stock_gte"),
		StockLTE:     p.intParam("stock_lte"),
		Stock:        p.intParam("stock"),
		LowStock:     p.boolParam("low_stock"),
		OrderBy:      p.str("order_by"),
	}
	return f, p.err()
}

func parseOrderFilter(values url.Values) (domain.OrderFilter, error) {
	p := &queryParser{values: values}
	f := domain.OrderFilter{
		CustomerNameContains: p.str("customer_name"),
		ProductNameContains:  p.str("product_name"),
		ProductID:            p.str("product_id"),
		TotalAmountGTE:       p.decimalParam("total_amount_gte"),
		TotalAmountLTE:       p.decimalParam("total_amount_lte"),
		OrderDateGTE:         p.timeParam("order_date_gte"),
		OrderDateLTE:         p.timeParam("order_date_lte"),
		OrderBy:              p.str("order_by"),
	}
	return f, p.err()
}
