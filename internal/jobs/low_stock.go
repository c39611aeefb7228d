package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

const bracketLayout = "[2006-01-02 15:04:05]"

// Restocker пополняет заканчивающиеся товары.
type Restocker interface {
	UpdateLowStockProducts(ctx context.Context) (crm.RestockResult, error)
}

// LowStock вызывает пополнение и пишет по строке на каждый обновлённый товар.
type LowStock struct {
	log       AuditLog
	restocker Restocker
	now       func() time.Time
}

// NewLowStock создаёт задачу пополнения; nil now означает time.Now.
func NewLowStock(log AuditLog, restocker Restocker, now func() time.Time) *LowStock {
	if now == nil {
		now = time.Now
	}
	return &LowStock{log: log, restocker: restocker, now: now}
}

func (j *LowStock) Name() string { return JobLowStock }

// Run пополняет товары; ошибка сервиса пишется в журнал и не возвращается.
func (j *LowStock) Run(ctx context.Context) error {
	res, err := j.restocker.UpdateLowStockProducts(ctx)
	ts := j.now().Format(bracketLayout)
	if err != nil {
		if appendErr := j.log.Append(ts + " ERROR: " + err.Error()); appendErr != nil {
			return fmt.Errorf("append low-stock error: %w", appendErr)
		}
		return recorded(err)
	}

	lines := make([]string, 0, len(res.Products))
	for _, p := range res.Products {
		lines = append(lines, fmt.Sprintf("%s Updated product: %s, new stock: %d", ts, p.Name, p.Stock))
	}
	if len(lines) == 0 {
		lines = append(lines, ts+" No low-stock products found")
	}
	if err := j.log.Append(lines...); err != nil {
		return fmt.Errorf("append low-stock updates: %w", err)
	}
	return nil
}
