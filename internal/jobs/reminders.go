package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// RecentOrdersSource отдаёт заказы за окно напоминаний.
type RecentOrdersSource interface {
	RecentOrders(ctx context.Context) ([]domain.OrderDetails, error)
}

// Reminders пишет строку на каждый недавний заказ.
type Reminders struct {
	log    AuditLog
	source RecentOrdersSource
	now    func() time.Time
}

// NewReminders создаёт задачу напоминаний о недавних заказах.
func NewReminders(log AuditLog, source RecentOrdersSource, now func() time.Time) *Reminders {
	if now == nil {
		now = time.Now
	}
	return &Reminders{log: log, source: source, now: now}
}

func (j *Reminders) Name() string { return JobReminders }

// Run пишет напоминания. Все ошибки помечены как записанные, раннер их только логирует.
func (j *Reminders) Run(ctx context.Context) error {
	orders, err := j.source.RecentOrders(ctx)
	ts := j.now().Format(bracketLayout)
	if err != nil {
		if appendErr := j.log.Append(ts + " ERROR: " + err.Error()); appendErr != nil {
			return recorded(errors.Join(err, fmt.Errorf("append reminders error: %w", appendErr)))
		}
		return recorded(err)
	}

	lines := make([]string, len(orders))
	for i, o := range orders {
		lines[i] = fmt.Sprintf("%s Order ID: %s, Customer Email: %s", ts, o.ID, o.Customer.Email)
	}
	if err := j.log.Append(lines...); err != nil {
		return recorded(fmt.Errorf("append reminders: %w", err))
	}
	return nil
}
