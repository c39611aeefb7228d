package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const reportLayout = "2006-01-02 15:04:05"

// StatsSource отдаёт сводные показатели CRM.
type StatsSource interface {
	ReportStats(ctx context.Context) (domain.ReportStats, error)
}

// Report пишет сводную строку. В отличие от остальных задач,
// ошибку возвращает планировщику после записи в журнал.
type Report struct {
	log    AuditLog
	source StatsSource
	now    func() time.Time
}

// NewReport создаёт задачу еженедельного отчёта.
func NewReport(log AuditLog, source StatsSource, now func() time.Time) *Report {
	if now == nil {
		now = time.Now
	}
	return &Report{log: log, source: source, now: now}
}

func (j *Report) Name() string { return JobReport }

// Run пишет строку отчёта.
func (j *Report) Run(ctx context.Context) error {
	stats, err := j.source.ReportStats(ctx)
	ts := j.now().Format(reportLayout)
	if err != nil {
		appendErr := j.log.Append(fmt.Sprintf("%s - ERROR generating CRM report: %v", ts, err))
		return errors.Join(fmt.Errorf("generate CRM report: %w", err), appendErr)
	}

	line := fmt.Sprintf("%s - Report: %d customers, %d orders, $%s revenue",
		ts, stats.Customers, stats.Orders, stats.Revenue.StringFixed(2))
	if err := j.log.Append(line); err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	return nil
}
