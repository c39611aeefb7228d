package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций в метках.
const (
	ResultSuccess         = "success"
	ResultValidationError = "validation_error"
	ResultStorageError    = "storage_error"
	ResultError           = "error"
)

// CRMMetrics содержит метрики мутаций и периодических задач.
type CRMMetrics struct {
	mutations   *prometheus.CounterVec
	bulkRecords *prometheus.CounterVec
	orderTotal  prometheus.Histogram
	restocked   prometheus.Counter

	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobLastSuccess *prometheus.GaugeVec
	jobSkipped     *prometheus.CounterVec
}

// NewCRMMetrics регистрирует метрики в DefaultRegisterer.
func NewCRMMetrics() *CRMMetrics {
	return NewCRMMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCRMMetricsWithRegisterer регистрирует метрики в переданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCRMMetricsWithRegisterer(registerer prometheus.Registerer) *CRMMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CRMMetrics{
		mutations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_mutations_total",
			Help: "Total number of CRM mutations by operation and result",
		}, []string{"operation", "result"})),
		bulkRecords: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_bulk_customer_records_total",
			Help: "Records processed by bulk customer creation, by outcome",
		}, []string{"result"})),
		orderTotal: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crm_order_total_amount",
			Help:    "Distribution of aggregated order totals",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		})),
		restocked: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crm_products_restocked_total",
			Help: "Total number of low-stock products replenished",
		})),
		jobRuns: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_job_runs_total",
			Help: "Periodic job runs by job and result",
		}, []string{"job", "result"})),
		jobDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_job_duration_seconds",
			Help:    "Duration of periodic job runs in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"})),
		jobLastSuccess: register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crm_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful job run",
		}, []string{"job"})),
		jobSkipped: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_job_skipped_total",
			Help: "Job runs skipped because another replica holds the lock",
		}, []string{"job"})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", already.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordMutation учитывает результат мутации.
func (m *CRMMetrics) RecordMutation(operation, result string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, result).Inc()
}

// RecordBulkRecords учитывает успешные и отклонённые записи пакетного создания.
func (m *CRMMetrics) RecordBulkRecords(created, failed int) {
	if m == nil {
		return
	}
	m.bulkRecords.WithLabelValues("created").Add(float64(created))
	m.bulkRecords.WithLabelValues("failed").Add(float64(failed))
}

// ObserveOrderTotal фиксирует сумму заказа после пересчёта.
func (m *CRMMetrics) ObserveOrderTotal(total float64) {
	if m == nil {
		return
	}
	m.orderTotal.Observe(total)
}

// RecordRestocked учитывает пополненные товары.
func (m *CRMMetrics) RecordRestocked(count int) {
	if m == nil {
		return
	}
	m.restocked.Add(float64(count))
}

// RecordJobRun учитывает запуск задачи, её длительность и время последнего успеха.
func (m *CRMMetrics) RecordJobRun(job string, err error, duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err == nil {
		m.jobLastSuccess.WithLabelValues(job).Set(float64(finishedAt.Unix()))
	}
}

// RecordJobSkipped учитывает пропущенный из-за блокировки запуск.
func (m *CRMMetrics) RecordJobSkipped(job string) {
	if m == nil {
		return
	}
	m.jobSkipped.WithLabelValues(job).Inc()
}
