package jobs

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/metrics"
)

const defaultLockTTL = 30 * time.Minute

// Runner выполняет задачу под блокировкой и пишет метрики.
type Runner struct {
	locker  Locker
	metrics *metrics.CRMMetrics
	logger  *log.Entry
	lockTTL time.Duration
}

// RunnerOption настраивает Runner.
type RunnerOption func(*Runner)

// WithLocker задаёт блокировку; nil оставляет локальную.
func WithLocker(locker Locker) RunnerOption {
	return func(r *Runner) {
		if locker != nil {
			r.locker = locker
		}
	}
}

// WithRunnerMetrics включает метрики запусков.
func WithRunnerMetrics(m *metrics.CRMMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithRunnerLogger задаёт логгер раннера.
func WithRunnerLogger(logger *log.Entry) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLockTTL ограничивает время жизни блокировки на случай падения процесса.
func WithLockTTL(ttl time.Duration) RunnerOption {
	return func(r *Runner) {
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// NewRunner создаёт раннер с локальной блокировкой по умолчанию.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		locker:  NewLocalLocker(),
		logger:  log.WithField("component", "jobs"),
		lockTTL: defaultLockTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run выполняет job, если она не запущена где-то ещё. Ошибки, уже записанные
// задачей в журнал, учитываются в метриках и не возвращаются.
func (r *Runner) Run(ctx context.Context, job Job) error {
	entry := r.logger.WithField("job", job.Name())

	unlock, acquired, err := r.locker.TryLock(ctx, job.Name(), r.lockTTL)
	if err != nil {
		entry.WithError(err).Error("failed to acquire job lock")
		r.metrics.RecordJobRun(job.Name(), err, 0, time.Now())
		return err
	}
	if !acquired {
		entry.Info("job already running, skipping")
		r.metrics.RecordJobSkipped(job.Name())
		return nil
	}
	defer unlock()

	start := time.Now()
	err = job.Run(ctx)
	finished := time.Now()
	r.metrics.RecordJobRun(job.Name(), err, finished.Sub(start), finished)

	entry = entry.WithField("duration_ms", finished.Sub(start).Milliseconds())
	switch {
	case err == nil:
		entry.Info("job finished")
		return nil
	case IsRecorded(err):
		entry.WithError(err).Warn("job finished with recorded error")
		return nil
	default:
		entry.WithError(err).Error("job failed")
		return err
	}
}
