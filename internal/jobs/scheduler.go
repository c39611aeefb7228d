package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Расписания по умолчанию.
const (
	DefaultHeartbeatSchedule = "*/5 * * * *"
	DefaultLowStockSchedule  = "0 */12 * * *"
	DefaultReportSchedule    = "@weekly"
	DefaultRemindersSchedule = "0 8 * * *"
)

// ValidateSchedule проверяет cron-выражение из пяти полей или дескриптор (@daily и т.п.).
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler запускает задачи по расписанию через Runner.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	logger *log.Entry
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler создаёт планировщик поверх runner.
func NewScheduler(runner *Runner, logger *log.Entry) *Scheduler {
	if logger == nil {
		logger = log.WithField("component", "scheduler")
	}
	cl := cronLogger{entry: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add регистрирует job по расписанию spec.
func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		_ = s.runner.Run(s.ctx, job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.logger.WithFields(log.Fields{"job": job.Name(), "schedule": spec}).Info("job scheduled")
	return nil
}

// Start запускает планировщик в фоне.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop отменяет контекст задач и ждёт завершения запущенных, пока не истечёт ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger направляет журнал cron в logrus.
type cronLogger struct {
	entry *log.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.entry.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []any) log.Fields {
	out := make(log.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
