package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/health"
	"github.com/vladislavdragonenkov/crm/internal/jobs"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	"github.com/vladislavdragonenkov/crm/internal/version"
)

const redisPingTimeout = 2 * time.Second

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Config   Config
	Repos    domain.Repositories
	UoW      domain.UnitOfWork
	Service  *crm.Service
	Metrics  *metrics.CRMMetrics
	Health   *health.Handler
	Producer *kafka.Producer
	Redis    redis.UniversalClient
	Locker   jobs.Locker
	Resetter Resetter
	Logger   *log.Entry

	closers []func() error
}

// ScheduledJob связывает задачу с её расписанием.
type ScheduledJob struct {
	Schedule string
	Job      jobs.Job
}

// NewDependencies создаёт хранилище, сервис и опциональные интеграции
// (Kafka, Redis). Недоступная Kafka отключает события, но не запуск.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	storage, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Config:   cfg,
		Repos:    storage.repos,
		UoW:      storage.uow,
		Metrics:  metrics.NewCRMMetrics(),
		Health:   health.NewHandler(version.GetVersion()),
		Locker:   jobs.NewLocalLocker(),
		Resetter: storage.reset,
		Logger:   logger,
		closers:  []func() error{storage.closeFn},
	}
	deps.Health.RegisterChecker("storage", storage.checker)

	if producer, err := initKafkaProducer(cfg, logger); err == nil && producer != nil {
		deps.Producer = producer
		deps.closers = append(deps.closers, func() error {
			closeKafka(producer, logger)
			return nil
		})
	}

	if cfg.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		locker := jobs.NewRedisLocker(client)
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := locker.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("redis is unavailable, job locks may fail until it recovers")
		}
		deps.Redis = client
		deps.Locker = locker
		deps.Health.RegisterChecker("redis", health.NewOptionalChecker("redis", locker.Ping))
		deps.closers = append(deps.closers, client.Close)
	}

	deps.Service = crm.NewService(
		deps.Repos,
		deps.UoW,
		logger.WithField("layer", "service"),
		crm.WithMetrics(deps.Metrics),
		crm.WithEvents(deps.Producer != nil),
	)
	return deps, nil
}

// Runner возвращает исполнителя задач с блокировками и метриками.
func (d *Dependencies) Runner() *jobs.Runner {
	return jobs.NewRunner(
		jobs.WithLocker(d.Locker),
		jobs.WithRunnerMetrics(d.Metrics),
		jobs.WithRunnerLogger(d.Logger.WithField("layer", "jobs")),
		jobs.WithLockTTL(d.Config.JobLockTTL),
	)
}

// Jobs собирает периодические задачи. prober опрашивает gRPC health сервиса.
func (d *Dependencies) Jobs(prober jobs.Prober) []ScheduledJob {
	cfg := d.Config
	return []ScheduledJob{
		{cfg.HeartbeatSchedule, jobs.NewHeartbeat(jobs.NewFileAuditLog(cfg.HeartbeatLogPath), prober, nil)},
		{cfg.LowStockSchedule, jobs.NewLowStock(jobs.NewFileAuditLog(cfg.LowStockLogPath), d.Service, nil)},
		{cfg.ReportSchedule, jobs.NewReport(jobs.NewFileAuditLog(cfg.ReportLogPath), d.Service, nil)},
		{cfg.RemindersSchedule, jobs.NewReminders(jobs.NewFileAuditLog(cfg.RemindersLogPath), d.Service, nil)},
	}
}

// Job возвращает задачу по имени.
func (d *Dependencies) Job(name string, prober jobs.Prober) (jobs.Job, error) {
	for _, sj := range d.Jobs(prober) {
		if sj.Job.Name() == name {
			return sj.Job, nil
		}
	}
	return nil, fmt.Errorf("unknown job %q", name)
}

// DialHealth открывает gRPC-соединение к addr для heartbeat.
// Вызывающий закрывает соединение.
func DialHealth(addr string) (*grpc.ClientConn, jobs.Prober, error) {
	conn, err := grpc.NewClient(dialTarget(addr), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial grpc health: %w", err)
	}
	return conn, jobs.NewGRPCHealthProber(conn, ""), nil
}

// dialTarget превращает адрес прослушивания (":50051", "0.0.0.0:50051") в адрес для клиента.
func dialTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// Close освобождает ресурсы в обратном порядке создания.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
