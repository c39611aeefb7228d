package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/crm/internal/health"
	"github.com/vladislavdragonenkov/crm/internal/jobs"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
	httpsvc "github.com/vladislavdragonenkov/crm/internal/service/http"
	"github.com/vladislavdragonenkov/crm/internal/service/outbox"
	"github.com/vladislavdragonenkov/crm/internal/version"
)

const (
	shutdownTimeout    = 5 * time.Second
	healthSyncInterval = 10 * time.Second
	readHeaderTimeout  = 5 * time.Second
)

// Run поднимает HTTP API, gRPC health, сервер метрик, outbox worker и планировщик задач
// и работает до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen http: %w", err)
	}

	grpcServer, healthServer := newGRPCServer(logger)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go syncHealth(runCtx, deps.Health, healthServer)

	metricsSrv := startMetricsServer(runCtx, cfg.MetricsAddr, logger, deps.Health)

	apiSrv := &http.Server{
		Handler:           httpsvc.NewRouter(deps.Service, logger.WithField("layer", "http")),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		errCh <- grpcServer.Serve(grpcLis)
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", apiLis.Addr())
		if err := apiSrv.Serve(apiLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if deps.Producer != nil {
		worker := newOutboxWorker(cfg, deps, logger)
		go worker.Run(runCtx)
	}

	var scheduler *jobs.Scheduler
	if cfg.JobsEnabled {
		conn, prober, err := DialHealth(grpcLis.Addr().String())
		if err != nil {
			logger.WithError(err).Warn("heartbeat prober unavailable")
		} else {
			defer conn.Close()
			scheduler, err = startScheduler(deps, prober)
			if err != nil {
				cancel()
				grpcServer.Stop()
				shutdownHTTP(apiSrv, logger)
				return err
			}
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	cancel()
	healthServer.Shutdown()
	if scheduler != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := scheduler.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("scheduler stop timed out")
		}
		stop()
	}
	shutdownHTTP(apiSrv, logger)
	stopGRPC(grpcServer, logger)
	shutdownHTTP(metricsSrv, logger)
	return runErr
}

// newGRPCServer создаёт gRPC-сервер со стандартным health-сервисом и reflection.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *grpchealth.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)
	return grpcServer, healthServer
}

// syncHealth переносит итог HTTP-проверок в статус gRPC health.
func syncHealth(ctx context.Context, checks *health.Handler, server *grpchealth.Server) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if checks.Evaluate(ctx).Status == health.StatusUnhealthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		server.SetServingStatus("", status)
		server.SetServingStatus(version.Service, status)
	}

	update()
	ticker := time.NewTicker(healthSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

func newOutboxWorker(cfg Config, deps *Dependencies, logger *log.Entry) *outbox.Worker {
	return outbox.NewWorker(
		deps.Repos.Outbox,
		kafka.NewOutboxPublisher(deps.Producer, cfg.KafkaTopic),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithDeadLetter(kafka.NewOutboxPublisher(deps.Producer, cfg.KafkaDeadLetterTopic)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

func startScheduler(deps *Dependencies, prober jobs.Prober) (*jobs.Scheduler, error) {
	scheduler := jobs.NewScheduler(deps.Runner(), deps.Logger.WithField("layer", "scheduler"))
	for _, sj := range deps.Jobs(prober) {
		if err := scheduler.Add(sj.Schedule, sj.Job); err != nil {
			return nil, err
		}
	}
	scheduler.Start()
	return scheduler, nil
}

// startMetricsServer запускает HTTP-обработчики /metrics и health-проб.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, checks *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checks)
	mux.HandleFunc("/readyz", checks.ReadinessHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
