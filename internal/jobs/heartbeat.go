package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	heartbeatLayout = "02/01/2006-15:04:05"
	probeTimeout    = 5 * time.Second
)

// Prober опрашивает живой сервис и возвращает его статус.
type Prober interface {
	Probe(ctx context.Context) (string, error)
}

// GRPCHealthProber опрашивает стандартный grpc.health.v1.
type GRPCHealthProber struct {
	client  healthpb.HealthClient
	service string
}

// NewGRPCHealthProber создаёт prober поверх соединения conn; пустой service проверяет сервер целиком.
func NewGRPCHealthProber(conn grpc.ClientConnInterface, service string) *GRPCHealthProber {
	return &GRPCHealthProber{client: healthpb.NewHealthClient(conn), service: service}
}

// Probe возвращает статус из ответа Check.
func (p *GRPCHealthProber) Probe(ctx context.Context) (string, error) {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}

// Heartbeat пишет строку «CRM is alive» на каждый запуск. Ошибка опроса
// становится частью строки.
type Heartbeat struct {
	log    AuditLog
	prober Prober
	now    func() time.Time
}

// NewHeartbeat создаёт задачу heartbeat. prober может быть nil.
func NewHeartbeat(log AuditLog, prober Prober, now func() time.Time) *Heartbeat {
	if now == nil {
		now = time.Now
	}
	return &Heartbeat{log: log, prober: prober, now: now}
}

func (h *Heartbeat) Name() string { return JobHeartbeat }

// Run пишет строку heartbeat. Все ошибки помечены как записанные, раннер их не возвращает.
func (h *Heartbeat) Run(ctx context.Context) error {
	line := h.now().Format(heartbeatLayout) + " CRM is alive"

	var probeErr error
	if h.prober != nil {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		status, err := h.prober.Probe(ctx)
		cancel()
		if err != nil {
			probeErr = err
			line += " - health probe error: " + err.Error()
		} else {
			line += " - gRPC health: " + status
		}
	}

	if err := h.log.Append(line); err != nil {
		return recorded(errors.Join(fmt.Errorf("append heartbeat: %w", err), probeErr))
	}
	return recorded(probeErr)
}
