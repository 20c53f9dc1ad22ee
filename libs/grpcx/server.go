package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/slotbook/slotbook/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewServer returns a traced gRPC server with request id and logging interceptors,
// the standard health service and reflection registered.
func NewServer(logger *slog.Logger, hs *health.Server, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryServerRequestIDInterceptor(),
			UnaryServerLoggingInterceptor(logger),
		),
	}
	srv := grpc.NewServer(append(base, opts...)...)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}

// HealthReporter mirrors the service's readiness checks into a gRPC health server.
type HealthReporter struct {
	health   *health.Server
	service  string
	checks   []runtime.ReadyCheck
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthReporter(hs *health.Server, service string, logger *slog.Logger, interval time.Duration, checks ...runtime.ReadyCheck) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{health: hs, service: service, checks: checks, interval: interval, logger: logger}
}

// Refresh runs the checks once and publishes the result for both the named
// service and the server-wide ("") entry.
func (h *HealthReporter) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if err := runtime.RunChecks(ctx, 2*time.Second, h.checks...); err != nil {
		h.logger.Warn("readiness check failed", "err", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", st)
	h.health.SetServingStatus(h.service, st)
	return st
}

func (h *HealthReporter) Run(ctx context.Context) {
	h.Refresh(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}
