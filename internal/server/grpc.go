package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall "" status.
const ServiceName = "jobcopilot.JobAnalyzer"

// HealthServer is a gRPC server that only carries the standard health service,
// driven by periodic store pings.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	store  Pinger
	logger *slog.Logger
}

func NewHealthServer(store Pinger, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{grpc: gs, health: hs, store: store, logger: logger}
}

// Check pings the store once and publishes the result.
func (h *HealthServer) Check(ctx context.Context, timeout time.Duration) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if h.store != nil {
		if err := h.store.Ping(ctx, timeout); err != nil {
			h.logger.Warn("store ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", st)
	h.health.SetServingStatus(ServiceName, st)
	return st
}

// Watch re-checks the store every interval until ctx is done.
func (h *HealthServer) Watch(ctx context.Context, interval, timeout time.Duration) {
	h.Check(ctx, timeout)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Check(ctx, timeout)
		}
	}
}

func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info("grpc health server listening", "addr", lis.Addr().String())
	return h.grpc.Serve(lis)
}

// Shutdown marks everything NOT_SERVING and drains in-flight RPCs.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
