package server

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName is the gRPC health service reporting note store status.
const HealthServiceName = "studynotes.Notes"

// HealthServer serves the standard gRPC health protocol.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewHealthServer(logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// Reflection for grpcurl
	reflection.Register(gs)
	return &HealthServer{grpc: gs, health: hs, logger: logger}
}

// SetServing flips both the overall and the notes service status.
func (s *HealthServer) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(HealthServiceName, st)
}

// Serve blocks on lis until Stop. Stopping, even before Serve starts, returns nil.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("grpc.health.listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Check pings the note store once and updates the serving status.
func (s *HealthServer) Check(ctx context.Context, ping Pinger) {
	if err := ping(ctx); err != nil {
		s.logger.Warn("grpc.health.db_down", "error", err)
		s.SetServing(false)
		return
	}
	s.SetServing(true)
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
