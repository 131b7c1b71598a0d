package grpcserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/metrics"
)

// ServiceName is the health service name reported for the dashboard.
const ServiceName = "returns.Dashboard"

type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes grpc.health.v1.Health backed by a document store ping.
type Server struct {
	store    Pinger
	interval time.Duration
	logger   *zap.Logger
	health   *health.Server
}

func NewServer(store Pinger, interval time.Duration, logger *zap.Logger) *Server {
	s := &Server{
		store:    store,
		interval: interval,
		logger:   logger.With(zap.String("component", "grpc")),
		health:   health.NewServer(),
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Check pings the store once and publishes the result.
func (s *Server) Check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("document store unreachable", zap.Error(err))
		metrics.OperationErrorsTotal.WithLabelValues("health_ping").Inc()
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Register adds the health and reflection services to srv.
func (s *Server) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	l := s.logger.With(zap.String("rpc_method", info.FullMethod), zap.Duration("took", time.Since(start)))
	if err != nil {
		l.Warn("rpc failed", zap.Stringer("code", status.Code(err)), zap.Error(err))
	} else {
		l.Debug("rpc handled")
	}
	return resp, err
}

// Run serves on port until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port string) error {
	listen, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	s.Register(srv)

	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.logger.Info("stopping grpc server")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info("starting grpc server", zap.String("address", listen.Addr().String()))
	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
