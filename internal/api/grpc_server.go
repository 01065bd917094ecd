package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"garagebook/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "garagebook.v1.Bookings"

// GRPCServer serves the standard gRPC health protocol for orchestrators.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	store    Pinger
	log      zerolog.Logger
}

func NewGRPCServer(cfg config.APIGRPCConfig, store Pinger, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return newGRPCServer(lis, cfg.Reflection, store, logger), nil
}

func newGRPCServer(lis net.Listener, withReflection bool, store Pinger, logger *zerolog.Logger) *GRPCServer {
	unary := ChainUnaryInterceptors(
		RecoveryUnaryInterceptor(logger),
		LoggingUnaryInterceptor(logger),
	)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(unary))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if withReflection {
		reflection.Register(grpcServer)
	}

	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	s := &GRPCServer{
		server:   grpcServer,
		health:   healthServer,
		listener: lis,
		store:    store,
		log:      serverLogger,
	}
	s.SetServing(true)
	return s
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetServing updates both the overall and the named service status.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Watch pings the store every interval and mirrors the result into the
// health status until ctx is done.
func (s *GRPCServer) Watch(ctx context.Context, interval time.Duration) {
	if s.store == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval/2)
			err := s.store.Ping(pingCtx)
			cancel()

			if ok := err == nil; ok != serving {
				serving = ok
				s.SetServing(ok)
				if ok {
					s.log.Info().Msg("Store reachable again, health SERVING")
				} else {
					s.log.Warn().Err(err).Msg("Store unreachable, health NOT_SERVING")
				}
			}
		}
	}
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC health listening")
	return s.server.Serve(s.listener)
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}
