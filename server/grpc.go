package server

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName is the service name reported by the gRPC health check,
// in addition to the overall "" service.
const HealthServiceName = "summarizer"

// HealthServer serves the standard gRPC health protocol so that load
// balancers and orchestrators can health-check summarizerd without HTTP.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     zerolog.Logger
}

// NewHealthServer creates a HealthServer reporting SERVING.
func NewHealthServer(logger zerolog.Logger) *HealthServer {
	s := &HealthServer{
		health: health.NewServer(),
		logger: logger.With().Str("component", "grpc-server").Logger(),
	}

	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	// Enable reflection for debugging tools like grpcurl
	reflection.Register(s.grpcServer)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve starts the gRPC server on the given listener.
func (s *HealthServer) Serve(listener net.Listener) error {
	s.logger.Info().Str("address", listener.Addr().String()).Msg("Starting gRPC server")
	return s.grpcServer.Serve(listener)
}

// GracefulStop marks every service NOT_SERVING and stops the server once
// in-flight RPCs finish.
func (s *HealthServer) GracefulStop() {
	s.logger.Info().Msg("Gracefully stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Status returns the current serving status of service.
func (s *HealthServer) Status(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// loggingInterceptor logs unary RPC calls.
func (s *HealthServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error().
			Str("method", info.FullMethod).
			Dur("duration", duration).
			Err(err).
			Msg("RPC failed")
	} else {
		s.logger.Debug().
			Str("method", info.FullMethod).
			Dur("duration", duration).
			Msg("RPC completed")
	}

	return resp, err
}

// streamLoggingInterceptor logs streaming RPC calls such as Health/Watch.
func (s *HealthServer) streamLoggingInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	s.logger.Debug().
		Str("method", info.FullMethod).
		Msg("Stream started")

	err := handler(srv, ss)
	if err != nil {
		s.logger.Error().
			Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("Stream failed")
	}
	return err
}
