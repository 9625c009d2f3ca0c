package grpcapp

import (
	"fmt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"log/slog"
	"net"
	"sw360auth/internal/app/interceptors"
	"time"
)

// ServiceName is the health service name reported for the gateway
const ServiceName = "sw360auth"

type App struct {
	log        *slog.Logger
	gRPCServer *grpc.Server
	health     *health.Server
	port       int
}

// New creates new gRPC server app exposing grpc.health.v1.Health
// Status starts as NOT_SERVING until MarkServing is called
func New(
	env string,
	log *slog.Logger,
	port int,
	timeout time.Duration,
) *App {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptors.EnvUnaryInterceptor(env),
			interceptors.TimeoutUnaryInterceptor(timeout),
			interceptors.MetadataInterceptor(log),
		),
	}
	// a non-positive connection timeout would close every connection during handshake
	if timeout > 0 {
		opts = append(opts, grpc.ConnectionTimeout(timeout))
	}
	gRPCServer := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gRPCServer, healthServer)

	return &App{
		log:        log,
		gRPCServer: gRPCServer,
		health:     healthServer,
		port:       port,
	}
}

// MarkServing reports the gateway as ready
func (a *App) MarkServing() {
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// MustRun runs gRPC server and panic if any occurs
func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

// Run grpc server
func (a *App) Run() error {
	const op = "grpcapp.Run"

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return a.Serve(l)
}

// Serve runs the server on an existing listener
func (a *App) Serve(l net.Listener) error {
	const op = "grpcapp.Serve"

	log := a.log.With(slog.String("op", op),
		slog.Int("port", a.port),
	)

	log.Info("starting gRPC server", slog.String("addr", l.Addr().String()))

	if err := a.gRPCServer.Serve(l); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop grpc server
func (a *App) Stop() {
	const op = "grpcapp.Stop"

	a.log.With(slog.String("op", op)).Info("stopping gRPC server")
	a.health.Shutdown()
	a.gRPCServer.GracefulStop()
}
