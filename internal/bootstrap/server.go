package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/flightstat/config"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

type Servers struct {
	grpcServer *grpc.Server
	grpcLis    net.Listener
	health     *health.Server
	conn       *grpc.ClientConn
	healthz    http.Handler
	httpAddr   string
	logger     *slog.Logger
}

// New binds the gRPC listener and prepares the health gateway. Serving starts
// with Run.
func New(cfg *config.Config, logger *slog.Logger) (*Servers, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return nil, fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}

	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		lis.Close()
		return nil, fmt.Errorf("dial gRPC health: %w", err)
	}

	mux := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))

	return &Servers{
		grpcServer: grpcSrv,
		grpcLis:    lis,
		health:     healthSrv,
		conn:       conn,
		healthz:    mux,
		httpAddr:   cfg.HTTP.ListenAddress(),
		logger:     logger,
	}, nil
}

// Healthz answers GET /healthz from the gRPC health service.
func (s *Servers) Healthz() http.Handler {
	return s.healthz
}

// Run serves gRPC and HTTP and blocks until ctx is canceled or a server fails.
func (s *Servers) Run(ctx context.Context, handler http.Handler) error {
	httpSrv := &http.Server{
		Addr:              s.httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() { errCh <- s.grpcServer.Serve(s.grpcLis) }()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info("servers started", "http", s.httpAddr, "grpc", s.grpcLis.Addr().String())

	select {
	case err := <-errCh:
		s.stop()
		return err
	case <-ctx.Done():
		s.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		s.stop()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func (s *Servers) stop() {
	s.grpcServer.GracefulStop()
	if err := s.conn.Close(); err != nil {
		s.logger.Warn("close gRPC health client", "error", err)
	}
}
