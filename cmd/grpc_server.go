package cmd

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// runGRPC serves the standard health service until ctx is done.
func runGRPC(ctx context.Context, logger *zap.Logger, addr string) error {
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting gRPC health server", zap.String("addr", addr))
		errCh <- grpcServer.Serve(grpcListener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gRPC server...")
	hs.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")
	return nil
}
