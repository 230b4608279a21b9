package server

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/swipelingo/internal/config"
)

// NewGRPCServer builds a gRPC server and registers all provided services.
func NewGRPCServer(registrars ...Registrar) *grpc.Server {
	grpcServer := grpc.NewServer()

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer
}

// ServeGRPC listens on the configured address and serves until ctx is done,
// then stops gracefully.
func ServeGRPC(ctx context.Context, cfg *config.Config, grpcServer *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return serveGRPC(ctx, grpcServer, lis)
}

func serveGRPC(ctx context.Context, grpcServer *grpc.Server, lis net.Listener) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	err := grpcServer.Serve(lis)
	if ctx.Err() != nil {
		<-stopped
		return nil
	}
	return err
}
