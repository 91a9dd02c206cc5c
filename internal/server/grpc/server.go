package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/leadkeeper/internal/gateway"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/notifier"
	pb "github.com/dmitrijs2005/leadkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Feed is what the server streams from.
type Feed interface {
	Subscribe(ctx context.Context, fn func(models.Entry)) *notifier.Feed
}

// ModeSource reports the persistence mode announced to new subscribers.
type ModeSource interface {
	Mode() gateway.Mode
}

type GRPCServer struct {
	address string
	feed    Feed
	mode    ModeSource
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, feed Feed, mode ModeSource) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		feed:    feed,
		mode:    mode,
		health:  health.NewServer(),
	}
}

// newServer creates the gRPC server with every service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor),
	)
	pb.RegisterEntryFeedServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(pb.EntryFeedServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		// feed streams never finish on their own, so GracefulStop would hang
		srv.Stop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
