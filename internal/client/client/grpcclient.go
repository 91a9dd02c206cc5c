package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/models"
	pb "github.com/dmitrijs2005/leadkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const pingTimeout = 5 * time.Second

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Follow(ctx context.Context, sessionID *int64, fn func(models.Entry)) error
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	health      healthpb.HealthClient
}

func NewFeedClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient(opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.health = healthpb.NewHealthClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// Ping asks the health service whether the entry feed is serving.
func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: pb.EntryFeedServiceName})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}

	return nil
}

// Follow calls fn for each entry the server streams until ctx is done or
// the stream fails. A nil sessionID follows every session.
func (s *GRPCClient) Follow(ctx context.Context, sessionID *int64, fn func(models.Entry)) error {
	stream, err := pb.Subscribe(ctx, s.conn, pb.SubscribeRequest(sessionID))
	if err != nil {
		return s.mapError(err)
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return s.mapError(err)
		}

		if pb.Kind(msg) != pb.KindEntry {
			continue
		}
		e, err := pb.EntryFromMessage(msg)
		if err != nil {
			return err
		}
		fn(e)
	}
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
