package grpc

import (
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	pb "github.com/dmitrijs2005/leadkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const streamBuffer = 64

// Subscribe streams every new entry, or only those of the requested
// session, until the client goes away.
func (s *GRPCServer) Subscribe(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()

	sessionID, err := pb.RequestedSession(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	entries := make(chan models.Entry, streamBuffer)
	feed := s.feed.Subscribe(ctx, func(e models.Entry) {
		if !e.InSession(sessionID) {
			return
		}
		select {
		case entries <- e:
		case <-ctx.Done():
		}
	})
	defer feed.Close()

	if err := stream.SendMsg(pb.ReadyMessage(string(s.mode.Mode()))); err != nil {
		return err
	}
	s.logger.Info(ctx, "Feed subscribed", "feed", feed.ID, "transport", feed.Transport())

	for {
		select {
		case e := <-entries:
			msg, err := pb.EntryMessage(e)
			if err != nil {
				s.logger.Error(ctx, "failed to encode entry", "id", e.ID, "error", err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
