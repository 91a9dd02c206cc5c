// Package proto describes the leadkeeper.v1.EntryFeed service. Messages are
// google.protobuf.Struct values, so no generated code is needed.
package proto

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	EntryFeedServiceName = "leadkeeper.v1.EntryFeed"
	SubscribeMethod      = "/leadkeeper.v1.EntryFeed/Subscribe"
)

// Message kinds carried in the "type" field of a feed message.
const (
	KindReady = "ready"
	KindEntry = "entry"
)

// EntryFeedServer streams new entries to a subscriber.
type EntryFeedServer interface {
	Subscribe(req *structpb.Struct, stream grpc.ServerStream) error
}

var EntryFeedServiceDesc = grpc.ServiceDesc{
	ServiceName: EntryFeedServiceName,
	HandlerType: (*EntryFeedServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "leadkeeper/v1/feed.proto",
}

func RegisterEntryFeedServer(s grpc.ServiceRegistrar, srv EntryFeedServer) {
	s.RegisterService(&EntryFeedServiceDesc, srv)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(EntryFeedServer).Subscribe(req, stream)
}

// SubscribeClient receives feed messages.
type SubscribeClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type subscribeClient struct {
	grpc.ClientStream
}

func (c *subscribeClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Subscribe opens a feed stream on cc.
func Subscribe(ctx context.Context, cc grpc.ClientConnInterface, req *structpb.Struct, opts ...grpc.CallOption) (SubscribeClient, error) {
	stream, err := cc.NewStream(ctx, &EntryFeedServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	c := &subscribeClient{stream}
	if err := c.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := c.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return c, nil
}

// SubscribeRequest builds a request; a nil sessionID follows every session.
func SubscribeRequest(sessionID *int64) *structpb.Struct {
	fields := map[string]*structpb.Value{}
	if sessionID != nil {
		fields["session_id"] = structpb.NewNumberValue(float64(*sessionID))
	}
	return &structpb.Struct{Fields: fields}
}

// RequestedSession reads the optional session_id of a subscribe request.
func RequestedSession(req *structpb.Struct) (*int64, error) {
	v, ok := req.GetFields()["session_id"]
	if !ok {
		return nil, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue == 0 || n.NumberValue != float64(int64(n.NumberValue)) {
		return nil, fmt.Errorf("invalid session_id %v", v.AsInterface())
	}
	id := int64(n.NumberValue)
	return &id, nil
}

func ReadyMessage(mode string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type": structpb.NewStringValue(KindReady),
		"mode": structpb.NewStringValue(mode),
	}}
}

// EntryMessage wraps e using its JSON field names.
func EntryMessage(e models.Entry) (*structpb.Struct, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	entry, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":  structpb.NewStringValue(KindEntry),
		"entry": structpb.NewStructValue(entry),
	}}, nil
}

// Kind returns the "type" field of a feed message.
func Kind(m *structpb.Struct) string {
	return m.GetFields()["type"].GetStringValue()
}

// EntryFromMessage decodes the entry of an entry message.
func EntryFromMessage(m *structpb.Struct) (models.Entry, error) {
	v := m.GetFields()["entry"].GetStructValue()
	if v == nil {
		return models.Entry{}, fmt.Errorf("feed message has no entry")
	}
	b, err := json.Marshal(v.AsMap())
	if err != nil {
		return models.Entry{}, err
	}
	var e models.Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return models.Entry{}, fmt.Errorf("failed to decode entry: %w", err)
	}
	return e, nil
}
