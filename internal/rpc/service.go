package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// jsonCodec lets gRPC carry the JSON message structs directly, so the
// service needs no generated protobuf stubs.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "voxbridge.Interpreter"

// InterpreterServer is the server API of the voxbridge.Interpreter service.
type InterpreterServer interface {
	// StreamChat is the bidirectional session stream carrying audio in and
	// transcripts/audio out.
	StreamChat(Interpreter_StreamChatServer) error
	// UpdateParticipantSettings mutates one participant's translation
	// preference across the room's live sessions.
	UpdateParticipantSettings(context.Context, *ParticipantSettingsRequest) (*ParticipantSettingsResponse, error)
}

// UnimplementedInterpreterServer provides forward-compatible defaults.
type UnimplementedInterpreterServer struct{}

func (UnimplementedInterpreterServer) StreamChat(Interpreter_StreamChatServer) error {
	return status.Errorf(codes.Unimplemented, "method StreamChat not implemented")
}

func (UnimplementedInterpreterServer) UpdateParticipantSettings(context.Context, *ParticipantSettingsRequest) (*ParticipantSettingsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateParticipantSettings not implemented")
}

// Interpreter_StreamChatServer is the server view of one StreamChat stream.
type Interpreter_StreamChatServer interface {
	Send(*ServerMessage) error
	Recv() (*ClientMessage, error)
	grpc.ServerStream
}

type interpreterStreamChatServer struct {
	grpc.ServerStream
}

func (x *interpreterStreamChatServer) Send(m *ServerMessage) error {
	return x.ServerStream.SendMsg(m)
}

func (x *interpreterStreamChatServer) Recv() (*ClientMessage, error) {
	m := new(ClientMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Interpreter_StreamChat_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(InterpreterServer).StreamChat(&interpreterStreamChatServer{stream})
}

func _Interpreter_UpdateParticipantSettings_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ParticipantSettingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InterpreterServer).UpdateParticipantSettings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/UpdateParticipantSettings",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InterpreterServer).UpdateParticipantSettings(ctx, req.(*ParticipantSettingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var interpreterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InterpreterServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "UpdateParticipantSettings",
			Handler:    _Interpreter_UpdateParticipantSettings_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamChat",
			Handler:       _Interpreter_StreamChat_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "voxbridge/interpreter.proto",
}

// RegisterInterpreterServer registers srv on a gRPC server.
func RegisterInterpreterServer(s *grpc.Server, srv InterpreterServer) {
	s.RegisterService(&interpreterServiceDesc, srv)
}

// ServerCodecOption forces the JSON codec on a server so clients need no
// content-subtype negotiation.
func ServerCodecOption() grpc.ServerOption {
	return grpc.ForceServerCodec(jsonCodec{})
}

// CallCodecOption forces the JSON codec on client calls.
func CallCodecOption() grpc.CallOption {
	return grpc.ForceCodec(jsonCodec{})
}

// ---- client ----------------------------------------------------------------

// InterpreterClient is the client API of the voxbridge.Interpreter service.
type InterpreterClient interface {
	StreamChat(ctx context.Context, opts ...grpc.CallOption) (Interpreter_StreamChatClient, error)
	UpdateParticipantSettings(ctx context.Context, in *ParticipantSettingsRequest, opts ...grpc.CallOption) (*ParticipantSettingsResponse, error)
}

// Interpreter_StreamChatClient is the client view of one StreamChat stream.
type Interpreter_StreamChatClient interface {
	Send(*ClientMessage) error
	Recv() (*ServerMessage, error)
	grpc.ClientStream
}

type interpreterClient struct {
	cc grpc.ClientConnInterface
}

// NewInterpreterClient creates an [InterpreterClient] over a connection. The
// connection must use the JSON codec, either via [CallCodecOption] as a
// default call option or per call.
func NewInterpreterClient(cc grpc.ClientConnInterface) InterpreterClient {
	return &interpreterClient{cc: cc}
}

func (c *interpreterClient) StreamChat(ctx context.Context, opts ...grpc.CallOption) (Interpreter_StreamChatClient, error) {
	stream, err := c.cc.NewStream(ctx, &interpreterServiceDesc.Streams[0], "/"+ServiceName+"/StreamChat", opts...)
	if err != nil {
		return nil, err
	}
	return &interpreterStreamChatClient{stream}, nil
}

func (c *interpreterClient) UpdateParticipantSettings(ctx context.Context, in *ParticipantSettingsRequest, opts ...grpc.CallOption) (*ParticipantSettingsResponse, error) {
	out := new(ParticipantSettingsResponse)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/UpdateParticipantSettings", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type interpreterStreamChatClient struct {
	grpc.ClientStream
}

func (x *interpreterStreamChatClient) Send(m *ClientMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *interpreterStreamChatClient) Recv() (*ServerMessage, error) {
	m := new(ServerMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
