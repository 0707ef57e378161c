package grpcstate

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/fundvault/state"
)

// SlotStoreServer is the server API for the SlotStore gRPC service.
//
// We intentionally use protobuf well-known wrapper types so this package does
// not require a protoc/codegen toolchain. Load carries a raw 32-byte slot and
// returns a raw 32-byte word; Apply carries a batch encoded as concatenated
// 64-byte slot||word records.
//
// Proto definition: slotstore.proto.
type SlotStoreServer interface {
	Load(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Apply(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
}

// UnimplementedSlotStoreServer can be embedded to have forward compatible implementations.
type UnimplementedSlotStoreServer struct{}

func (UnimplementedSlotStoreServer) Load(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Load not implemented")
}
func (UnimplementedSlotStoreServer) Apply(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Apply not implemented")
}

// RegisterSlotStoreServer registers the SlotStore service on a gRPC server.
func RegisterSlotStoreServer(s grpc.ServiceRegistrar, srv SlotStoreServer) {
	s.RegisterService(&SlotStore_ServiceDesc, srv)
}

// SlotStoreClient is the client API for the SlotStore gRPC service.
type SlotStoreClient interface {
	Load(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Apply(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type slotStoreClient struct{ cc grpc.ClientConnInterface }

func NewSlotStoreClient(cc grpc.ClientConnInterface) SlotStoreClient { return &slotStoreClient{cc: cc} }

func (c *slotStoreClient) Load(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/xdao.fundvault.state.grpcstate.v1.SlotStore/Load", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *slotStoreClient) Apply(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	err := c.cc.Invoke(ctx, "/xdao.fundvault.state.grpcstate.v1.SlotStore/Apply", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _SlotStore_Load_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotStoreServer).Load(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/xdao.fundvault.state.grpcstate.v1.SlotStore/Load"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SlotStoreServer).Load(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _SlotStore_Apply_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotStoreServer).Apply(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/xdao.fundvault.state.grpcstate.v1.SlotStore/Apply"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SlotStoreServer).Apply(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// SlotStore_ServiceDesc is the grpc.ServiceDesc for SlotStore service.
var SlotStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "xdao.fundvault.state.grpcstate.v1.SlotStore",
	HandlerType: (*SlotStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Load", Handler: _SlotStore_Load_Handler},
		{MethodName: "Apply", Handler: _SlotStore_Apply_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slotstore.proto",
}

const recordSize = 64

// encodeWrites packs a batch as concatenated slot||word records.
func encodeWrites(writes []state.Write) []byte {
	out := make([]byte, 0, len(writes)*recordSize)
	for _, w := range writes {
		out = append(out, w.Slot[:]...)
		out = append(out, w.Word[:]...)
	}
	return out
}

// decodeWrites unpacks a batch encoded by encodeWrites.
func decodeWrites(b []byte) ([]state.Write, error) {
	if len(b)%recordSize != 0 {
		return nil, fmt.Errorf("%w: batch length %d not a multiple of %d",
			state.ErrMalformedSlot, len(b), recordSize)
	}
	writes := make([]state.Write, 0, len(b)/recordSize)
	for off := 0; off < len(b); off += recordSize {
		var w state.Write
		copy(w.Slot[:], b[off:off+32])
		copy(w.Word[:], b[off+32:off+recordSize])
		writes = append(writes, w)
	}
	return writes, nil
}
