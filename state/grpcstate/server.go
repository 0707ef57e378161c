package grpcstate

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/fundvault/state"
)

// Server exposes a state.Backing over the SlotStore gRPC service.
type Server struct {
	UnimplementedSlotStoreServer
	Store state.Backing
}

func (s *Server) Load(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	b := in.GetValue()
	var slot state.Slot
	if len(b) != len(slot) {
		return nil, status.Error(codes.InvalidArgument, state.ErrMalformedSlot.Error())
	}
	copy(slot[:], b)
	w, err := s.Store.Load(slot)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(w[:]), nil
}

func (s *Server) Apply(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	writes, err := decodeWrites(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.Store.Apply(writes); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(true), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case state.IsReadOnly(err):
		return status.Error(codes.FailedPrecondition, state.ErrReadOnly.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
