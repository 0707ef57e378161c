package grpcstate

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/fundvault/state"
)

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.FailedPrecondition:
		// Server uses FailedPrecondition for read-only stores.
		if st.Message() == state.ErrReadOnly.Error() {
			return state.ErrReadOnly
		}
		return err
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", state.ErrMalformedSlot, st.Message())
	default:
		// Best-effort: if the server sent a known state error message, preserve it.
		if st.Message() == state.ErrReadOnly.Error() {
			return state.ErrReadOnly
		}
		return err
	}
}
