// Package grpcstate provides slot store access over gRPC, so a ledger can
// run against a store hosted in another process (see cmd/xdao-slotstored).
package grpcstate

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/fundvault/state"
)

// Client implements state.Backing over a SlotStore gRPC service.
//
// The client cannot enumerate; snapshotting a remote store requires access
// to the serving process.
type Client struct {
	cc     *grpc.ClientConn
	client SlotStoreClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewSlotStoreClient(cc), Timeout: 0}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Load(s state.Slot) (state.Word, error) {
	var w state.Word
	if c == nil || c.client == nil {
		return w, fmt.Errorf("grpcstate: client not dialed")
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Load(ctx, wrapperspb.Bytes(s[:]))
	if err != nil {
		return w, mapRPC(err)
	}
	b := reply.GetValue()
	if len(b) != len(w) {
		return w, fmt.Errorf("grpcstate: %w: server sent %d bytes", state.ErrMalformedWord, len(b))
	}
	copy(w[:], b)
	return w, nil
}

func (c *Client) Apply(writes []state.Write) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("grpcstate: client not dialed")
	}
	if len(writes) == 0 {
		return nil
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Apply(ctx, wrapperspb.Bytes(encodeWrites(writes)))
	if err != nil {
		return mapRPC(err)
	}
	if !reply.GetValue() {
		return fmt.Errorf("grpcstate: server rejected batch")
	}
	return nil
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}

var _ state.Backing = (*Client)(nil)
