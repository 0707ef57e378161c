package grpcstate

import (
	"flag"
	"fmt"
	"time"

	"xdao.co/fundvault/state"
	"xdao.co/fundvault/state/stateregistry"
)

var (
	flagGRPCTarget     string
	flagGRPCTimeoutSec int
)

func init() {
	stateregistry.MustRegister(stateregistry.Backend{
		Name:        "grpc",
		Description: "Remote slot store over gRPC",
		Usage:       stateregistry.UsageCLI,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagGRPCTarget, "grpc-target", "", "SlotStore gRPC target, e.g. 127.0.0.1:9090 (for --backend=grpc)")
			fs.IntVar(&flagGRPCTimeoutSec, "grpc-timeout-sec", 10, "per-RPC timeout in seconds (0 disables)")
		},
		Open: func() (state.Backing, func() error, error) {
			if flagGRPCTarget == "" {
				return nil, nil, fmt.Errorf("missing --grpc-target")
			}
			c, err := Dial(flagGRPCTarget, DialOptions{})
			if err != nil {
				return nil, nil, err
			}
			c.Timeout = time.Duration(flagGRPCTimeoutSec) * time.Second
			return c, c.Close, nil
		},
	})
}
