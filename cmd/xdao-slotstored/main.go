package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"xdao.co/fundvault/state/grpcstate"
	"xdao.co/fundvault/state/stateregistry"

	_ "xdao.co/fundvault/state/ldbstate"
	_ "xdao.co/fundvault/state/memstate"
)

func main() {
	fs := flag.NewFlagSet("xdao-slotstored", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:9090", "listen address")
	backend := fs.String("backend", "ldb", "slot store backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	stateregistry.RegisterFlags(fs, stateregistry.UsageDaemon)

	_ = fs.Parse(os.Args[1:])
	if *listBackends {
		for _, b := range stateregistry.List(stateregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	store, closeFn, err := stateregistry.Open(*backend, stateregistry.UsageDaemon)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpcstate.RegisterSlotStoreServer(s, &grpcstate.Server{Store: store})

	fmt.Fprintf(os.Stderr, "xdao-slotstored listening on %s (backend=%s)\n", lis.Addr().String(), *backend)
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
