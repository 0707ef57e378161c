package main

import (
	"fmt"
	"os"

	"xdao.co/fundvault/snapshot"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: snapcid <state.snapshot>")
		os.Exit(2)
	}
	path := os.Args[1]
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
	s, err := snapshot.Parse(b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse: %v\n", err)
		os.Exit(1)
	}
	id, err := s.CID()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(id)
}
