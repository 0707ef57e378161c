package memstate

import (
	"flag"

	"xdao.co/fundvault/state"
	"xdao.co/fundvault/state/stateregistry"
)

func init() {
	stateregistry.MustRegister(stateregistry.Backend{
		Name:        "mem",
		Description: "In-memory slot store (non-persistent)",
		Usage:       stateregistry.UsageCLI | stateregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			// No flags; the store has no configuration.
		},
		Open: func() (state.Backing, func() error, error) {
			return New(), nil, nil
		},
	})
}
