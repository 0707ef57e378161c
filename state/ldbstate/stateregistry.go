package ldbstate

import (
	"flag"
	"fmt"

	"xdao.co/fundvault/state"
	"xdao.co/fundvault/state/stateregistry"
)

var (
	flagLdbPath     string
	flagLdbReadOnly bool
)

func init() {
	stateregistry.MustRegister(stateregistry.Backend{
		Name:        "ldb",
		Description: "LevelDB slot store (directory)",
		Usage:       stateregistry.UsageCLI | stateregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagLdbPath, "ldb-path", "", "LevelDB store directory (for --backend=ldb)")
			fs.BoolVar(&flagLdbReadOnly, "ldb-readonly", false, "open the LevelDB store read-only")
		},
		Open: func() (state.Backing, func() error, error) {
			if flagLdbPath == "" {
				return nil, nil, fmt.Errorf("missing --ldb-path")
			}
			st, err := Open(flagLdbPath, Options{ReadOnly: flagLdbReadOnly})
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
	})
}
