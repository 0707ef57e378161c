package staticfeed

import (
	"flag"
	"fmt"
	"math/big"

	"xdao.co/fundvault/feed"
	"xdao.co/fundvault/feed/feedregistry"
)

var (
	flagPrice    string
	flagDecimals uint
	flagVersion  string
)

func init() {
	feedregistry.MustRegister(feedregistry.Backend{
		Name:        "static",
		Description: "Fixed in-memory price source (deterministic)",
		Usage:       feedregistry.UsageCLI | feedregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagPrice, "static-price", "200000000000", "Price in feed units (for feed=static)")
			fs.UintVar(&flagDecimals, "static-decimals", 8, "Price decimals (for feed=static)")
			fs.StringVar(&flagVersion, "static-version", DefaultVersion, "Reported version string (for feed=static)")
		},
		Open: func() (feed.Source, func() error, error) {
			price, ok := new(big.Int).SetString(flagPrice, 10)
			if !ok {
				return nil, nil, fmt.Errorf("invalid --static-price %q", flagPrice)
			}
			if flagDecimals > 255 {
				return nil, nil, fmt.Errorf("invalid --static-decimals %d", flagDecimals)
			}
			f := New(uint8(flagDecimals), price)
			f.SetVersion(flagVersion)
			return f, nil, nil
		},
	})
}
