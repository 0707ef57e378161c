package filefeed

import (
	"flag"
	"fmt"

	"xdao.co/fundvault/feed"
	"xdao.co/fundvault/feed/feedregistry"
)

var (
	flagPath string
)

func init() {
	feedregistry.MustRegister(feedregistry.Backend{
		Name:        "file",
		Description: "JSON document price source (re-read on every call)",
		Usage:       feedregistry.UsageCLI | feedregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagPath, "file-path", "", "Price document path (for feed=file)")
		},
		Open: func() (feed.Source, func() error, error) {
			if flagPath == "" {
				return nil, nil, fmt.Errorf("missing --file-path")
			}
			f, err := New(flagPath)
			return f, nil, err
		},
	})
}
