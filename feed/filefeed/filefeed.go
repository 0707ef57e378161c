// Package filefeed reads price observations from a JSON document.
//
// The document is read on every call, never cached, so an edited file is
// observed on the next reading:
//
//	{"price": "200000000000", "decimals": 8, "version": "ops-feed-3"}
package filefeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"xdao.co/fundvault/feed"
)

// DefaultVersion is reported when the document carries no version field.
const DefaultVersion = "filefeed-1"

type document struct {
	Price    string `json:"price"`
	Decimals uint8  `json:"decimals"`
	Version  string `json:"version,omitempty"`
}

// Feed is a feed.Source backed by a JSON file.
type Feed struct {
	path string
}

// New constructs a feed over the document at path.
// The document is read once to fail fast on malformed configuration.
func New(path string) (*Feed, error) {
	if path == "" {
		return nil, errors.New("filefeed: document path is required")
	}
	f := &Feed{path: path}
	if _, err := f.read(); err != nil {
		return nil, err
	}
	return f, nil
}

var _ feed.Source = (*Feed)(nil)

func (f *Feed) Latest() (feed.Reading, error) {
	doc, err := f.read()
	if err != nil {
		return feed.Reading{}, err
	}
	price, ok := new(big.Int).SetString(doc.Price, 10)
	if !ok {
		return feed.Reading{}, fmt.Errorf("filefeed: invalid price %q in %s", doc.Price, f.path)
	}
	r := feed.Reading{Price: price, Decimals: doc.Decimals}
	if err := r.Validate(); err != nil {
		return feed.Reading{}, err
	}
	return r, nil
}

func (f *Feed) Version() string {
	doc, err := f.read()
	if err != nil || doc.Version == "" {
		return DefaultVersion
	}
	return doc.Version
}

func (f *Feed) read() (document, error) {
	var doc document
	b, err := os.ReadFile(f.path)
	if err != nil {
		return doc, fmt.Errorf("filefeed: %w", err)
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("filefeed: parse %s: %w", f.path, err)
	}
	if doc.Price == "" {
		return doc, fmt.Errorf("filefeed: missing price in %s", f.path)
	}
	return doc, nil
}
