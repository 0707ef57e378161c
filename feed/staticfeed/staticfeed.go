// Package staticfeed provides a fixed, settable price source.
//
// It is the deterministic stand-in for an external price aggregator: tests
// and local environments construct one with a known answer and move the
// price explicitly with SetPrice.
package staticfeed

import (
	"math/big"
	"sync"

	"xdao.co/fundvault/feed"
)

// DefaultVersion is reported when no version override is set.
const DefaultVersion = "staticfeed-1"

// Feed is an in-memory feed.Source with a settable answer.
//
// Decimals are fixed at construction; only the price moves.
type Feed struct {
	mu       sync.Mutex
	decimals uint8
	price    *big.Int
	version  string
}

// New constructs a feed answering price at the given decimals.
// A nil price is treated as zero.
func New(decimals uint8, price *big.Int) *Feed {
	f := &Feed{decimals: decimals, price: new(big.Int), version: DefaultVersion}
	if price != nil {
		f.price.Set(price)
	}
	return f
}

var _ feed.Source = (*Feed)(nil)

// SetPrice replaces the current answer. A nil price is treated as zero.
func (f *Feed) SetPrice(price *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = new(big.Int)
	if price != nil {
		f.price.Set(price)
	}
}

// SetVersion overrides the reported version string.
func (f *Feed) SetVersion(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v != "" {
		f.version = v
	}
}

func (f *Feed) Latest() (feed.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return feed.Reading{Price: new(big.Int).Set(f.price), Decimals: f.decimals}, nil
}

func (f *Feed) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}
