// Package feed defines the read-only price reference consumed by the ledger.
package feed

import (
	"errors"
	"math/big"
)

var (
	ErrMissingPrice  = errors.New("feed: missing price")
	ErrNegativePrice = errors.New("feed: negative price")
)

// Reading is one price observation.
//
// Price carries Decimals decimal places. A Reading returned by a Source is
// private to the caller; mutating it does not affect the source.
type Reading struct {
	Price    *big.Int
	Decimals uint8
}

// Source is an injected read-only price reference.
//
// Contract:
// - Latest returns the source's current observation. Consumers take readings
//   at face value; no staleness or heartbeat policy is applied anywhere.
// - Version identifies the source schema or aggregator revision and MUST be
//   non-empty.
type Source interface {
	Latest() (Reading, error)
	Version() string
}

// Validate reports whether the reading is well-formed.
func (r Reading) Validate() error {
	if r.Price == nil {
		return ErrMissingPrice
	}
	if r.Price.Sign() < 0 {
		return ErrNegativePrice
	}
	return nil
}

// Clone returns a deep copy of the reading.
func (r Reading) Clone() Reading {
	out := Reading{Decimals: r.Decimals}
	if r.Price != nil {
		out.Price = new(big.Int).Set(r.Price)
	}
	return out
}
