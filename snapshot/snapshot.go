// Package snapshot implements a canonical text serialization of ledger
// state for audit and archival.
//
// Rendered bytes are always canonical (section order, key order, spacing,
// and blank lines), so equal states produce byte-identical documents, and
// document bytes have one deterministic content identifier.
package snapshot

import (
	"fmt"
	"math/big"

	"github.com/ipfs/go-cid"

	"xdao.co/fundvault/cidutil"
	"xdao.co/fundvault/identity"
	"xdao.co/fundvault/ledger"
)

// SectionOrder defines the canonical order of snapshot sections.
var SectionOrder = []string{"META", "FUNDERS", "CONTRIBUTIONS", "TOTALS"}

const (
	Preamble  = "-----BEGIN XDAO LEDGER STATE-----"
	Postamble = "-----END XDAO LEDGER STATE-----"

	// SchemaV1 names the document layout produced by this package.
	SchemaV1 = "xdao-fundvault-1"
)

// State is a point-in-time view of one ledger.
//
// Funders preserves the ledger's first-contribution order; Contributions
// holds the cumulative amount per funder in base units.
type State struct {
	Schema        string
	Owner         identity.Address
	FeedVersion   string
	MinimumStable *big.Int

	Funders       []identity.Address
	Contributions map[identity.Address]*big.Int
	HeldValue     *big.Int
}

// Capture reads l into a State.
func Capture(l *ledger.Ledger) (*State, error) {
	s := &State{
		Schema:        SchemaV1,
		Owner:         l.Owner(),
		FeedVersion:   l.FeedVersion(),
		MinimumStable: l.MinimumStable(),
		Contributions: make(map[identity.Address]*big.Int),
	}

	n, err := l.FunderCount()
	if err != nil {
		return nil, fmt.Errorf("snapshot: funder count: %w", err)
	}
	for i := uint64(0); i < n; i++ {
		addr, err := l.FunderAt(i)
		if err != nil {
			return nil, fmt.Errorf("snapshot: funder %d: %w", i, err)
		}
		amt, err := l.ContributionOf(addr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: contribution of %s: %w", addr, err)
		}
		s.Funders = append(s.Funders, addr)
		s.Contributions[addr] = amt
	}

	held, err := l.HeldValue()
	if err != nil {
		return nil, fmt.Errorf("snapshot: held value: %w", err)
	}
	s.HeldValue = held
	return s, nil
}

// CID returns the content identifier of the state's canonical bytes
// (CIDv1, raw multicodec, sha2-256 multihash).
func (s *State) CID() (cid.Cid, error) {
	b, err := Render(s)
	if err != nil {
		return cid.Undef, err
	}
	return ContentCID(b)
}

// ContentCID returns a CIDv1 (raw + sha2-256) derived from data.
func ContentCID(data []byte) (cid.Cid, error) {
	return cidutil.Sum(data)
}

// validate checks the semantic invariants shared by Render and Parse.
func validate(s *State) error {
	if s == nil {
		return fmt.Errorf("snapshot: nil state")
	}
	if s.Schema != SchemaV1 {
		return fmt.Errorf("snapshot: unsupported schema %q", s.Schema)
	}
	if s.Owner == (identity.Address{}) {
		return fmt.Errorf("snapshot: zero owner")
	}
	if s.FeedVersion == "" {
		return fmt.Errorf("snapshot: empty feed version")
	}
	if s.MinimumStable == nil || s.MinimumStable.Sign() <= 0 {
		return fmt.Errorf("snapshot: minimum must be positive")
	}
	if s.HeldValue == nil || s.HeldValue.Sign() < 0 {
		return fmt.Errorf("snapshot: negative held value")
	}
	if len(s.Funders) != len(s.Contributions) {
		return fmt.Errorf("snapshot: %d funders but %d contributions", len(s.Funders), len(s.Contributions))
	}

	sum := new(big.Int)
	seen := make(map[identity.Address]bool, len(s.Funders))
	for _, addr := range s.Funders {
		if seen[addr] {
			return fmt.Errorf("snapshot: duplicate funder %s", addr)
		}
		seen[addr] = true
		amt, ok := s.Contributions[addr]
		if !ok {
			return fmt.Errorf("snapshot: funder %s has no contribution entry", addr)
		}
		if amt == nil || amt.Sign() <= 0 {
			return fmt.Errorf("snapshot: funder %s has non-positive contribution", addr)
		}
		sum.Add(sum, amt)
	}
	if sum.Cmp(s.HeldValue) != 0 {
		return fmt.Errorf("snapshot: contributions sum to %s but held value is %s", sum, s.HeldValue)
	}
	return nil
}
