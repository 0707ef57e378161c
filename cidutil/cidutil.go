// Package cidutil is the single construction point for content identifiers.
//
// Snapshots and audit bundle entries are addressed by CIDv1 with the "raw"
// multicodec and a sha2-256 multihash. Keeping the profile in one place
// guarantees every identifier in the module derives the same way.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Sum returns the CIDv1 (raw + sha2-256) of data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
