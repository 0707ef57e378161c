package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"xdao.co/fundvault/identity"
)

// AddressFromSeed returns the ledger address for an Ed25519 seed.
//
// The address is derived from the seed's public key, so it matches what any
// holder of the corresponding private key would present as a caller.
func AddressFromSeed(seed []byte) (identity.Address, error) {
	if len(seed) != ed25519.SeedSize {
		return identity.Address{}, fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return identity.FromED25519(priv.Public().(ed25519.PublicKey))
}

// DeriveAccountSeed deterministically derives an account-specific Ed25519
// seed from a root seed.
//
// Accounts let one root seed back several distinct ledger addresses (an
// owner key plus demo funders, say) without storing independent secrets.
func DeriveAccountSeed(rootSeed []byte, account string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckAccount(account); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("xdao-fundvault-kms-lite-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("account:"))
	_, _ = h.Write([]byte(account))
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("kdf output too short")
	}
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}
