// Package identity provides explicit caller identities for ledger operations.
//
// There is no ambient identity anywhere in this module: every state-changing
// operation takes the acting Address as an explicit parameter.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// AddressSize is the byte length of an Address.
const AddressSize = 20

// Address identifies a participant.
//
// The canonical text form is "0x" followed by 40 lowercase hex digits.
// Addresses derived from public keys are the last 20 bytes of the
// Keccak-256 digest of the key bytes.
type Address [AddressSize]byte

// ParseAddress parses the text form of an Address.
// Hex digits are accepted in either case; String always renders lowercase.
func ParseAddress(s string) (Address, error) {
	var a Address
	if !strings.HasPrefix(s, "0x") {
		return a, errors.New("identity: address must start with 0x")
	}
	body := s[2:]
	if len(body) != 2*AddressSize {
		return a, fmt.Errorf("identity: address must be %d hex digits", 2*AddressSize)
	}
	b, err := hex.DecodeString(body)
	if err != nil {
		return a, fmt.Errorf("identity: invalid address hex: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Word returns the 32-byte left-padded form used as a raw storage word.
func (a Address) Word() [32]byte {
	var w [32]byte
	copy(w[32-AddressSize:], a[:])
	return w
}

// AddressFromWord recovers an Address from its storage word form.
// The high 12 bytes of the word are ignored.
func AddressFromWord(w [32]byte) Address {
	var a Address
	copy(a[:], w[32-AddressSize:])
	return a
}

// FromED25519 derives an Address from an Ed25519 public key.
func FromED25519(pub ed25519.PublicKey) (Address, error) {
	if len(pub) != ed25519.PublicKeySize {
		return Address{}, errors.New("identity: invalid ed25519 public key length")
	}
	return fromKeyBytes(pub), nil
}

// FromDilithium derives an Address from a Dilithium3 public key.
func FromDilithium(pub *mode3.PublicKey) (Address, error) {
	if pub == nil {
		return Address{}, errors.New("identity: missing dilithium3 public key")
	}
	b, err := pub.MarshalBinary()
	if err != nil {
		return Address{}, fmt.Errorf("identity: encode dilithium3 public key: %w", err)
	}
	return fromKeyBytes(b), nil
}

// SeedAddress deterministically derives an Address from a label.
//
// This exists for fixtures and walkthroughs; the derivation is
// domain-separated so seed addresses cannot collide with key-derived ones
// except by finding a Keccak-256 collision.
func SeedAddress(label string) Address {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte("xdao-fundvault-seed-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(label))
	var a Address
	copy(a[:], h.Sum(nil)[32-AddressSize:])
	return a
}

func fromKeyBytes(key []byte) Address {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(key)
	var a Address
	copy(a[:], h.Sum(nil)[32-AddressSize:])
	return a
}
