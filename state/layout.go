package state

import "golang.org/x/crypto/sha3"

// Layout rules.
//
// Scalars sit at fixed positions assigned in declaration order (0, 1, 2, ...).
// A dynamic list keeps its length at its fixed position p; element i sits at
// keccak256(p) + i. A mapping value for key k under seed position p sits at
// keccak256(k ‖ p). Positions and keys are encoded as 32-byte big-endian
// words before hashing.
//
// The derivation is one-way and position-stable: knowing the rules and the
// fixed positions is enough to locate every value in a raw slot dump.

// ScalarSlot returns the slot of the scalar declared at pos.
func ScalarSlot(pos uint64) Slot {
	return Slot(Uint64Word(pos))
}

// ArrayDataSlot returns the slot of element 0 of the dynamic list declared
// at pos. The list length lives at ScalarSlot(pos).
func ArrayDataSlot(pos uint64) Slot {
	p := Uint64Word(pos)
	return Slot(keccak(p[:]))
}

// ArrayElemSlot returns the slot of element i of the dynamic list declared
// at pos. Element arithmetic wraps mod 2^256.
func ArrayElemSlot(pos, i uint64) Slot {
	return slotAdd(ArrayDataSlot(pos), i)
}

// MappingValueSlot returns the slot of the value keyed by key in the mapping
// declared at pos.
func MappingValueSlot(pos uint64, key Word) Slot {
	p := Uint64Word(pos)
	return Slot(keccak(key[:], p[:]))
}

func keccak(parts ...[]byte) (out [32]byte) {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	copy(out[:], h.Sum(nil))
	return out
}

// slotAdd adds n to the slot's big-endian value, wrapping mod 2^256.
func slotAdd(s Slot, n uint64) Slot {
	carry := n
	for i := len(s) - 1; i >= 0 && carry > 0; i-- {
		sum := uint64(s[i]) + (carry & 0xff)
		s[i] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
	return s
}
