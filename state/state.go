// Package state defines the raw slot model for deterministic ledger storage.
//
// All durable state lives in 32-byte words addressed by 32-byte slots. Slot
// positions are derived by fixed layout rules (see layout.go), so an external
// tool that knows only the rules can locate and decode every value without
// going through accessors.
package state

import (
	"bytes"
	"encoding/hex"
	"math/big"
)

// Slot addresses one storage word.
type Slot [32]byte

// Word is one storage value, interpreted big-endian where numeric.
type Word [32]byte

// Write is a single slot assignment.
type Write struct {
	Slot Slot
	Word Word
}

// Backing is a minimal raw slot store.
//
// Contract:
// - Load MUST return the zero word for slots never written.
// - Apply MUST be atomic per call: every write lands or none do.
// - Apply MUST preserve the order of writes within the batch.
// - Writing the zero word clears the slot.
type Backing interface {
	Load(Slot) (Word, error)
	Apply([]Write) error
}

// Enumerator is implemented by stores that can list their live slots.
//
// Remote stores typically cannot; callers needing enumeration should check
// for this interface explicitly.
type Enumerator interface {
	// Slots returns every live slot in ascending slot order.
	Slots() ([]Write, error)
}

// IsZero reports whether w is the zero word.
func (w Word) IsZero() bool { return w == Word{} }

// Big returns the word as an unsigned big-endian integer.
func (w Word) Big() *big.Int {
	return new(big.Int).SetBytes(w[:])
}

// Uint64 returns the word as a uint64.
// It fails with ErrWordOverflow when the value does not fit.
func (w Word) Uint64() (uint64, error) {
	for _, b := range w[:24] {
		if b != 0 {
			return 0, ErrWordOverflow
		}
	}
	var v uint64
	for _, b := range w[24:] {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

func (w Word) Hex() string { return "0x" + hex.EncodeToString(w[:]) }

func (s Slot) Hex() string { return "0x" + hex.EncodeToString(s[:]) }

// SlotLess reports whether a sorts before b in ascending slot order.
func SlotLess(a, b Slot) bool { return bytes.Compare(a[:], b[:]) < 0 }

// BigWord encodes a non-negative integer as a word.
// A nil value encodes as the zero word.
func BigWord(x *big.Int) (Word, error) {
	var w Word
	if x == nil {
		return w, nil
	}
	if x.Sign() < 0 {
		return w, ErrNegativeValue
	}
	b := x.Bytes()
	if len(b) > len(w) {
		return w, ErrWordOverflow
	}
	copy(w[len(w)-len(b):], b)
	return w, nil
}

// Uint64Word encodes v as a word.
func Uint64Word(v uint64) Word {
	var w Word
	for i := 0; i < 8; i++ {
		w[31-i] = byte(v >> (8 * i))
	}
	return w
}
