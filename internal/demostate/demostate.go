// Package demostate seeds a small fixed storage layout, unrelated to the
// ledger, so storage tooling demonstrably handles more than one schema.
//
// Layout, fixed by declaration order:
//
//	position 0: counter  scalar
//	position 1: numbers  uint64[] (length at the position slot)
//	position 2: labels   mapping(uint64 => short ASCII word)
//
// Mapping slots are one-way: a scanner can walk the counter and the numbers
// list from the rules alone, but label values are only reachable for keys it
// already knows. The seeded population below is the known key set.
package demostate

import (
	"fmt"
	"sort"

	"xdao.co/fundvault/state"
)

const (
	posCounter uint64 = 0
	posNumbers uint64 = 1
	posLabels  uint64 = 2
)

// Seeded population.
const SeedCounter uint64 = 42

var (
	SeedNumbers = []uint64{7, 11, 1 << 40}
	SeedLabels  = map[uint64]string{1: "genesis", 7: "lucky", 42: "answer"}
)

// CounterSlot returns the slot of the counter scalar.
func CounterSlot() state.Slot {
	return state.ScalarSlot(posCounter)
}

// NumbersLenSlot returns the slot holding the numbers list length.
func NumbersLenSlot() state.Slot {
	return state.ScalarSlot(posNumbers)
}

// NumberSlot returns the slot holding the i'th number.
func NumberSlot(i uint64) state.Slot {
	return state.ArrayElemSlot(posNumbers, i)
}

// LabelSlot returns the slot holding the label keyed by key.
func LabelSlot(key uint64) state.Slot {
	return state.MappingValueSlot(posLabels, state.Uint64Word(key))
}

// LabelWord encodes a short ASCII label, left-aligned and zero-padded.
func LabelWord(s string) (state.Word, error) {
	var w state.Word
	if s == "" {
		return w, fmt.Errorf("demostate: empty label")
	}
	if len(s) > len(w) {
		return w, fmt.Errorf("demostate: label %q longer than %d bytes", s, len(w))
	}
	copy(w[:], s)
	return w, nil
}

// WordLabel decodes a word written by LabelWord.
func WordLabel(w state.Word) string {
	end := len(w)
	for end > 0 && w[end-1] == 0 {
		end--
	}
	return string(w[:end])
}

// Seed writes the known population to store in one atomic batch.
func Seed(store state.Backing) error {
	writes := []state.Write{
		{Slot: CounterSlot(), Word: state.Uint64Word(SeedCounter)},
		{Slot: NumbersLenSlot(), Word: state.Uint64Word(uint64(len(SeedNumbers)))},
	}
	for i, n := range SeedNumbers {
		writes = append(writes, state.Write{Slot: NumberSlot(uint64(i)), Word: state.Uint64Word(n)})
	}

	keys := make([]uint64, 0, len(SeedLabels))
	for k := range SeedLabels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		w, err := LabelWord(SeedLabels[k])
		if err != nil {
			return err
		}
		writes = append(writes, state.Write{Slot: LabelSlot(k), Word: w})
	}

	return store.Apply(writes)
}
