// Package testkit provides a reusable conformance suite for slot store
// backends plus instrumented wrappers used by access-pattern tests.
package testkit

import (
	"sync"
	"testing"

	"xdao.co/fundvault/state"
)

// NewStore constructs a fresh, empty store instance for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) state.Backing

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("ZeroDefault", func(t *testing.T) {
		st := newStore(t)
		got, err := st.Load(state.ScalarSlot(12345))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !got.IsZero() {
			t.Fatalf("unwritten slot not zero: %s", got.Hex())
		}
	})

	t.Run("ApplyThenLoad", func(t *testing.T) {
		st := newStore(t)
		writes := []state.Write{
			{Slot: state.ScalarSlot(0), Word: state.Uint64Word(7)},
			{Slot: state.ArrayDataSlot(1), Word: state.Uint64Word(8)},
			{Slot: state.MappingValueSlot(2, state.Uint64Word(9)), Word: state.Uint64Word(10)},
		}
		if err := st.Apply(writes); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		for _, w := range writes {
			got, err := st.Load(w.Slot)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got != w.Word {
				t.Fatalf("slot %s: got %s want %s", w.Slot.Hex(), got.Hex(), w.Word.Hex())
			}
		}
	})

	t.Run("BatchOverwriteKeepsLast", func(t *testing.T) {
		st := newStore(t)
		s := state.ScalarSlot(3)
		err := st.Apply([]state.Write{
			{Slot: s, Word: state.Uint64Word(1)},
			{Slot: s, Word: state.Uint64Word(2)},
		})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		got, err := st.Load(s)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got != state.Uint64Word(2) {
			t.Fatalf("ordered batch lost: got %s", got.Hex())
		}
	})

	t.Run("ZeroWriteClears", func(t *testing.T) {
		st := newStore(t)
		s := state.ScalarSlot(4)
		if err := st.Apply([]state.Write{{Slot: s, Word: state.Uint64Word(5)}}); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if err := st.Apply([]state.Write{{Slot: s, Word: state.Word{}}}); err != nil {
			t.Fatalf("Apply(zero) failed: %v", err)
		}
		got, err := st.Load(s)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !got.IsZero() {
			t.Fatalf("zero write did not clear: %s", got.Hex())
		}

		// A cleared slot must not reappear in enumeration.
		if en, ok := st.(state.Enumerator); ok {
			live, err := en.Slots()
			if err != nil {
				t.Fatalf("Slots failed: %v", err)
			}
			for _, w := range live {
				if w.Slot == s {
					t.Fatalf("cleared slot still enumerated")
				}
			}
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		st := newStore(t)
		if err := st.Apply(nil); err != nil {
			t.Fatalf("Apply(nil) failed: %v", err)
		}
		if err := st.Apply([]state.Write{}); err != nil {
			t.Fatalf("Apply(empty) failed: %v", err)
		}
	})

	t.Run("EnumerationSortedAscending", func(t *testing.T) {
		st := newStore(t)
		en, ok := st.(state.Enumerator)
		if !ok {
			t.Skip("store does not enumerate")
		}
		writes := []state.Write{
			{Slot: state.ArrayDataSlot(1), Word: state.Uint64Word(1)},
			{Slot: state.ScalarSlot(0), Word: state.Uint64Word(2)},
			{Slot: state.ScalarSlot(9), Word: state.Uint64Word(3)},
		}
		if err := st.Apply(writes); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		live, err := en.Slots()
		if err != nil {
			t.Fatalf("Slots failed: %v", err)
		}
		if len(live) != len(writes) {
			t.Fatalf("enumerated %d slots, want %d", len(live), len(writes))
		}
		for i := 1; i < len(live); i++ {
			if !state.SlotLess(live[i-1].Slot, live[i].Slot) {
				t.Fatalf("enumeration not ascending at %d", i)
			}
		}
	})
}

// CountingStore wraps a Backing and counts Load calls per slot. It is
// used to assert the storage access pattern of ledger operations.
type CountingStore struct {
	Inner state.Backing

	mu     sync.Mutex
	loads  map[state.Slot]int
	total  int
	writes int
}

func NewCountingStore(inner state.Backing) *CountingStore {
	return &CountingStore{Inner: inner, loads: make(map[state.Slot]int)}
}

func (c *CountingStore) Load(s state.Slot) (state.Word, error) {
	c.mu.Lock()
	c.loads[s]++
	c.total++
	c.mu.Unlock()
	return c.Inner.Load(s)
}

func (c *CountingStore) Apply(writes []state.Write) error {
	c.mu.Lock()
	c.writes += len(writes)
	c.mu.Unlock()
	return c.Inner.Apply(writes)
}

// Loads returns how many times s has been loaded since the last Reset.
func (c *CountingStore) Loads(s state.Slot) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads[s]
}

// TotalLoads returns the number of Load calls since the last Reset.
func (c *CountingStore) TotalLoads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Reset clears all counters. Use it after test setup so assertions see
// only the operation under test.
func (c *CountingStore) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads = make(map[state.Slot]int)
	c.total = 0
	c.writes = 0
}

var _ state.Backing = (*CountingStore)(nil)
