// Package memstate provides an in-memory slot store.
//
// The store keeps only nonzero words. Writing the zero word removes the
// entry, so a drained ledger enumerates to nothing. Suitable for tests
// and single-process tooling; contents do not survive the process.
package memstate

import (
	"sort"
	"sync"

	"xdao.co/fundvault/state"
)

// Store is an in-memory state.Backing.
//
// The zero value is not usable; call New.
type Store struct {
	mu    sync.RWMutex
	slots map[state.Slot]state.Word
}

// New returns an empty store.
func New() *Store {
	return &Store{slots: make(map[state.Slot]state.Word)}
}

// Load returns the word at s, or the zero word if s was never written.
func (st *Store) Load(s state.Slot) (state.Word, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.slots[s], nil
}

// Apply lands every write in order. Zero words clear their slot.
func (st *Store) Apply(writes []state.Write) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, w := range writes {
		if w.Word.IsZero() {
			delete(st.slots, w.Slot)
			continue
		}
		st.slots[w.Slot] = w.Word
	}
	return nil
}

// Slots returns every nonzero slot in ascending slot order.
func (st *Store) Slots() ([]state.Write, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]state.Write, 0, len(st.slots))
	for s, w := range st.slots {
		out = append(out, state.Write{Slot: s, Word: w})
	}
	sort.Slice(out, func(i, j int) bool {
		return state.SlotLess(out[i].Slot, out[j].Slot)
	})
	return out, nil
}

// Len reports the number of nonzero slots.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.slots)
}

var (
	_ state.Backing    = (*Store)(nil)
	_ state.Enumerator = (*Store)(nil)
)
