// Package ldbstate provides a LevelDB-backed slot store.
//
// Keys are raw 32-byte slots and values are raw 32-byte words, so the
// on-disk database can be inspected with any LevelDB tool without a
// schema. Zero words are stored as deletions, keeping the database's
// key set equal to the set of live slots.
package ldbstate

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"xdao.co/fundvault/state"
)

// Options configures Open.
type Options struct {
	// ReadOnly opens the database for inspection only. Apply fails with
	// state.ErrReadOnly.
	ReadOnly bool
}

// Store is a LevelDB-backed state.Backing.
type Store struct {
	db       *leveldb.DB
	readOnly bool
}

// Open opens (or creates) the database at path.
func Open(path string, o Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("ldbstate: empty path")
	}
	db, err := leveldb.OpenFile(path, &opt.Options{ReadOnly: o.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("ldbstate: open %s: %w", path, err)
	}
	return &Store{db: db, readOnly: o.ReadOnly}, nil
}

// Load returns the word at s, or the zero word if s has no entry.
func (st *Store) Load(s state.Slot) (state.Word, error) {
	var w state.Word
	val, err := st.db.Get(s[:], nil)
	if err == leveldb.ErrNotFound {
		return w, nil
	}
	if err != nil {
		return w, fmt.Errorf("ldbstate: get %s: %w", s.Hex(), err)
	}
	if len(val) != len(w) {
		return w, fmt.Errorf("ldbstate: slot %s: %w (%d bytes)", s.Hex(), state.ErrMalformedWord, len(val))
	}
	copy(w[:], val)
	return w, nil
}

// Apply lands the batch in one LevelDB write. Zero words delete their key.
func (st *Store) Apply(writes []state.Write) error {
	if st.readOnly {
		return state.ErrReadOnly
	}
	if len(writes) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, w := range writes {
		if w.Word.IsZero() {
			batch.Delete(w.Slot[:])
			continue
		}
		word := w.Word
		batch.Put(w.Slot[:], word[:])
	}
	if err := st.db.Write(batch, nil); err != nil {
		return fmt.Errorf("ldbstate: write batch: %w", err)
	}
	return nil
}

// Slots returns every live slot in ascending slot order. LevelDB
// iterates keys in byte order, which is exactly slot order.
func (st *Store) Slots() ([]state.Write, error) {
	var out []state.Write
	iter := st.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var w state.Write
		if len(iter.Key()) != len(w.Slot) || len(iter.Value()) != len(w.Word) {
			return nil, fmt.Errorf("ldbstate: %w: key %d bytes, value %d bytes",
				state.ErrMalformedSlot, len(iter.Key()), len(iter.Value()))
		}
		copy(w.Slot[:], iter.Key())
		copy(w.Word[:], iter.Value())
		out = append(out, w)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("ldbstate: iterate: %w", err)
	}
	return out, nil
}

// Close releases the database. The store must not be used afterwards.
func (st *Store) Close() error {
	return st.db.Close()
}

var (
	_ state.Backing    = (*Store)(nil)
	_ state.Enumerator = (*Store)(nil)
)
