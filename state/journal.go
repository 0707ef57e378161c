package state

import "math/big"

// Journal buffers writes over a Backing and commits them atomically.
//
// Loads observe buffered writes, so code running inside an open journal sees
// the in-progress state. Journals nest: a Journal is itself a Backing, and
// committing an inner journal buffers its writes into the outer one.
//
// A Journal is not safe for concurrent use.
type Journal struct {
	base    Backing
	overlay map[Slot]Word
	order   []Slot
}

// NewJournal opens an empty journal over base.
func NewJournal(base Backing) *Journal {
	return &Journal{base: base, overlay: make(map[Slot]Word)}
}

var _ Backing = (*Journal)(nil)

// Load returns the buffered word for s, or the base value when s is clean.
func (j *Journal) Load(s Slot) (Word, error) {
	if w, ok := j.overlay[s]; ok {
		return w, nil
	}
	return j.base.Load(s)
}

// Set buffers a write. Repeated writes to the same slot keep the slot's
// first-write position in the batch and update its value.
func (j *Journal) Set(s Slot, w Word) {
	if _, ok := j.overlay[s]; !ok {
		j.order = append(j.order, s)
	}
	j.overlay[s] = w
}

// SetBig buffers a write of a non-negative integer value.
func (j *Journal) SetBig(s Slot, x *big.Int) error {
	w, err := BigWord(x)
	if err != nil {
		return err
	}
	j.Set(s, w)
	return nil
}

// Apply buffers a batch, satisfying Backing so journals nest.
func (j *Journal) Apply(ws []Write) error {
	for _, w := range ws {
		j.Set(w.Slot, w.Word)
	}
	return nil
}

// Writes returns the buffered batch in first-write order.
func (j *Journal) Writes() []Write {
	out := make([]Write, 0, len(j.order))
	for _, s := range j.order {
		out = append(out, Write{Slot: s, Word: j.overlay[s]})
	}
	return out
}

// Len returns the number of dirty slots.
func (j *Journal) Len() int { return len(j.order) }

// Commit applies the buffered batch to the base store and resets the journal.
// On failure the journal keeps its writes and the base is unchanged.
func (j *Journal) Commit() error {
	if len(j.order) == 0 {
		return nil
	}
	if err := j.base.Apply(j.Writes()); err != nil {
		return err
	}
	j.reset()
	return nil
}

// Discard drops the buffered batch, leaving the base untouched.
func (j *Journal) Discard() {
	j.reset()
}

func (j *Journal) reset() {
	j.overlay = make(map[Slot]Word)
	j.order = nil
}
