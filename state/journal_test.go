package state

import (
	"errors"
	"testing"
)

// mapBacking is a minimal in-test Backing. The real backends live in
// their own packages; the journal only needs Load/Apply semantics here.
type mapBacking struct {
	slots map[Slot]Word
	fail  error
}

func newMapBacking() *mapBacking {
	return &mapBacking{slots: make(map[Slot]Word)}
}

func (m *mapBacking) Load(s Slot) (Word, error) {
	return m.slots[s], nil
}

func (m *mapBacking) Apply(writes []Write) error {
	if m.fail != nil {
		err := m.fail
		m.fail = nil
		return err
	}
	for _, w := range writes {
		if w.Word.IsZero() {
			delete(m.slots, w.Slot)
			continue
		}
		m.slots[w.Slot] = w.Word
	}
	return nil
}

func TestJournal_ReadsThroughOverlay(t *testing.T) {
	base := newMapBacking()
	base.slots[ScalarSlot(0)] = Uint64Word(10)

	j := NewJournal(base)
	got, err := j.Load(ScalarSlot(0))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Uint64Word(10) {
		t.Fatalf("unbuffered read = %s", got.Hex())
	}

	j.Set(ScalarSlot(0), Uint64Word(20))
	got, err = j.Load(ScalarSlot(0))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Uint64Word(20) {
		t.Fatalf("buffered read = %s, want pending write", got.Hex())
	}
	if base.slots[ScalarSlot(0)] != Uint64Word(10) {
		t.Fatalf("base changed before commit")
	}
}

func TestJournal_FirstWriteOrderCoalesces(t *testing.T) {
	j := NewJournal(newMapBacking())
	j.Set(ScalarSlot(2), Uint64Word(1))
	j.Set(ScalarSlot(1), Uint64Word(2))
	j.Set(ScalarSlot(2), Uint64Word(3))

	writes := j.Writes()
	if len(writes) != 2 {
		t.Fatalf("writes = %d, want coalesced 2", len(writes))
	}
	if writes[0].Slot != ScalarSlot(2) || writes[0].Word != Uint64Word(3) {
		t.Fatalf("first write = %+v, want slot 2 holding latest value", writes[0])
	}
	if writes[1].Slot != ScalarSlot(1) {
		t.Fatalf("second write = %+v", writes[1])
	}
	if j.Len() != 2 {
		t.Fatalf("Len = %d", j.Len())
	}
}

func TestJournal_CommitAppliesAndResets(t *testing.T) {
	base := newMapBacking()
	j := NewJournal(base)
	j.Set(ScalarSlot(0), Uint64Word(7))
	j.Set(ScalarSlot(1), Uint64Word(8))

	if err := j.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if base.slots[ScalarSlot(0)] != Uint64Word(7) || base.slots[ScalarSlot(1)] != Uint64Word(8) {
		t.Fatalf("base missing committed writes")
	}
	if j.Len() != 0 {
		t.Fatalf("journal not reset after commit")
	}
	// An empty commit is a no-op.
	if err := j.Commit(); err != nil {
		t.Fatalf("empty Commit: %v", err)
	}
}

func TestJournal_CommitFailureKeepsWrites(t *testing.T) {
	base := newMapBacking()
	base.fail = errors.New("backend down")

	j := NewJournal(base)
	j.Set(ScalarSlot(0), Uint64Word(7))
	if err := j.Commit(); err == nil {
		t.Fatalf("expected commit failure")
	}
	if j.Len() != 1 {
		t.Fatalf("writes dropped on failed commit")
	}
	if len(base.slots) != 0 {
		t.Fatalf("base mutated by failed commit")
	}
	if err := j.Commit(); err != nil {
		t.Fatalf("retry Commit: %v", err)
	}
	if base.slots[ScalarSlot(0)] != Uint64Word(7) {
		t.Fatalf("retry did not land the write")
	}
}

func TestJournal_DiscardDropsWrites(t *testing.T) {
	base := newMapBacking()
	base.slots[ScalarSlot(0)] = Uint64Word(1)

	j := NewJournal(base)
	j.Set(ScalarSlot(0), Uint64Word(99))
	j.Discard()

	if j.Len() != 0 {
		t.Fatalf("journal not empty after discard")
	}
	got, _ := j.Load(ScalarSlot(0))
	if got != Uint64Word(1) {
		t.Fatalf("discarded write still visible: %s", got.Hex())
	}
}

func TestJournal_NestedCommitBuffersIntoOuter(t *testing.T) {
	base := newMapBacking()
	outer := NewJournal(base)
	outer.Set(ScalarSlot(0), Uint64Word(1))

	inner := NewJournal(outer)
	got, _ := inner.Load(ScalarSlot(0))
	if got != Uint64Word(1) {
		t.Fatalf("inner does not see outer's pending write")
	}
	inner.Set(ScalarSlot(1), Uint64Word(2))
	if err := inner.Commit(); err != nil {
		t.Fatalf("inner Commit: %v", err)
	}

	if len(base.slots) != 0 {
		t.Fatalf("inner commit reached the base directly")
	}
	if outer.Len() != 2 {
		t.Fatalf("outer did not absorb inner writes, len=%d", outer.Len())
	}
	if err := outer.Commit(); err != nil {
		t.Fatalf("outer Commit: %v", err)
	}
	if base.slots[ScalarSlot(1)] != Uint64Word(2) {
		t.Fatalf("nested write lost")
	}
}

func TestJournal_ZeroWriteRecorded(t *testing.T) {
	base := newMapBacking()
	base.slots[ScalarSlot(0)] = Uint64Word(5)

	j := NewJournal(base)
	var zero Word
	j.Set(ScalarSlot(0), zero)

	got, _ := j.Load(ScalarSlot(0))
	if !got.IsZero() {
		t.Fatalf("pending zero write not visible")
	}
	if err := j.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, ok := base.slots[ScalarSlot(0)]; ok {
		t.Fatalf("zero write did not clear the base slot")
	}
}
