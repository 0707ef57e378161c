package state

import (
	"errors"
	"strings"
	"testing"
)

func TestMirror_AppliesEverywhereLoadsFromPrimary(t *testing.T) {
	primary := newMapBacking()
	copy1 := newMapBacking()
	copy2 := newMapBacking()

	m := &Mirror{
		Primary: primary,
		Mirrors: []NamedBacking{
			{Name: "copy1", Backing: copy1},
			{Name: "copy2", Backing: copy2},
		},
	}

	writes := []Write{
		{Slot: ScalarSlot(0), Word: Uint64Word(1)},
		{Slot: ScalarSlot(1), Word: Uint64Word(2)},
	}
	if err := m.Apply(writes); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for name, b := range map[string]*mapBacking{"primary": primary, "copy1": copy1, "copy2": copy2} {
		if b.slots[ScalarSlot(0)] != Uint64Word(1) {
			t.Fatalf("%s missing write", name)
		}
	}

	// Loads come from the primary only.
	copy1.slots[ScalarSlot(0)] = Uint64Word(99)
	got, err := m.Load(ScalarSlot(0))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Uint64Word(1) {
		t.Fatalf("Load consulted a mirror: %s", got.Hex())
	}
}

func TestMirror_PrimaryFailureSkipsMirrors(t *testing.T) {
	primary := newMapBacking()
	primary.fail = errors.New("primary down")
	mirror := newMapBacking()

	m := &Mirror{Primary: primary, Mirrors: []NamedBacking{{Name: "copy", Backing: mirror}}}
	err := m.Apply([]Write{{Slot: ScalarSlot(0), Word: Uint64Word(1)}})
	if err == nil {
		t.Fatalf("expected primary failure")
	}
	if len(mirror.slots) != 0 {
		t.Fatalf("mirror written after primary failure")
	}
}

func TestMirror_MirrorFailureNamesTheMirror(t *testing.T) {
	primary := newMapBacking()
	bad := newMapBacking()
	bad.fail = errors.New("disk full")

	m := &Mirror{Primary: primary, Mirrors: []NamedBacking{{Name: "cold", Backing: bad}}}
	err := m.Apply([]Write{{Slot: ScalarSlot(0), Word: Uint64Word(1)}})
	if err == nil {
		t.Fatalf("expected mirror failure")
	}
	if !strings.Contains(err.Error(), "cold") {
		t.Fatalf("error does not name the failing mirror: %v", err)
	}
	// Primary keeps the write even when a mirror diverges.
	if primary.slots[ScalarSlot(0)] != Uint64Word(1) {
		t.Fatalf("primary write lost")
	}
}
