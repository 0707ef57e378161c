package demostate

import (
	"testing"

	"xdao.co/fundvault/state"
	"xdao.co/fundvault/state/memstate"
)

func TestSeed_PopulationReadableFromRawSlots(t *testing.T) {
	st := memstate.New()
	if err := Seed(st); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	// 1 counter + 1 length + 3 numbers + 3 labels.
	if st.Len() != 8 {
		t.Fatalf("live slots %d, want 8", st.Len())
	}

	got, err := st.Load(CounterSlot())
	if err != nil {
		t.Fatal(err)
	}
	if got != state.Uint64Word(SeedCounter) {
		t.Fatalf("counter word %s", got.Hex())
	}

	n, err := st.Load(NumbersLenSlot())
	if err != nil {
		t.Fatal(err)
	}
	count, err := n.Uint64()
	if err != nil {
		t.Fatal(err)
	}
	if count != uint64(len(SeedNumbers)) {
		t.Fatalf("numbers length %d, want %d", count, len(SeedNumbers))
	}
	for i, want := range SeedNumbers {
		w, err := st.Load(NumberSlot(uint64(i)))
		if err != nil {
			t.Fatal(err)
		}
		v, err := w.Uint64()
		if err != nil {
			t.Fatal(err)
		}
		if v != want {
			t.Fatalf("number %d = %d, want %d", i, v, want)
		}
	}

	for key, want := range SeedLabels {
		w, err := st.Load(LabelSlot(key))
		if err != nil {
			t.Fatal(err)
		}
		if got := WordLabel(w); got != want {
			t.Fatalf("label %d = %q, want %q", key, got, want)
		}
	}

	// An unknown mapping key reads as the zero word.
	w, err := st.Load(LabelSlot(999))
	if err != nil {
		t.Fatal(err)
	}
	if !w.IsZero() {
		t.Fatalf("unseeded label key should be zero, got %s", w.Hex())
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	st := memstate.New()
	if err := Seed(st); err != nil {
		t.Fatal(err)
	}
	first, err := st.Slots()
	if err != nil {
		t.Fatal(err)
	}
	if err := Seed(st); err != nil {
		t.Fatal(err)
	}
	second, err := st.Slots()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("slot count changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot %d changed across reseed", i)
		}
	}
}

func TestLabelWord_RoundTripAndLimits(t *testing.T) {
	w, err := LabelWord("answer")
	if err != nil {
		t.Fatal(err)
	}
	if got := WordLabel(w); got != "answer" {
		t.Fatalf("round trip %q", got)
	}

	if _, err := LabelWord(""); err == nil {
		t.Fatal("expected empty label to fail")
	}
	long := make([]byte, 33)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := LabelWord(string(long)); err == nil {
		t.Fatal("expected oversized label to fail")
	}
}
