package memstate

import (
	"testing"

	"xdao.co/fundvault/state"
	"xdao.co/fundvault/state/testkit"
)

func TestMemStore_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) state.Backing {
		return New()
	})
}

func TestMemStore_LenTracksLiveSlots(t *testing.T) {
	st := New()
	if st.Len() != 0 {
		t.Fatalf("fresh store Len = %d", st.Len())
	}
	err := st.Apply([]state.Write{
		{Slot: state.ScalarSlot(0), Word: state.Uint64Word(1)},
		{Slot: state.ScalarSlot(1), Word: state.Uint64Word(2)},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if st.Len() != 2 {
		t.Fatalf("Len = %d, want 2", st.Len())
	}
	if err := st.Apply([]state.Write{{Slot: state.ScalarSlot(0), Word: state.Word{}}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("Len after clear = %d, want 1", st.Len())
	}
}
