package state

import (
	"encoding/hex"
	"math/big"
	"testing"
)

// keccak256 of 32 zero bytes, the data anchor for a dynamic list at
// position 0. Listed in the layout notes of every EVM storage scanner.
const listDataAtZero = "290decd9548b62a8d60345a988386fc84ba6bc95484008f6362f93160ef3e563"

func TestArrayDataSlot_KnownAnchor(t *testing.T) {
	got := hex.EncodeToString(func() []byte { s := ArrayDataSlot(0); return s[:] }())
	if got != listDataAtZero {
		t.Fatalf("ArrayDataSlot(0) = %s, want %s", got, listDataAtZero)
	}
}

func TestScalarSlot_IsPositionWord(t *testing.T) {
	for _, pos := range []uint64{0, 1, 2, 255, 1 << 40} {
		s := ScalarSlot(pos)
		if Word(s).Big().Uint64() != pos {
			t.Fatalf("ScalarSlot(%d) encodes %s", pos, Word(s).Big())
		}
	}
}

func TestArrayElemSlot_MatchesBigIntAddition(t *testing.T) {
	mod := new(big.Int).Lsh(big.NewInt(1), 256)
	for _, pos := range []uint64{0, 1, 7} {
		base := ArrayDataSlot(pos)
		baseInt := Word(base).Big()
		for _, i := range []uint64{0, 1, 2, 31, 32, 1000} {
			got := ArrayElemSlot(pos, i)
			want := new(big.Int).Add(baseInt, new(big.Int).SetUint64(i))
			want.Mod(want, mod)
			if got != Slot(mustBigWord(t, want)) {
				t.Fatalf("elem(%d,%d) = %s, want %s", pos, i, Word(got).Big(), want)
			}
		}
	}
}

func TestSlotAdd_WrapsModulo(t *testing.T) {
	var all Slot
	for i := range all {
		all[i] = 0xff
	}
	got := slotAdd(all, 1)
	var zero Slot
	if got != zero {
		t.Fatalf("2^256-1 + 1 should wrap to zero, got %s", got.Hex())
	}

	// Carry must ripple through a run of 0xff bytes.
	almost := ScalarSlot(0)
	for i := 24; i < 32; i++ {
		almost[i] = 0xff
	}
	sum := slotAdd(almost, 1)
	want := new(big.Int).Add(Word(almost).Big(), big.NewInt(1))
	if Word(sum).Big().Cmp(want) != 0 {
		t.Fatalf("carry ripple: got %s, want %s", Word(sum).Big(), want)
	}
}

func TestMappingValueSlot_Deterministic(t *testing.T) {
	var key Word
	key[31] = 0x07
	a := MappingValueSlot(3, key)
	b := MappingValueSlot(3, key)
	if a != b {
		t.Fatalf("same inputs derived different slots")
	}

	var other Word
	other[31] = 0x08
	if MappingValueSlot(3, other) == a {
		t.Fatalf("distinct keys collided")
	}
	if MappingValueSlot(4, key) == a {
		t.Fatalf("distinct positions collided")
	}
}

func TestDerivedSlots_DoNotCollideWithScalars(t *testing.T) {
	seen := map[Slot]string{
		ScalarSlot(0): "scalar 0",
		ScalarSlot(1): "scalar 1",
		ScalarSlot(2): "scalar 2",
	}
	add := func(s Slot, name string) {
		if prev, ok := seen[s]; ok {
			t.Fatalf("%s collides with %s", name, prev)
		}
		seen[s] = name
	}
	add(ArrayDataSlot(1), "list data 1")
	add(ArrayElemSlot(1, 1), "list elem 1,1")
	var key Word
	key[31] = 1
	add(MappingValueSlot(0, key), "mapping 0/1")
}

func mustBigWord(t *testing.T, v *big.Int) Word {
	t.Helper()
	w, err := BigWord(v)
	if err != nil {
		t.Fatalf("BigWord(%s): %v", v, err)
	}
	return w
}
