package bundle_test

import (
	"archive/tar"
	"bytes"
	"math/big"
	"strings"
	"testing"
	"time"

	"xdao.co/fundvault/feed/staticfeed"
	"xdao.co/fundvault/fixedpoint"
	"xdao.co/fundvault/identity"
	"xdao.co/fundvault/ledger"
	"xdao.co/fundvault/snapshot"
	"xdao.co/fundvault/snapshot/bundle"
	"xdao.co/fundvault/state/memstate"
)

var owner = identity.SeedAddress("owner")

// newFundedLedger returns a ledger with two funders (one repeat contributor)
// over a fresh in-memory store.
func newFundedLedger(t *testing.T) (*ledger.Ledger, *memstate.Store) {
	t.Helper()

	st := memstate.New()
	src := staticfeed.New(8, big.NewInt(200_000_000_000))
	min, err := fixedpoint.ParseStable("5")
	if err != nil {
		t.Fatal(err)
	}
	l, err := ledger.New(st, owner, src, min)
	if err != nil {
		t.Fatal(err)
	}

	unit, err := fixedpoint.ParseStable("0.0025")
	if err != nil {
		t.Fatal(err)
	}
	alice := identity.SeedAddress("alice")
	bob := identity.SeedAddress("bob")
	for _, who := range []identity.Address{alice, bob, alice} {
		if err := l.Contribute(who, unit); err != nil {
			t.Fatal(err)
		}
	}
	return l, st
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	l, st := newFundedLedger(t)

	opts := bundle.ExportOptions{
		IncludeIndex: true,
		Labels:       map[string]string{"env": "local", "audit": "q3"},
	}
	var outA bytes.Buffer
	if err := bundle.Export(&outA, l, st, opts); err != nil {
		t.Fatal(err)
	}
	var outB bytes.Buffer
	if err := bundle.Export(&outB, l, st, opts); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
}

func TestBundle_ImportRoundTrip(t *testing.T) {
	l, src := newFundedLedger(t)

	var buf bytes.Buffer
	if err := bundle.Export(&buf, l, src, bundle.ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatal(err)
	}

	dst := memstate.New()
	snap, err := bundle.Import(bytes.NewReader(buf.Bytes()), dst)
	if err != nil {
		t.Fatal(err)
	}

	want, err := snapshot.Capture(l)
	if err != nil {
		t.Fatal(err)
	}
	wantBytes, err := snapshot.Render(want)
	if err != nil {
		t.Fatal(err)
	}
	gotBytes, err := snapshot.Render(snap)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(wantBytes, gotBytes) {
		t.Fatalf("imported snapshot differs from captured state")
	}

	srcSlots, err := src.Slots()
	if err != nil {
		t.Fatal(err)
	}
	dstSlots, err := dst.Slots()
	if err != nil {
		t.Fatal(err)
	}
	if len(srcSlots) != len(dstSlots) {
		t.Fatalf("restored %d slots, want %d", len(dstSlots), len(srcSlots))
	}
	for i := range srcSlots {
		if srcSlots[i] != dstSlots[i] {
			t.Fatalf("slot %d differs after import", i)
		}
	}

	// A ledger over the restored store serves the same values.
	restored, err := ledger.New(dst, snap.Owner, staticfeed.New(8, big.NewInt(200_000_000_000)), snap.MinimumStable)
	if err != nil {
		t.Fatal(err)
	}
	held, err := restored.HeldValue()
	if err != nil {
		t.Fatal(err)
	}
	if held.Cmp(want.HeldValue) != 0 {
		t.Fatalf("restored held value %s, want %s", held, want.HeldValue)
	}
	alice := identity.SeedAddress("alice")
	got, err := restored.ContributionOf(alice)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(want.Contributions[alice]) != 0 {
		t.Fatalf("restored contribution %s, want %s", got, want.Contributions[alice])
	}
}

func TestBundle_EmptyLedgerRoundTrip(t *testing.T) {
	st := memstate.New()
	min, err := fixedpoint.ParseStable("5")
	if err != nil {
		t.Fatal(err)
	}
	l, err := ledger.New(st, owner, staticfeed.New(8, big.NewInt(200_000_000_000)), min)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := bundle.Export(&buf, l, st, bundle.ExportOptions{}); err != nil {
		t.Fatal(err)
	}

	dst := memstate.New()
	snap, err := bundle.Import(bytes.NewReader(buf.Bytes()), dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Funders) != 0 || snap.HeldValue.Sign() != 0 {
		t.Fatalf("expected empty state, got %+v", snap)
	}
	if dst.Len() != 0 {
		t.Fatalf("expected no live slots, got %d", dst.Len())
	}
}

func TestBundle_ImportRejectsTamperedSlots(t *testing.T) {
	l, st := newFundedLedger(t)

	var buf bytes.Buffer
	if err := bundle.Export(&buf, l, st, bundle.ExportOptions{}); err != nil {
		t.Fatal(err)
	}
	entries := readEntries(t, buf.Bytes())

	slots := entries[bundle.SlotsEntry]
	if len(slots) == 0 {
		t.Fatal("expected nonempty slot dump")
	}
	slots[len(slots)-1] ^= 0x01

	tampered := makeDeterministicTar(t, []tarEntry{
		{bundle.SnapshotEntry, entries[bundle.SnapshotEntry]},
		{bundle.SlotsEntry, slots},
	})

	dst := memstate.New()
	if _, err := bundle.Import(bytes.NewReader(tampered), dst); err == nil {
		t.Fatal("expected import of tampered slot dump to fail")
	}
	if dst.Len() != 0 {
		t.Fatalf("failed import must leave the store untouched, got %d slots", dst.Len())
	}
}

func TestBundle_ImportRejectsUnorderedSlots(t *testing.T) {
	l, st := newFundedLedger(t)

	var buf bytes.Buffer
	if err := bundle.Export(&buf, l, st, bundle.ExportOptions{}); err != nil {
		t.Fatal(err)
	}
	entries := readEntries(t, buf.Bytes())

	slots := entries[bundle.SlotsEntry]
	if len(slots) < 128 {
		t.Fatalf("expected at least two slot records, got %d bytes", len(slots))
	}
	swapped := make([]byte, len(slots))
	copy(swapped, slots[64:128])
	copy(swapped[64:], slots[:64])
	copy(swapped[128:], slots[128:])

	tampered := makeDeterministicTar(t, []tarEntry{
		{bundle.SnapshotEntry, entries[bundle.SnapshotEntry]},
		{bundle.SlotsEntry, swapped},
	})

	if _, err := bundle.Import(bytes.NewReader(tampered), memstate.New()); err == nil ||
		!strings.Contains(err.Error(), "ascending") {
		t.Fatalf("expected ascending-order error, got %v", err)
	}
}

func TestBundle_ImportRejectsUnknownEntry(t *testing.T) {
	l, st := newFundedLedger(t)

	var buf bytes.Buffer
	if err := bundle.Export(&buf, l, st, bundle.ExportOptions{}); err != nil {
		t.Fatal(err)
	}
	entries := readEntries(t, buf.Bytes())

	withExtra := makeDeterministicTar(t, []tarEntry{
		{bundle.SnapshotEntry, entries[bundle.SnapshotEntry]},
		{bundle.SlotsEntry, entries[bundle.SlotsEntry]},
		{"notes.txt", []byte("out of band")},
	})

	if _, err := bundle.Import(bytes.NewReader(withExtra), memstate.New()); err == nil {
		t.Fatal("expected unknown entry to fail closed")
	}
	if _, err := bundle.ImportWithOptions(bytes.NewReader(withExtra), memstate.New(), bundle.ImportOptions{IgnoreUnknown: true}); err != nil {
		t.Fatalf("IgnoreUnknown import: %v", err)
	}
}

func TestBundle_ImportRequiresBothEntries(t *testing.T) {
	l, st := newFundedLedger(t)

	var buf bytes.Buffer
	if err := bundle.Export(&buf, l, st, bundle.ExportOptions{}); err != nil {
		t.Fatal(err)
	}
	entries := readEntries(t, buf.Bytes())

	onlySnapshot := makeDeterministicTar(t, []tarEntry{
		{bundle.SnapshotEntry, entries[bundle.SnapshotEntry]},
	})
	if _, err := bundle.Import(bytes.NewReader(onlySnapshot), memstate.New()); err == nil {
		t.Fatal("expected missing slot dump to fail")
	}

	onlySlots := makeDeterministicTar(t, []tarEntry{
		{bundle.SlotsEntry, entries[bundle.SlotsEntry]},
	})
	if _, err := bundle.Import(bytes.NewReader(onlySlots), memstate.New()); err == nil {
		t.Fatal("expected missing snapshot to fail")
	}
}

func TestBundle_ImportRejectsDuplicateEntry(t *testing.T) {
	l, st := newFundedLedger(t)

	var buf bytes.Buffer
	if err := bundle.Export(&buf, l, st, bundle.ExportOptions{}); err != nil {
		t.Fatal(err)
	}
	entries := readEntries(t, buf.Bytes())

	doubled := makeDeterministicTar(t, []tarEntry{
		{bundle.SnapshotEntry, entries[bundle.SnapshotEntry]},
		{bundle.SlotsEntry, entries[bundle.SlotsEntry]},
		{bundle.SlotsEntry, entries[bundle.SlotsEntry]},
	})

	if _, err := bundle.Import(bytes.NewReader(doubled), memstate.New()); err == nil ||
		!strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate entry error, got %v", err)
	}
}

type tarEntry struct {
	name    string
	content []byte
}

func makeDeterministicTar(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		h := &tar.Header{
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.content)),
			Uid:      0,
			Gid:      0,
			Uname:    "",
			Gname:    "",
			ModTime:  time.Unix(0, 0).UTC(),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(e.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readEntries(t *testing.T, b []byte) map[string][]byte {
	t.Helper()

	out := map[string][]byte{}
	tr := tar.NewReader(bytes.NewReader(b))
	for {
		h, err := tr.Next()
		if err != nil {
			break
		}
		var content bytes.Buffer
		if _, err := content.ReadFrom(tr); err != nil {
			t.Fatal(err)
		}
		out[h.Name] = content.Bytes()
	}
	return out
}
