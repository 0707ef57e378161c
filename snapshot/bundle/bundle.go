// Package bundle implements deterministic audit bundles of ledger state.
//
// A bundle is a TAR archive holding the canonical snapshot, a raw dump of
// every live slot, and an index manifest. Entry order, TAR headers, and the
// slot dump are all normalized, so two exports of the same state are
// byte-identical. Import is fail-closed: the slot dump must agree exactly
// with the snapshot under the ledger layout rules before anything is
// applied to the target store.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"xdao.co/fundvault/cidutil"
	"xdao.co/fundvault/ledger"
	"xdao.co/fundvault/snapshot"
	"xdao.co/fundvault/state"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

// Bundle entry names.
const (
	SnapshotEntry = "state.snapshot"
	SlotsEntry    = "slots.bin"
	IndexEntry    = "index.json"
)

const slotRecordSize = 64

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels is optional, non-authoritative metadata (environment name, say).
	Labels map[string]string
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Export writes a deterministic TAR bundle of l's state.
//
// The snapshot is captured through the ledger's accessors; the slot dump is
// enumerated from the backing store. Both views describe the same state, and
// Import re-checks that they agree.
func Export(w io.Writer, l *ledger.Ledger, store state.Enumerator, opts ExportOptions) error {
	if l == nil {
		return fmt.Errorf("bundle: nil ledger")
	}
	if store == nil {
		return fmt.Errorf("bundle: nil store")
	}

	snap, err := snapshot.Capture(l)
	if err != nil {
		return err
	}
	snapBytes, err := snapshot.Render(snap)
	if err != nil {
		return err
	}

	writes, err := store.Slots()
	if err != nil {
		return err
	}
	slotBytes := encodeSlots(writes)

	tw := tar.NewWriter(w)
	if err := writeFile(tw, SnapshotEntry, snapBytes); err != nil {
		_ = tw.Close()
		return err
	}
	if err := writeFile(tw, SlotsEntry, slotBytes); err != nil {
		_ = tw.Close()
		return err
	}

	if opts.IncludeIndex {
		snapCID, err := cidutil.Sum(snapBytes)
		if err != nil {
			_ = tw.Close()
			return err
		}
		slotsCID, err := cidutil.Sum(slotBytes)
		if err != nil {
			_ = tw.Close()
			return err
		}
		idx := indexJSON{
			Version:  FormatVersion,
			Schema:   snapshot.SchemaV1,
			Snapshot: indexEntry{CID: snapCID.String(), Size: len(snapBytes)},
			Slots:    indexEntry{CID: slotsCID.String(), Size: len(slotBytes), Count: len(writes)},
		}

		if len(opts.Labels) > 0 {
			keys := make([]string, 0, len(opts.Labels))
			for k := range opts.Labels {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			labels := make([]indexLabel, 0, len(keys))
			for _, k := range keys {
				if k == "" {
					_ = tw.Close()
					return fmt.Errorf("bundle: empty label key")
				}
				labels = append(labels, indexLabel{Name: k, Value: opts.Labels[k]})
			}
			idx.Labels = labels
		}

		b, err := marshalCanonicalIndexJSON(idx)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeFile(tw, IndexEntry, b); err != nil {
			_ = tw.Close()
			return err
		}
	}

	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Import reads a bundle from r and applies its slots to store.
//
// Default behavior is fail-closed: unknown entries cause an error.
// Use ImportWithOptions to allow ignoring unknown entries.
func Import(r io.Reader, store state.Backing) (*snapshot.State, error) {
	return ImportWithOptions(r, store, ImportOptions{})
}

// ImportWithOptions reads a bundle from r, cross-checks the slot dump
// against the snapshot under the ledger layout rules, and applies all slots
// to store in one atomic batch. The parsed snapshot is returned so callers
// can rebuild a matching Ledger.
//
// The target store is only written after every check passes; a failed
// import leaves it untouched.
func ImportWithOptions(r io.Reader, store state.Backing, opts ImportOptions) (*snapshot.State, error) {
	if store == nil {
		return nil, fmt.Errorf("bundle: nil store")
	}

	tr := tar.NewReader(r)
	var snapBytes, slotBytes []byte
	seen := map[string]struct{}{}

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		switch name {
		case SnapshotEntry, SlotsEntry:
			if _, ok := seen[name]; ok {
				return nil, fmt.Errorf("bundle: duplicate entry: %s", name)
			}
			seen[name] = struct{}{}
			b, rerr := io.ReadAll(tr)
			if rerr != nil {
				return nil, rerr
			}
			if name == SnapshotEntry {
				snapBytes = b
			} else {
				slotBytes = b
			}
		case IndexEntry:
			// Non-authoritative metadata.
			_, _ = io.Copy(io.Discard, tr)
		default:
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}
	}

	if snapBytes == nil {
		return nil, fmt.Errorf("bundle: missing %s entry", SnapshotEntry)
	}
	if slotBytes == nil {
		return nil, fmt.Errorf("bundle: missing %s entry", SlotsEntry)
	}

	snap, err := snapshot.Parse(snapBytes)
	if err != nil {
		return nil, fmt.Errorf("bundle: snapshot: %w", err)
	}
	writes, err := decodeSlots(slotBytes)
	if err != nil {
		return nil, err
	}
	if err := crossCheck(snap, writes); err != nil {
		return nil, err
	}

	if err := store.Apply(writes); err != nil {
		return nil, err
	}
	return snap, nil
}

// crossCheck verifies that the slot dump is exactly the raw form of the
// snapshot under the ledger layout rules: same slots, same words, nothing
// extra, nothing missing.
func crossCheck(snap *snapshot.State, writes []state.Write) error {
	want := make(map[state.Slot]state.Word)
	if n := len(snap.Funders); n > 0 {
		want[ledger.FundersLenSlot()] = state.Uint64Word(uint64(n))
	}
	for i, addr := range snap.Funders {
		want[ledger.FunderSlot(uint64(i))] = state.Word(addr.Word())
		w, err := state.BigWord(snap.Contributions[addr])
		if err != nil {
			return fmt.Errorf("bundle: contribution of %s: %w", addr, err)
		}
		want[ledger.ContributionSlot(addr)] = w
	}
	if snap.HeldValue.Sign() != 0 {
		w, err := state.BigWord(snap.HeldValue)
		if err != nil {
			return fmt.Errorf("bundle: held value: %w", err)
		}
		want[ledger.HeldValueSlot()] = w
	}

	if len(writes) != len(want) {
		return fmt.Errorf("bundle: slot dump has %d slots, snapshot implies %d", len(writes), len(want))
	}
	for _, wr := range writes {
		expect, ok := want[wr.Slot]
		if !ok {
			return fmt.Errorf("bundle: slot %s not derivable from the snapshot", wr.Slot.Hex())
		}
		if wr.Word != expect {
			return fmt.Errorf("bundle: slot %s holds %s, snapshot implies %s", wr.Slot.Hex(), wr.Word.Hex(), expect.Hex())
		}
	}
	return nil
}

// encodeSlots packs live slots as concatenated slot||word records.
func encodeSlots(writes []state.Write) []byte {
	out := make([]byte, 0, len(writes)*slotRecordSize)
	for _, w := range writes {
		out = append(out, w.Slot[:]...)
		out = append(out, w.Word[:]...)
	}
	return out
}

// decodeSlots unpacks records encoded by encodeSlots, enforcing strictly
// ascending slot order and nonzero words.
func decodeSlots(b []byte) ([]state.Write, error) {
	if len(b)%slotRecordSize != 0 {
		return nil, fmt.Errorf("bundle: slot dump length %d not a multiple of %d", len(b), slotRecordSize)
	}
	writes := make([]state.Write, 0, len(b)/slotRecordSize)
	for off := 0; off < len(b); off += slotRecordSize {
		var w state.Write
		copy(w.Slot[:], b[off:off+32])
		copy(w.Word[:], b[off+32:off+slotRecordSize])
		if w.Word.IsZero() {
			return nil, fmt.Errorf("bundle: zero word for slot %s", w.Slot.Hex())
		}
		if n := len(writes); n > 0 && !state.SlotLess(writes[n-1].Slot, w.Slot) {
			return nil, fmt.Errorf("bundle: slot dump not in ascending order at %s", w.Slot.Hex())
		}
		writes = append(writes, w)
	}
	return writes, nil
}

type indexJSON struct {
	Version  int          `json:"version"`
	Schema   string       `json:"schema"`
	Snapshot indexEntry   `json:"snapshot"`
	Slots    indexEntry   `json:"slots"`
	Labels   []indexLabel `json:"labels,omitempty"`
}

type indexEntry struct {
	CID   string `json:"cid"`
	Size  int    `json:"size"`
	Count int    `json:"count,omitempty"`
}

type indexLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func marshalCanonicalIndexJSON(idx indexJSON) ([]byte, error) {
	// indexJSON is composed only of structs + slices; encoding/json will be deterministic.
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}

	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			return ""
		}
		if part == ".." {
			return ""
		}
		out = append(out, part)
	}
	return strings.Join(out, "/")
}
