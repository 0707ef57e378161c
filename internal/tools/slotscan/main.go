// slotscan walks a raw slot store with nothing but Load and the layout
// rules, demonstrating that every value is locatable from a dump without
// going through accessors.
//
// Two layouts are understood: the contribution ledger, and the demostate
// playground schema. For the ledger, mapping keys (funder addresses) are
// recovered from the funder list, so the whole state is reachable. For the
// demo schema the label mapping is only probed at its known seeded keys;
// mapping slots are one-way, which is exactly what this tool makes visible.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"xdao.co/fundvault/identity"
	"xdao.co/fundvault/internal/demostate"
	"xdao.co/fundvault/ledger"
	"xdao.co/fundvault/state"
	"xdao.co/fundvault/state/stateregistry"

	_ "xdao.co/fundvault/state/grpcstate"
	_ "xdao.co/fundvault/state/ldbstate"
	_ "xdao.co/fundvault/state/memstate"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// loader is the only store capability the scanner uses.
type loader interface {
	Load(state.Slot) (state.Word, error)
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("slotscan", flag.ContinueOnError)
	fs.SetOutput(errOut)
	backend := fs.String("backend", "ldb", "State backend name")
	layout := fs.String("layout", "ledger", "Layout to decode: ledger or demo")
	seedDemo := fs.Bool("seed-demo", false, "Seed the demo population before scanning (layout=demo only)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	stateregistry.RegisterFlags(fs, stateregistry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *listBackends {
		for _, b := range stateregistry.List(stateregistry.UsageCLI) {
			fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}
	if *layout != "ledger" && *layout != "demo" {
		fmt.Fprintf(errOut, "unknown layout %q (want ledger or demo)\n", *layout)
		return 2
	}
	if *seedDemo && *layout != "demo" {
		fmt.Fprintln(errOut, "--seed-demo only applies to --layout demo")
		return 2
	}

	store, closeFn, err := stateregistry.Open(*backend, stateregistry.UsageCLI)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	if *seedDemo {
		if err := demostate.Seed(store); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	}

	fmt.Fprintln(out, "# slot  word  decoded")
	switch *layout {
	case "ledger":
		err = scanLedger(store, out)
	case "demo":
		err = scanDemo(store, out)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

// scanLedger decodes the contribution ledger layout: the funder list is
// walked from its length slot, recovered addresses unlock the contribution
// mapping, and the running total sits at its fixed scalar slot.
func scanLedger(st loader, out io.Writer) error {
	lenSlot := ledger.FundersLenSlot()
	w, err := st.Load(lenSlot)
	if err != nil {
		return err
	}
	n, err := w.Uint64()
	if err != nil {
		return fmt.Errorf("funder length word %s: %w", w.Hex(), err)
	}
	emit(out, lenSlot, w, fmt.Sprintf("funders.length = %d", n))

	addrs := make([]identity.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		s := ledger.FunderSlot(i)
		ew, err := st.Load(s)
		if err != nil {
			return err
		}
		addr := identity.AddressFromWord(ew)
		addrs = append(addrs, addr)
		emit(out, s, ew, fmt.Sprintf("funders[%d] = %s", i, addr))
	}

	for _, addr := range addrs {
		s := ledger.ContributionSlot(addr)
		cw, err := st.Load(s)
		if err != nil {
			return err
		}
		emit(out, s, cw, fmt.Sprintf("contributions[%s] = %s", addr, cw.Big()))
	}

	heldSlot := ledger.HeldValueSlot()
	hw, err := st.Load(heldSlot)
	if err != nil {
		return err
	}
	emit(out, heldSlot, hw, fmt.Sprintf("heldValue = %s", hw.Big()))
	return nil
}

// scanDemo decodes the demostate playground layout, probing the label
// mapping at its known seeded keys.
func scanDemo(st loader, out io.Writer) error {
	s := demostate.CounterSlot()
	w, err := st.Load(s)
	if err != nil {
		return err
	}
	emit(out, s, w, fmt.Sprintf("counter = %s", w.Big()))

	lenSlot := demostate.NumbersLenSlot()
	lw, err := st.Load(lenSlot)
	if err != nil {
		return err
	}
	n, err := lw.Uint64()
	if err != nil {
		return fmt.Errorf("numbers length word %s: %w", lw.Hex(), err)
	}
	emit(out, lenSlot, lw, fmt.Sprintf("numbers.length = %d", n))

	for i := uint64(0); i < n; i++ {
		es := demostate.NumberSlot(i)
		ew, err := st.Load(es)
		if err != nil {
			return err
		}
		emit(out, es, ew, fmt.Sprintf("numbers[%d] = %s", i, ew.Big()))
	}

	keys := make([]uint64, 0, len(demostate.SeedLabels))
	for k := range demostate.SeedLabels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		ls := demostate.LabelSlot(k)
		lw, err := st.Load(ls)
		if err != nil {
			return err
		}
		if lw.IsZero() {
			emit(out, ls, lw, fmt.Sprintf("labels[%d] = (unset)", k))
			continue
		}
		emit(out, ls, lw, fmt.Sprintf("labels[%d] = %q", k, demostate.WordLabel(lw)))
	}
	return nil
}

func emit(out io.Writer, s state.Slot, w state.Word, decoded string) {
	fmt.Fprintf(out, "%s  %s  %s\n", s.Hex(), w.Hex(), decoded)
}
