package ledger

import (
	"fmt"
	"math/big"
	"math/rand"
	"testing"

	"xdao.co/fundvault/feed"
	"xdao.co/fundvault/feed/staticfeed"
	"xdao.co/fundvault/fixedpoint"
	"xdao.co/fundvault/identity"
	"xdao.co/fundvault/state"
	"xdao.co/fundvault/state/memstate"
)

// 2000 stable units per base unit, quoted with 8 decimals.
const testFeedDecimals = 8

var testPrice = big.NewInt(200_000_000_000)

var testOwner = identity.SeedAddress("owner")

func mustStable(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := fixedpoint.ParseStable(s)
	if err != nil {
		t.Fatalf("ParseStable(%q): %v", s, err)
	}
	return v
}

func newTestFeed() *staticfeed.Feed {
	return staticfeed.New(testFeedDecimals, testPrice)
}

func newTestLedger(t *testing.T) (*Ledger, *memstate.Store) {
	t.Helper()
	st := memstate.New()
	l, err := New(st, testOwner, newTestFeed(), mustStable(t, "5"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, st
}

func funder(i int) identity.Address {
	return identity.SeedAddress(fmt.Sprintf("funder-%d", i))
}

func TestNew_Rejects(t *testing.T) {
	st := memstate.New()
	src := newTestFeed()
	min := big.NewInt(1)

	cases := []struct {
		name string
		err  error
		rule string
	}{
		{"nil store", func() error { _, err := New(nil, testOwner, src, min); return err }(), RuleNilStore},
		{"zero owner", func() error { _, err := New(st, identity.Address{}, src, min); return err }(), RuleZeroOwner},
		{"nil source", func() error { _, err := New(st, testOwner, nil, min); return err }(), RuleNilFeed},
		{"nil minimum", func() error { _, err := New(st, testOwner, src, nil); return err }(), RuleBadMinimum},
		{"zero minimum", func() error { _, err := New(st, testOwner, src, big.NewInt(0)); return err }(), RuleBadMinimum},
		{"negative minimum", func() error { _, err := New(st, testOwner, src, big.NewInt(-1)); return err }(), RuleBadMinimum},
	}
	for _, tc := range cases {
		if tc.err == nil {
			t.Fatalf("%s: accepted", tc.name)
		}
		if !IsKind(tc.err, KindConfig) || RuleID(tc.err) != tc.rule {
			t.Fatalf("%s: got kind/rule %v / %s", tc.name, tc.err, RuleID(tc.err))
		}
	}
}

func TestNew_CopiesMinimum(t *testing.T) {
	min := mustStable(t, "5")
	l, err := New(memstate.New(), testOwner, newTestFeed(), min)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	min.SetInt64(1)
	if l.MinimumStable().Cmp(mustStable(t, "5")) != 0 {
		t.Fatalf("minimum aliased caller's value: %s", l.MinimumStable())
	}
	// And the accessor hands out a copy too.
	l.MinimumStable().SetInt64(2)
	if l.MinimumStable().Cmp(mustStable(t, "5")) != 0 {
		t.Fatalf("MinimumStable exposed internal value")
	}
}

func TestQuote_MatchesPrice(t *testing.T) {
	l, _ := newTestLedger(t)

	q, err := l.Quote(mustStable(t, "1"))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Cmp(mustStable(t, "2000")) != 0 {
		t.Fatalf("Quote(1) = %s, want 2000", fixedpoint.FormatStable(q))
	}
	if l.FeedVersion() != staticfeed.DefaultVersion {
		t.Fatalf("FeedVersion = %q", l.FeedVersion())
	}
}

func TestContribute_RecordsAndAccumulates(t *testing.T) {
	l, st := newTestLedger(t)
	alice := funder(1)

	first := mustStable(t, "0.01")
	second := mustStable(t, "0.0025")
	if err := l.Contribute(alice, first); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if err := l.Contribute(alice, second); err != nil {
		t.Fatalf("Contribute: %v", err)
	}

	sum := new(big.Int).Add(first, second)
	got, err := l.ContributionOf(alice)
	if err != nil {
		t.Fatalf("ContributionOf: %v", err)
	}
	if got.Cmp(sum) != 0 {
		t.Fatalf("contribution = %s, want %s", got, sum)
	}

	n, err := l.FunderCount()
	if err != nil {
		t.Fatalf("FunderCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("repeat contributor listed %d times", n)
	}
	at, err := l.FunderAt(0)
	if err != nil {
		t.Fatalf("FunderAt: %v", err)
	}
	if at != alice {
		t.Fatalf("FunderAt(0) = %s", at)
	}
	held, err := l.HeldValue()
	if err != nil {
		t.Fatalf("HeldValue: %v", err)
	}
	if held.Cmp(sum) != 0 {
		t.Fatalf("held = %s, want %s", held, sum)
	}

	// The same values are readable from raw slots, bypassing accessors.
	w, err := st.Load(ContributionSlot(alice))
	if err != nil {
		t.Fatalf("raw load: %v", err)
	}
	if w.Big().Cmp(sum) != 0 {
		t.Fatalf("raw contribution slot = %s", w.Big())
	}
	w, err = st.Load(FunderSlot(0))
	if err != nil {
		t.Fatalf("raw load: %v", err)
	}
	if identity.AddressFromWord(w) != alice {
		t.Fatalf("raw funder slot holds %s", identity.AddressFromWord(w))
	}
	w, err = st.Load(FundersLenSlot())
	if err != nil {
		t.Fatalf("raw load: %v", err)
	}
	if w != state.Uint64Word(1) {
		t.Fatalf("raw length slot = %s", w.Hex())
	}
}

func TestContribute_ExactMinimumAdmitted(t *testing.T) {
	l, _ := newTestLedger(t)
	// 0.0025 base units at 2000 quotes to exactly the 5-unit minimum.
	amt := mustStable(t, "0.0025")

	q, err := l.Quote(amt)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Cmp(l.MinimumStable()) != 0 {
		t.Fatalf("test amount quotes to %s, want exactly the minimum", fixedpoint.FormatStable(q))
	}
	if err := l.Contribute(funder(1), amt); err != nil {
		t.Fatalf("exact-minimum contribution rejected: %v", err)
	}
}

func TestContribute_BelowMinimumLeavesStateUntouched(t *testing.T) {
	l, st := newTestLedger(t)

	// One base-unit wei quotes to 2000 attounits, far below the minimum.
	err := l.Contribute(funder(1), big.NewInt(1))
	if !IsInsufficient(err) {
		t.Fatalf("got %v, want insufficient", err)
	}
	if !IsKind(err, KindContribution) {
		t.Fatalf("kind = %v", err)
	}

	// A wei short of the exact-minimum amount is still short.
	almost := new(big.Int).Sub(mustStable(t, "0.0025"), big.NewInt(1))
	if err := l.Contribute(funder(1), almost); !IsInsufficient(err) {
		t.Fatalf("got %v, want insufficient", err)
	}

	if st.Len() != 0 {
		t.Fatalf("rejected contributions touched %d slots", st.Len())
	}
}

func TestContribute_InvalidAmounts(t *testing.T) {
	l, st := newTestLedger(t)
	for _, amt := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		err := l.Contribute(funder(1), amt)
		if RuleID(err) != RuleAmountNotPositive {
			t.Fatalf("amount %v: got %v", amt, err)
		}
	}
	if st.Len() != 0 {
		t.Fatalf("invalid amounts touched state")
	}
}

// erringSource fails every reading.
type erringSource struct{ err error }

func (s erringSource) Latest() (feed.Reading, error) { return feed.Reading{}, s.err }
func (s erringSource) Version() string               { return "erring-1" }

// malformedSource serves a negative price.
type malformedSource struct{}

func (malformedSource) Latest() (feed.Reading, error) {
	return feed.Reading{Price: big.NewInt(-5), Decimals: 8}, nil
}
func (malformedSource) Version() string { return "malformed-1" }

func TestContribute_FeedFailures(t *testing.T) {
	st := memstate.New()
	l, err := New(st, testOwner, erringSource{err: fmt.Errorf("gateway timeout")}, big.NewInt(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cErr := l.Contribute(funder(1), big.NewInt(1))
	if !IsKind(cErr, KindFeed) || RuleID(cErr) != RuleFeedUnavailable {
		t.Fatalf("unavailable feed: got %v / %s", cErr, RuleID(cErr))
	}

	st2 := memstate.New()
	l2, err := New(st2, testOwner, malformedSource{}, big.NewInt(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cErr = l2.Contribute(funder(1), big.NewInt(1))
	if RuleID(cErr) != RuleFeedMalformed {
		t.Fatalf("malformed feed: got %v / %s", cErr, RuleID(cErr))
	}
	if st.Len() != 0 || st2.Len() != 0 {
		t.Fatalf("feed failure touched state")
	}
}

func TestContribute_AdmissionTracksLivePrice(t *testing.T) {
	src := staticfeed.New(testFeedDecimals, big.NewInt(100_000_000)) // 1.0
	l, err := New(memstate.New(), testOwner, src, mustStable(t, "5"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	amt := mustStable(t, "1") // quotes to 1.0 at the starting price

	if err := l.Contribute(funder(1), amt); !IsInsufficient(err) {
		t.Fatalf("got %v, want insufficient at price 1", err)
	}
	src.SetPrice(big.NewInt(1_000_000_000)) // 10.0
	if err := l.Contribute(funder(1), amt); err != nil {
		t.Fatalf("contribution rejected after price rise: %v", err)
	}
}

func TestFunderAt_OutOfRange(t *testing.T) {
	l, _ := newTestLedger(t)

	if _, err := l.FunderAt(0); !IsOutOfRange(err) {
		t.Fatalf("empty ledger FunderAt(0): %v", err)
	}
	if err := l.Contribute(funder(1), mustStable(t, "1")); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if _, err := l.FunderAt(0); err != nil {
		t.Fatalf("FunderAt(0): %v", err)
	}
	if _, err := l.FunderAt(1); !IsOutOfRange(err) {
		t.Fatalf("FunderAt(1): %v", err)
	}
	if _, err := l.FunderAt(1 << 40); !IsOutOfRange(err) {
		t.Fatalf("FunderAt(huge): %v", err)
	}
}

func TestLedger_ConservationUnderRandomSequence(t *testing.T) {
	l, _ := newTestLedger(t)
	rng := rand.New(rand.NewSource(7))

	unit := mustStable(t, "0.0025") // exactly the minimum
	want := make(map[identity.Address]*big.Int)
	var order []identity.Address
	total := new(big.Int)

	for i := 0; i < 200; i++ {
		who := funder(rng.Intn(8))
		roll := rng.Intn(6)
		switch roll {
		case 0: // zero amount, rejected before quoting
			if err := l.Contribute(who, big.NewInt(0)); RuleID(err) != RuleAmountNotPositive {
				t.Fatalf("zero amount: %v", err)
			}
		case 1: // positive but below the minimum, rejected without mutation
			if err := l.Contribute(who, big.NewInt(1)); !IsInsufficient(err) {
				t.Fatalf("dust amount: %v", err)
			}
		default: // 1..4 units, admitted
			amt := new(big.Int).Mul(unit, big.NewInt(int64(roll-1)))
			if err := l.Contribute(who, amt); err != nil {
				t.Fatalf("Contribute: %v", err)
			}
			if _, ok := want[who]; !ok {
				want[who] = new(big.Int)
				order = append(order, who)
			}
			want[who].Add(want[who], amt)
			total.Add(total, amt)
		}
	}

	held, err := l.HeldValue()
	if err != nil {
		t.Fatalf("HeldValue: %v", err)
	}
	if held.Cmp(total) != 0 {
		t.Fatalf("held %s, want %s", held, total)
	}
	n, err := l.FunderCount()
	if err != nil {
		t.Fatalf("FunderCount: %v", err)
	}
	if n != uint64(len(order)) {
		t.Fatalf("funder count %d, want %d", n, len(order))
	}

	recorded := new(big.Int)
	for i := uint64(0); i < n; i++ {
		addr, err := l.FunderAt(i)
		if err != nil {
			t.Fatalf("FunderAt(%d): %v", i, err)
		}
		if addr != order[i] {
			t.Fatalf("funder %d = %s, want first-contribution order", i, addr)
		}
		c, err := l.ContributionOf(addr)
		if err != nil {
			t.Fatalf("ContributionOf: %v", err)
		}
		if c.Cmp(want[addr]) != 0 {
			t.Fatalf("contribution of %s = %s, want %s", addr, c, want[addr])
		}
		recorded.Add(recorded, c)
	}
	if recorded.Cmp(held) != 0 {
		t.Fatalf("sum of contributions %s != held %s", recorded, held)
	}
}
