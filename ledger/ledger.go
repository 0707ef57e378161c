// Package ledger implements a contribution ledger with oracle-gated
// admission and owner-only withdrawal.
//
// Contributions are accepted when their quoted stable value meets a fixed
// minimum. Withdrawal clears every funder record and the running total
// before handing the total to a transfer collaborator; if the collaborator
// fails, the clearing is rolled back and the ledger is unchanged.
//
// All durable state lives in raw 32-byte slots with positions fixed by
// layout.go, so external tools can audit a ledger's store directly.
//
// A Ledger is not safe for concurrent use. Collaborators invoked during a
// withdrawal may call back into the same ledger from the same goroutine;
// such calls observe the drained, not-yet-committed state.
package ledger

import (
	"fmt"
	"math/big"

	"xdao.co/fundvault/feed"
	"xdao.co/fundvault/fixedpoint"
	"xdao.co/fundvault/identity"
	"xdao.co/fundvault/state"
)

// Transferor moves the withdrawn total to the owner. Implementations may
// call back into the ledger; they run while the clearing writes are
// buffered but not yet committed.
type Transferor interface {
	Transfer(to identity.Address, amount *big.Int) error
}

// TransferorFunc adapts a function to the Transferor interface.
type TransferorFunc func(to identity.Address, amount *big.Int) error

func (f TransferorFunc) Transfer(to identity.Address, amount *big.Int) error {
	return f(to, amount)
}

// Receipt summarizes a completed withdrawal.
type Receipt struct {
	// Total is the held value handed to the transferor.
	Total *big.Int
	// Funders is the number of funder records cleared.
	Funders uint64
}

// Ledger is a contribution ledger bound to one store, one owner, one price
// source, and one admission minimum.
type Ledger struct {
	store   state.Backing
	owner   identity.Address
	source  feed.Source
	minimum *big.Int

	// cur is the active frame: the store, or the open journal while a
	// mutation is in progress. Reads always go through cur so reentrant
	// callers observe in-progress state.
	cur state.Backing
}

// New constructs a ledger.
//
// minimum is the admission threshold in stable units with
// fixedpoint.StableDecimals decimals; it must be positive.
func New(store state.Backing, owner identity.Address, source feed.Source, minimum *big.Int) (*Ledger, error) {
	if store == nil {
		return nil, newError(KindConfig, RuleNilStore, "ledger: nil store")
	}
	if owner == (identity.Address{}) {
		return nil, newError(KindConfig, RuleZeroOwner, "ledger: zero owner address")
	}
	if source == nil {
		return nil, newError(KindConfig, RuleNilFeed, "ledger: nil price source")
	}
	if minimum == nil || minimum.Sign() <= 0 {
		return nil, newError(KindConfig, RuleBadMinimum, "ledger: minimum must be positive")
	}
	l := &Ledger{
		store:   store,
		owner:   owner,
		source:  source,
		minimum: new(big.Int).Set(minimum),
	}
	l.cur = store
	return l, nil
}

// Owner returns the withdrawal-authorized address.
func (l *Ledger) Owner() identity.Address { return l.owner }

// MinimumStable returns the admission threshold in stable units.
func (l *Ledger) MinimumStable() *big.Int { return new(big.Int).Set(l.minimum) }

// FeedVersion returns the price source's version string.
func (l *Ledger) FeedVersion() string { return l.source.Version() }

// Quote converts a base-unit amount to stable units at the current price.
// The reading is taken at face value; no staleness or deviation policy is
// applied here.
func (l *Ledger) Quote(amount *big.Int) (*big.Int, error) {
	r, err := l.source.Latest()
	if err != nil {
		return nil, wrapError(KindFeed, RuleFeedUnavailable, "ledger: price feed unavailable", err)
	}
	if err := r.Validate(); err != nil {
		return nil, wrapError(KindFeed, RuleFeedMalformed, "ledger: malformed price reading", err)
	}
	return fixedpoint.StableValue(amount, r.Price, r.Decimals), nil
}

// Contribute records amount against caller. The amount must be positive and
// its quoted stable value must meet the minimum; otherwise the ledger is
// unchanged. A caller contributing for the first time is appended to the
// funder list; repeat contributions accumulate without a second entry.
func (l *Ledger) Contribute(caller identity.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return newError(KindContribution, RuleAmountNotPositive, "ledger: contribution amount must be positive")
	}
	quoted, err := l.Quote(amount)
	if err != nil {
		return err
	}
	if quoted.Cmp(l.minimum) < 0 {
		return newError(KindContribution, RuleInsufficient, fmt.Sprintf(
			"ledger: quoted stable value %s below minimum %s",
			fixedpoint.FormatStable(quoted), fixedpoint.FormatStable(l.minimum)))
	}

	j, restore := l.beginFrame()
	defer restore()

	caSlot := ContributionSlot(caller)
	prev, err := j.Load(caSlot)
	if err != nil {
		return wrapError(KindState, RuleStateFailed, "ledger: load contribution", err)
	}
	next := new(big.Int).Add(prev.Big(), amount)
	if err := j.SetBig(caSlot, next); err != nil {
		return wrapError(KindState, RuleStateFailed, "ledger: record contribution", err)
	}

	if prev.IsZero() {
		n, err := funderCount(j)
		if err != nil {
			return err
		}
		j.Set(FunderSlot(n), state.Word(caller.Word()))
		j.Set(FundersLenSlot(), state.Uint64Word(n+1))
	}

	held, err := j.Load(HeldValueSlot())
	if err != nil {
		return wrapError(KindState, RuleStateFailed, "ledger: load held value", err)
	}
	if err := j.SetBig(HeldValueSlot(), new(big.Int).Add(held.Big(), amount)); err != nil {
		return wrapError(KindState, RuleStateFailed, "ledger: record held value", err)
	}

	if err := j.Commit(); err != nil {
		return wrapError(KindState, RuleStateFailed, "ledger: commit contribution", err)
	}
	return nil
}

// Withdraw clears the ledger and hands the held total to t.
//
// This variant re-reads the funder list length on every loop iteration, so
// a store serving n funders sees n+1 length loads. WithdrawCached is the
// cheaper equivalent; both produce identical final state.
func (l *Ledger) Withdraw(caller identity.Address, t Transferor) (Receipt, error) {
	return l.sweep(caller, t, false)
}

// WithdrawCached is Withdraw with the funder list length read once up
// front instead of once per iteration.
func (l *Ledger) WithdrawCached(caller identity.Address, t Transferor) (Receipt, error) {
	return l.sweep(caller, t, true)
}

func (l *Ledger) sweep(caller identity.Address, t Transferor, cacheLen bool) (Receipt, error) {
	if t == nil {
		return Receipt{}, newError(KindTransfer, RuleNilTransferor, "ledger: nil transferor")
	}
	if caller != l.owner {
		return Receipt{}, newError(KindAuth, RuleUnauthorized, "ledger: caller is not the owner")
	}

	j, restore := l.beginFrame()
	defer restore()

	held, err := j.Load(HeldValueSlot())
	if err != nil {
		return Receipt{}, wrapError(KindState, RuleStateFailed, "ledger: load held value", err)
	}
	total := held.Big()

	var drained uint64
	if cacheLen {
		n, err := funderCount(j)
		if err != nil {
			return Receipt{}, err
		}
		for ; drained < n; drained++ {
			if err := drainFunder(j, drained); err != nil {
				return Receipt{}, err
			}
		}
	} else {
		for {
			n, err := funderCount(j)
			if err != nil {
				return Receipt{}, err
			}
			if drained >= n {
				break
			}
			if err := drainFunder(j, drained); err != nil {
				return Receipt{}, err
			}
			drained++
		}
	}

	j.Set(FundersLenSlot(), state.Word{})
	j.Set(HeldValueSlot(), state.Word{})

	// The collaborator runs against the drained frame: reentrant reads see
	// zero held value and an empty funder list.
	if err := t.Transfer(l.owner, new(big.Int).Set(total)); err != nil {
		j.Discard()
		return Receipt{}, wrapError(KindTransfer, RuleTransferFailed,
			"ledger: transfer failed, withdrawal rolled back", err)
	}

	if err := j.Commit(); err != nil {
		return Receipt{}, wrapError(KindState, RuleStateFailed, "ledger: commit withdrawal", err)
	}
	return Receipt{Total: total, Funders: drained}, nil
}

// HeldValue returns the running total of admitted contributions.
func (l *Ledger) HeldValue() (*big.Int, error) {
	w, err := l.cur.Load(HeldValueSlot())
	if err != nil {
		return nil, wrapError(KindState, RuleStateFailed, "ledger: load held value", err)
	}
	return w.Big(), nil
}

// FunderCount returns the funder list length.
func (l *Ledger) FunderCount() (uint64, error) {
	return funderCount(l.cur)
}

// FunderAt returns the i'th funder address. Indexes at or past the list
// length fail with RuleIndexOutOfRange.
func (l *Ledger) FunderAt(i uint64) (identity.Address, error) {
	n, err := funderCount(l.cur)
	if err != nil {
		return identity.Address{}, err
	}
	if i >= n {
		return identity.Address{}, newError(KindRange, RuleIndexOutOfRange, fmt.Sprintf(
			"ledger: funder index %d out of range (count %d)", i, n))
	}
	w, err := l.cur.Load(FunderSlot(i))
	if err != nil {
		return identity.Address{}, wrapError(KindState, RuleStateFailed, "ledger: load funder", err)
	}
	return identity.AddressFromWord(w), nil
}

// ContributionOf returns caller's cumulative admitted contribution.
func (l *Ledger) ContributionOf(caller identity.Address) (*big.Int, error) {
	w, err := l.cur.Load(ContributionSlot(caller))
	if err != nil {
		return nil, wrapError(KindState, RuleStateFailed, "ledger: load contribution", err)
	}
	return w.Big(), nil
}

// beginFrame opens a journal over the active frame and installs it as the
// frame. The returned restore func reinstates the previous frame; callers
// must defer it.
func (l *Ledger) beginFrame() (*state.Journal, func()) {
	prev := l.cur
	j := state.NewJournal(prev)
	l.cur = j
	return j, func() { l.cur = prev }
}

func funderCount(b state.Backing) (uint64, error) {
	w, err := b.Load(FundersLenSlot())
	if err != nil {
		return 0, wrapError(KindState, RuleStateFailed, "ledger: load funder count", err)
	}
	n, err := w.Uint64()
	if err != nil {
		return 0, wrapError(KindState, RuleStateFailed, "ledger: funder count word", err)
	}
	return n, nil
}

// drainFunder zeroes the i'th funder record: the address's contribution
// entry and the list element itself.
func drainFunder(j *state.Journal, i uint64) error {
	w, err := j.Load(FunderSlot(i))
	if err != nil {
		return wrapError(KindState, RuleStateFailed, "ledger: load funder", err)
	}
	addr := identity.AddressFromWord(w)
	j.Set(ContributionSlot(addr), state.Word{})
	j.Set(FunderSlot(i), state.Word{})
	return nil
}
