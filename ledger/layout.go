package ledger

import (
	"xdao.co/fundvault/identity"
	"xdao.co/fundvault/state"
)

// Storage layout, fixed by declaration order:
//
//	position 0: contributions  mapping(address => amount)
//	position 1: funders        address[] (length at the position slot)
//	position 2: heldValue      scalar running total
//
// The slot of every value follows from these positions and the layout
// rules in the state package, so external tools can read a ledger's
// store without this package.
const (
	posContributions uint64 = 0
	posFunders       uint64 = 1
	posHeldValue     uint64 = 2
)

// ContributionSlot returns the slot holding addr's cumulative contribution.
func ContributionSlot(addr identity.Address) state.Slot {
	return state.MappingValueSlot(posContributions, state.Word(addr.Word()))
}

// FundersLenSlot returns the slot holding the funder list length.
func FundersLenSlot() state.Slot {
	return state.ScalarSlot(posFunders)
}

// FunderSlot returns the slot holding the i'th funder address.
func FunderSlot(i uint64) state.Slot {
	return state.ArrayElemSlot(posFunders, i)
}

// HeldValueSlot returns the slot holding the running total.
func HeldValueSlot() state.Slot {
	return state.ScalarSlot(posHeldValue)
}
