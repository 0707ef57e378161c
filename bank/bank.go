// Package bank provides a minimal in-memory settlement book used as the
// transfer collaborator in tests and demos. It credits withdrawn totals to
// addresses and can be armed to fail, which exercises withdrawal rollback.
package bank

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"xdao.co/fundvault/identity"
)

// ErrTransferRefused is returned by Transfer after FailNext arms a failure.
var ErrTransferRefused = errors.New("bank: transfer refused")

// Book is an in-memory credit book. Transfers only credit; there is no
// debit side, since the ledger hands over value it already holds.
type Book struct {
	mu       sync.Mutex
	balances map[identity.Address]*big.Int
	failNext bool
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{balances: make(map[identity.Address]*big.Int)}
}

// Transfer credits amount to to's balance. A nil or negative amount is
// rejected; zero is a valid no-op credit.
func (b *Book) Transfer(to identity.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: invalid transfer amount")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext {
		b.failNext = false
		return ErrTransferRefused
	}
	cur, ok := b.balances[to]
	if !ok {
		cur = new(big.Int)
		b.balances[to] = cur
	}
	cur.Add(cur, amount)
	return nil
}

// Balance returns to's credited balance.
func (b *Book) Balance(to identity.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.balances[to]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// FailNext arms the book to refuse the next Transfer.
func (b *Book) FailNext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = true
}
