package state

import "errors"

var (
	ErrNegativeValue = errors.New("state: negative value")
	ErrWordOverflow  = errors.New("state: value overflows word")
	ErrMalformedSlot = errors.New("state: malformed slot")
	ErrMalformedWord = errors.New("state: malformed word")
	ErrReadOnly      = errors.New("state: read-only store")
)

func IsReadOnly(err error) bool { return errors.Is(err, ErrReadOnly) }
