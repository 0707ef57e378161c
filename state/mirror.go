package state

import "fmt"

// NamedBacking associates a Backing with a stable name for reporting.
type NamedBacking struct {
	Name    string
	Backing Backing
}

// Mirror applies every batch to a primary store and to all mirrors.
//
// Loads are served by the primary only: slots are mutable, so ordered read
// fallback across stores is unsound. Mirrors exist for durability and audit
// copies. Each store applies its batch atomically, but a mirror failing
// after the primary applied leaves the stores diverged; the failure is
// reported with the mirror's name.
type Mirror struct {
	Primary Backing
	Mirrors []NamedBacking
}

var _ Backing = (*Mirror)(nil)

func (m Mirror) Load(s Slot) (Word, error) {
	if m.Primary == nil {
		return Word{}, fmt.Errorf("state: mirror has no primary")
	}
	return m.Primary.Load(s)
}

func (m Mirror) Apply(ws []Write) error {
	if m.Primary == nil {
		return fmt.Errorf("state: mirror has no primary")
	}
	if err := m.Primary.Apply(ws); err != nil {
		return err
	}
	for _, b := range m.Mirrors {
		if b.Backing == nil {
			return fmt.Errorf("state: nil backing for mirror %q", b.Name)
		}
		if err := b.Backing.Apply(ws); err != nil {
			return fmt.Errorf("state: mirror %q: %w", b.Name, err)
		}
	}
	return nil
}
