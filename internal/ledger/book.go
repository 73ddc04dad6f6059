package ledger

import "sync"

// Book is an in-memory ledger arena: one clock state and record sequence per
// identity. Within one identity entries are totally ordered by logical clock
// even if the calls that produced them complete out of order; across
// identities there is no ordering guarantee.
type Book struct {
	mu      sync.RWMutex
	states  map[string]State
	records map[string][]Record
}

// NewBook creates an empty ledger arena.
func NewBook() *Book {
	return &Book{
		states:  make(map[string]State),
		records: make(map[string][]Record),
	}
}

// Append appends a record for the identity and returns it.
func (b *Book) Append(identity string, in Input) Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.states[identity]
	if !ok {
		s = NewState(identity)
	}
	s, rec := Append(s, in)
	b.states[identity] = s
	b.records[identity] = append(b.records[identity], rec)
	return rec
}

// List returns the identity's records sorted by logical clock.
func (b *Book) List(identity string) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Sorted(b.records[identity])
}

// Clock returns the current clock value for an identity.
func (b *Book) Clock(identity string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.states[identity].Clock
}
