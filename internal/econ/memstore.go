package econ

import "sync"

// MemStore is the in-memory AuditStore used for tests and single-process
// deployments. The SQLite-backed store lives in internal/store.
type MemStore struct {
	mu   sync.RWMutex
	recs map[string]AuditRecord
}

// NewMemStore creates an empty in-memory audit store.
func NewMemStore() *MemStore {
	return &MemStore{recs: make(map[string]AuditRecord)}
}

func key(identity, chargeID string) string {
	return identity + "\x00" + chargeID
}

// Get returns the record for (identity, chargeID) if present.
func (m *MemStore) Get(identity, chargeID string) (AuditRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[key(identity, chargeID)]
	return rec, ok, nil
}

// Put stores a record. First write wins; replays never overwrite.
func (m *MemStore) Put(rec AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(rec.Identity, rec.ChargeID)
	if _, exists := m.recs[k]; exists {
		return nil
	}
	m.recs[k] = rec
	return nil
}
