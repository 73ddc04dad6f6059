// Package store persists governance state in a local SQLite database:
// economic audit records keyed by (identity, charge id), ledger records,
// and budget usage snapshots. The in-memory structures stay authoritative
// at runtime; the store is the durability layer a restart recovers from.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/tillerhq/tiller/internal/budget"
	"github.com/tillerhq/tiller/internal/econ"
	"github.com/tillerhq/tiller/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS econ_audit (
	identity   TEXT NOT NULL,
	charge_id  TEXT NOT NULL,
	record     TEXT NOT NULL,
	decided_at TEXT NOT NULL,
	PRIMARY KEY (identity, charge_id)
);
CREATE TABLE IF NOT EXISTS ledger_records (
	record_id TEXT PRIMARY KEY,
	identity  TEXT NOT NULL,
	ts        TEXT NOT NULL,
	record    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_identity ON ledger_records (identity, ts);
CREATE TABLE IF NOT EXISTS budget_usage (
	identity     TEXT PRIMARY KEY,
	cost_cents   INTEGER NOT NULL,
	tokens       INTEGER NOT NULL,
	side_effects INTEGER NOT NULL
);
`

// Store is a SQLite-backed persistence layer. Safe for concurrent use; the
// underlying connection pool serializes writes.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the standard database location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tiller", "tiller.db")
	}
	return filepath.Join(home, ".tiller", "tiller.db")
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	// SQLite handles one writer at a time; a second connection would only
	// produce SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements econ.AuditStore.
func (s *Store) Get(identity, chargeID string) (econ.AuditRecord, bool, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT record FROM econ_audit WHERE identity = ? AND charge_id = ?`,
		identity, chargeID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return econ.AuditRecord{}, false, nil
	}
	if err != nil {
		return econ.AuditRecord{}, false, fmt.Errorf("store: audit get: %w", err)
	}

	var rec econ.AuditRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return econ.AuditRecord{}, false, fmt.Errorf("store: audit decode: %w", err)
	}
	return rec, true, nil
}

// Put implements econ.AuditStore. First write wins: a record already
// present for the (identity, charge id) pair is never overwritten, which
// is what makes replayed charges stable.
func (s *Store) Put(rec econ.AuditRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: audit encode: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO econ_audit (identity, charge_id, record, decided_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (identity, charge_id) DO NOTHING`,
		rec.Identity, rec.ChargeID, string(raw), rec.DecidedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	)
	if err != nil {
		return fmt.Errorf("store: audit put: %w", err)
	}
	return nil
}

// AppendLedger persists one ledger record.
func (s *Store) AppendLedger(rec ledger.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: ledger encode: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO ledger_records (record_id, identity, ts, record)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (record_id) DO NOTHING`,
		rec.RecordID, rec.Identity, rec.Timestamp, string(raw),
	)
	if err != nil {
		return fmt.Errorf("store: ledger append: %w", err)
	}
	return nil
}

// LoadLedger returns the identity's persisted records sorted by logical
// clock.
func (s *Store) LoadLedger(identity string) ([]ledger.Record, error) {
	rows, err := s.db.Query(
		`SELECT record FROM ledger_records WHERE identity = ?`, identity,
	)
	if err != nil {
		return nil, fmt.Errorf("store: ledger load: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: ledger scan: %w", err)
		}
		var rec ledger.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("store: ledger decode: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ledger rows: %w", err)
	}
	return ledger.Sorted(records), nil
}

// SaveUsage upserts the budget snapshot for an identity.
func (s *Store) SaveUsage(identity string, st budget.State) error {
	_, err := s.db.Exec(
		`INSERT INTO budget_usage (identity, cost_cents, tokens, side_effects)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (identity) DO UPDATE SET
			cost_cents = excluded.cost_cents,
			tokens = excluded.tokens,
			side_effects = excluded.side_effects`,
		identity, st.CostCents, st.Tokens, st.SideEffects,
	)
	if err != nil {
		return fmt.Errorf("store: usage save: %w", err)
	}
	return nil
}

// LoadUsage returns the persisted budget snapshot for an identity.
func (s *Store) LoadUsage(identity string) (budget.State, bool, error) {
	var st budget.State
	err := s.db.QueryRow(
		`SELECT cost_cents, tokens, side_effects FROM budget_usage WHERE identity = ?`,
		identity,
	).Scan(&st.CostCents, &st.Tokens, &st.SideEffects)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.State{}, false, nil
	}
	if err != nil {
		return budget.State{}, false, fmt.Errorf("store: usage load: %w", err)
	}
	return st, true, nil
}
