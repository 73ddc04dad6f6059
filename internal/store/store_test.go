package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tillerhq/tiller/internal/budget"
	"github.com/tillerhq/tiller/internal/econ"
	"github.com/tillerhq/tiller/internal/ledger"
	"github.com/tillerhq/tiller/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tiller.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAuditRoundTrip(t *testing.T) {
	s := newTestStore(t)

	rec := econ.AuditRecord{
		Identity:       "tenant-a",
		ChargeID:       "agent:task-1",
		Allowed:        true,
		Reason:         "consumed 40 units",
		CostUnits:      40,
		Category:       "compute",
		RemainingUnits: 960,
		Initiator:      model.InitiatorAgent,
		DecidedAt:      time.Now().UTC(),
	}
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get("tenant-a", "agent:task-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("record not found")
	}
	if !got.Allowed || got.CostUnits != 40 || got.RemainingUnits != 960 {
		t.Errorf("got %+v", got)
	}
}

func TestAuditMissing(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Get("tenant-a", "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("found a record that was never stored")
	}
}

func TestAuditFirstWriteWins(t *testing.T) {
	s := newTestStore(t)

	first := econ.AuditRecord{Identity: "t", ChargeID: "c", Allowed: false, Reason: "blocked", DecidedAt: time.Now().UTC()}
	second := econ.AuditRecord{Identity: "t", ChargeID: "c", Allowed: true, Reason: "allowed", DecidedAt: time.Now().UTC()}

	if err := s.Put(first); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := s.Put(second); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, ok, err := s.Get("t", "c")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Allowed {
		t.Error("second write overwrote the stored decision")
	}
}

func TestLedgerPersistence(t *testing.T) {
	s := newTestStore(t)

	book := ledger.NewBook()
	for i := 0; i < 5; i++ {
		rec := book.Append("tenant-a", ledger.Input{
			ActorRole:   model.RoleBuilder,
			ActionClass: "lead.read",
		})
		if err := s.AppendLedger(rec); err != nil {
			t.Fatalf("AppendLedger: %v", err)
		}
	}

	got, err := s.LoadLedger("tenant-a")
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d records, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !ledger.Less(got[i-1].Timestamp, got[i].Timestamp) {
			t.Errorf("records out of order at %d: %s >= %s", i, got[i-1].Timestamp, got[i].Timestamp)
		}
	}
}

func TestLedgerAppendIdempotent(t *testing.T) {
	s := newTestStore(t)

	book := ledger.NewBook()
	rec := book.Append("tenant-a", ledger.Input{ActorRole: model.RoleHuman, ActionClass: "x"})
	if err := s.AppendLedger(rec); err != nil {
		t.Fatalf("AppendLedger: %v", err)
	}
	if err := s.AppendLedger(rec); err != nil {
		t.Fatalf("repeat AppendLedger: %v", err)
	}

	got, err := s.LoadLedger("tenant-a")
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d records, want 1", len(got))
	}
}

func TestUsageRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, ok, _ := s.LoadUsage("tenant-a"); ok {
		t.Fatal("usage present before any save")
	}

	st := budget.State{CostCents: 120, Tokens: 5000, SideEffects: 3}
	if err := s.SaveUsage("tenant-a", st); err != nil {
		t.Fatalf("SaveUsage: %v", err)
	}

	st = st.Add(30, 1000, 1)
	if err := s.SaveUsage("tenant-a", st); err != nil {
		t.Fatalf("second SaveUsage: %v", err)
	}

	got, ok, err := s.LoadUsage("tenant-a")
	if err != nil {
		t.Fatalf("LoadUsage: %v", err)
	}
	if !ok {
		t.Fatal("usage not found")
	}
	if got != st {
		t.Errorf("got %+v, want %+v", got, st)
	}
}
