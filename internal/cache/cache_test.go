package cache

import (
	"testing"

	"github.com/tillerhq/tiller/internal/model"
)

func TestPolicyEvaluate(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		c       Classification
		allowed bool
		reason  string
	}{
		{"reversible routine", Classification{Impact: model.ImpactReversible, Novelty: 0.1}, true, ""},
		{"difficult reversal ok", Classification{Impact: model.ImpactDifficult, Novelty: 0.5}, true, ""},
		{"irreversible never cached", Classification{Impact: model.ImpactIrreversible}, false, "irreversible_impact"},
		{"exploration never cached", Classification{Impact: model.ImpactReversible, Exploration: true}, false, "exploration_mode"},
		{"novelty at ceiling", Classification{Impact: model.ImpactReversible, Novelty: 0.8}, false, "high_novelty"},
		{"novelty just below", Classification{Impact: model.ImpactReversible, Novelty: 0.79}, true, ""},
		{"irreversible wins over exploration", Classification{Impact: model.ImpactIrreversible, Exploration: true}, false, "irreversible_impact"},
	}
	for _, tt := range tests {
		d := p.Evaluate(tt.c)
		if d.Allowed != tt.allowed || d.Reason != tt.reason {
			t.Errorf("%s: got %+v, want allowed=%v reason=%q", tt.name, d, tt.allowed, tt.reason)
		}
	}
}

func TestHashInputDeterministic(t *testing.T) {
	a, err := HashInput(map[string]any{"q": "leads", "limit": 10})
	if err != nil {
		t.Fatalf("HashInput: %v", err)
	}
	b, err := HashInput(map[string]any{"limit": 10, "q": "leads"})
	if err != nil {
		t.Fatalf("HashInput: %v", err)
	}
	if a != b {
		t.Error("key order changed the input hash")
	}

	c, _ := HashInput(map[string]any{"q": "leads", "limit": 11})
	if a == c {
		t.Error("different inputs collided")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(DefaultPolicy())
	key := Key{Kind: "tool_output", TaskType: "search", GoalID: "g1", GoalVersion: "v1", InputHash: "h1"}

	ok := s.Put("tenant-a", key, map[string]any{"rows": []any{"x"}}, Classification{})
	if !ok {
		t.Fatal("Put refused an eligible write")
	}

	e1, ok := s.Get("tenant-a", key)
	if !ok {
		t.Fatal("Get missed")
	}
	e1.Payload["rows"] = "clobbered"

	e2, _ := s.Get("tenant-a", key)
	if e2.Payload["rows"] == "clobbered" {
		t.Error("mutating a hit leaked into the store")
	}
}

func TestPutFirstWriteWins(t *testing.T) {
	s := NewStore(DefaultPolicy())
	key := Key{Kind: "tool_output", InputHash: "h1"}

	if !s.Put("tenant-a", key, map[string]any{"v": "first"}, Classification{}) {
		t.Fatal("first Put refused")
	}
	if s.Put("tenant-a", key, map[string]any{"v": "second"}, Classification{}) {
		t.Error("second Put overwrote")
	}

	e, _ := s.Get("tenant-a", key)
	if e.Payload["v"] != "first" {
		t.Errorf("payload = %v, want first writer", e.Payload["v"])
	}
}

func TestPutReevaluatesPolicy(t *testing.T) {
	s := NewStore(DefaultPolicy())
	key := Key{Kind: "tool_output", InputHash: "h1"}

	if s.Put("tenant-a", key, map[string]any{"v": 1}, Classification{Impact: model.ImpactIrreversible}) {
		t.Error("Put accepted an irreversible classification")
	}
	if _, ok := s.Get("tenant-a", key); ok {
		t.Error("refused write is visible")
	}
}

func TestNamespaceIsolation(t *testing.T) {
	s := NewStore(DefaultPolicy())
	key := Key{Kind: "tool_output", InputHash: "h1"}

	s.Put("tenant-a", key, map[string]any{"v": 1}, Classification{})
	if _, ok := s.Get("tenant-b", key); ok {
		t.Error("entry visible across identities")
	}
}

func TestCopyPayloadPanicsOnNonJSON(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("no panic for non-JSON payload")
		}
	}()
	copyPayload(map[string]any{"ch": make(chan int)})
}
