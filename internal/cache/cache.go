// Package cache memoizes tool outputs across governance decisions.
// Entries are keyed by call shape and never updated in place: a hit returns
// a full copy, and a write re-evaluates the caching policy because the
// context may have changed between lookup and write.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tillerhq/tiller/internal/model"
)

// Key identifies one memoized tool output.
type Key struct {
	Kind        string `json:"kind"`
	TaskType    string `json:"task_type"`
	GoalID      string `json:"goal_id"`
	GoalVersion string `json:"goal_version"`
	InputHash   string `json:"input_hash"`
}

// String renders the key as a stable map index.
func (k Key) String() string {
	return k.Kind + "|" + k.TaskType + "|" + k.GoalID + "|" + k.GoalVersion + "|" + k.InputHash
}

// HashInput derives the input-hash component from a tool input payload.
// Marshalling a map[string]any sorts keys, so the hash is deterministic.
func HashInput(input map[string]any) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("cache: hash input: %w", err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

// Entry is one memoized output with the policy snapshot it was written under.
type Entry struct {
	Key      Key            `json:"key"`
	Payload  map[string]any `json:"payload"`
	StoredAt time.Time      `json:"stored_at"`
}

// Classification describes the call being considered for caching.
type Classification struct {
	Impact      model.ImpactLevel
	Novelty     float64
	Exploration bool
}

// Policy holds the eligibility rules for serving or writing cache entries.
type Policy struct {
	NoveltyCeiling float64 // calls at or above this novelty are never cached
}

// DefaultPolicy returns the standard eligibility rules.
func DefaultPolicy() Policy {
	return Policy{NoveltyCeiling: 0.8}
}

// PolicyDecision is the outcome of a cache-eligibility evaluation.
type PolicyDecision struct {
	Allowed bool
	Reason  string
}

// Evaluate applies the eligibility rules to a call classification.
// Irreversible impact, high novelty, and exploration-mode calls are never
// served from (or written to) the cache.
func (p Policy) Evaluate(c Classification) PolicyDecision {
	if c.Impact == model.ImpactIrreversible {
		return PolicyDecision{Reason: "irreversible_impact"}
	}
	if c.Exploration {
		return PolicyDecision{Reason: "exploration_mode"}
	}
	if c.Novelty >= p.NoveltyCeiling {
		return PolicyDecision{Reason: "high_novelty"}
	}
	return PolicyDecision{Allowed: true}
}

// Store is a per-identity cache namespace arena, safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	policy Policy
	spaces map[string]map[string]Entry
}

// NewStore creates a Store with the given policy.
func NewStore(policy Policy) *Store {
	return &Store{
		policy: policy,
		spaces: make(map[string]map[string]Entry),
	}
}

// Policy returns the store's eligibility rules.
func (s *Store) Policy() Policy { return s.policy }

// Get looks up an entry for the identity. The returned entry is a full
// copy; mutating it does not affect the stored value.
func (s *Store) Get(identity string, key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.spaces[identity][key.String()]
	if !ok {
		return Entry{}, false
	}
	entry.Payload = copyPayload(entry.Payload)
	return entry, true
}

// Put writes a new entry if the policy still allows caching for the given
// classification. Returns false when the write was refused. Existing
// entries are not overwritten — the first successful execution wins.
func (s *Store) Put(identity string, key Key, payload map[string]any, c Classification) bool {
	if !s.policy.Evaluate(c).Allowed {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	space, ok := s.spaces[identity]
	if !ok {
		space = make(map[string]Entry)
		s.spaces[identity] = space
	}
	if _, exists := space[key.String()]; exists {
		return false
	}

	space[key.String()] = Entry{
		Key:      key,
		Payload:  copyPayload(payload),
		StoredAt: time.Now().UTC(),
	}
	return true
}

// copyPayload deep-copies a JSON-shaped payload via round-trip marshalling.
func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// JSON-shaped payloads only; a non-marshallable payload is a
		// programmer error.
		panic(fmt.Sprintf("cache: payload not JSON-shaped: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("cache: payload round-trip: %v", err))
	}
	return out
}
