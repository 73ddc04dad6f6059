package budget

import "sync"

// Tracker holds per-identity budget state against a shared set of limits.
// It is one of the three shared resources that outlive individual decisions
// (with the ledger and cache store) and is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	limits Limits
	states map[string]State
}

// NewTracker creates a Tracker with the given static limits.
func NewTracker(limits Limits) *Tracker {
	return &Tracker{
		limits: limits,
		states: make(map[string]State),
	}
}

// Limits returns the configured limits.
func (t *Tracker) Limits() Limits {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.limits
}

// SetLimits replaces the limits without touching recorded usage. Used when
// a certified policy change lands.
func (t *Tracker) SetLimits(limits Limits) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits = limits
}

// Usage returns the current state for an identity (zero value if unseen).
func (t *Tracker) Usage(identity string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[identity]
}

// Charge records consumed usage for an identity and returns the new state.
// Charging is unconditional: enforcement happens before execution, and an
// in-flight execution that times out is not rolled back (fail closed).
func (t *Tracker) Charge(identity string, costCents, tokens, sideEffects int64) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.states[identity].Add(costCents, tokens, sideEffects)
	t.states[identity] = next
	return next
}

// Project checks whether the requested usage would exceed any limit without
// recording anything.
func (t *Tracker) Project(identity string, costCents, tokens, sideEffects int64) CheckResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Check(t.states[identity], costCents, tokens, sideEffects, t.limits)
}

// Reset clears the state for one identity (external reset, e.g. a billing
// period rollover owned by the caller).
func (t *Tracker) Reset(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, identity)
}
