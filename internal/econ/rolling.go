package econ

import (
	"sync"
	"time"
)

// RollingConfig defines the unit budget shared by one identity.
// A zero window makes the budget a plain lifetime total.
type RollingConfig struct {
	LimitUnits int64         `yaml:"limit_units" json:"limit_units"`
	Window     time.Duration `yaml:"window" json:"window"`
}

type spend struct {
	at    time.Time
	units int64
}

// RollingBudget tracks unit consumption per identity over a sliding window.
// Consume is atomic: it deducts only when sufficient headroom remains.
type RollingBudget struct {
	mu     sync.Mutex
	cfg    RollingConfig
	spends map[string][]spend
	now    func() time.Time
}

// NewRollingBudget creates a budget with the given configuration.
func NewRollingBudget(cfg RollingConfig) *RollingBudget {
	return &RollingBudget{
		cfg:    cfg,
		spends: make(map[string][]spend),
		now:    time.Now,
	}
}

// Consume tries to deduct units for the identity. Returns the remaining
// headroom after the deduction and whether the deduction happened. On
// refusal the remaining headroom is returned unchanged.
func (b *RollingBudget) Consume(identity string, units int64) (remaining int64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	used := b.pruneLocked(identity)
	if b.cfg.LimitUnits > 0 && used+units > b.cfg.LimitUnits {
		return b.cfg.LimitUnits - used, false
	}

	b.spends[identity] = append(b.spends[identity], spend{at: b.now(), units: units})
	if b.cfg.LimitUnits == 0 {
		return 0, true
	}
	return b.cfg.LimitUnits - used - units, true
}

// Remaining returns the current headroom for the identity.
func (b *RollingBudget) Remaining(identity string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	used := b.pruneLocked(identity)
	if b.cfg.LimitUnits == 0 {
		return 0
	}
	return b.cfg.LimitUnits - used
}

// pruneLocked drops spends outside the window and returns the units still
// counted. Caller must hold the mutex.
func (b *RollingBudget) pruneLocked(identity string) int64 {
	entries := b.spends[identity]
	if b.cfg.Window > 0 {
		cutoff := b.now().Add(-b.cfg.Window)
		kept := entries[:0]
		for _, s := range entries {
			if s.at.After(cutoff) {
				kept = append(kept, s)
			}
		}
		entries = kept
		b.spends[identity] = entries
	}

	var used int64
	for _, s := range entries {
		used += s.units
	}
	return used
}
