package budget

import (
	"fmt"

	"github.com/tillerhq/tiller/internal/model"
)

// Limits are the static ceilings a caller's consumption is checked against.
// Zero values mean unlimited (no enforcement for that dimension).
type Limits struct {
	MaxCostCents   int64 `yaml:"max_cost_cents" json:"max_cost_cents"`
	MaxTokens      int64 `yaml:"max_tokens" json:"max_tokens"`
	MaxSideEffects int64 `yaml:"max_side_effects" json:"max_side_effects"`
}

// HasLimits returns true if any limit is configured (non-zero).
func (l Limits) HasLimits() bool {
	return l.MaxCostCents > 0 || l.MaxTokens > 0 || l.MaxSideEffects > 0
}

// State is the consumption snapshot for one identity. Counters increase
// monotonically until externally reset. Update operations return a new
// State; the caller's copy is never mutated.
type State struct {
	CostCents   int64 `json:"cost_cents"`
	Tokens      int64 `json:"tokens"`
	SideEffects int64 `json:"side_effects"`
}

// Add returns a new State with the given usage added.
func (s State) Add(costCents, tokens, sideEffects int64) State {
	s.CostCents += costCents
	s.Tokens += tokens
	s.SideEffects += sideEffects
	return s
}

// CheckResult is the outcome of a projected budget check.
type CheckResult struct {
	Exceeded  bool
	Dimension string // "cost_cents", "tokens", "side_effects"
	Reason    string // stable reason code from model
	Projected int64
	Limit     int64
}

// Check projects the requested usage onto current state and compares against
// limits. Checks cost, then tokens, then side effects — returns the first
// dimension that would be exceeded.
func Check(current State, costCents, tokens, sideEffects int64, limits Limits) CheckResult {
	if limits.MaxCostCents > 0 && current.CostCents+costCents > limits.MaxCostCents {
		return CheckResult{
			Exceeded:  true,
			Dimension: "cost_cents",
			Reason:    model.ReasonBudgetCostCents,
			Projected: current.CostCents + costCents,
			Limit:     limits.MaxCostCents,
		}
	}
	if limits.MaxTokens > 0 && current.Tokens+tokens > limits.MaxTokens {
		return CheckResult{
			Exceeded:  true,
			Dimension: "tokens",
			Reason:    model.ReasonBudgetTokens,
			Projected: current.Tokens + tokens,
			Limit:     limits.MaxTokens,
		}
	}
	if limits.MaxSideEffects > 0 && current.SideEffects+sideEffects > limits.MaxSideEffects {
		return CheckResult{
			Exceeded:  true,
			Dimension: "side_effects",
			Reason:    model.ReasonBudgetSideEffects,
			Projected: current.SideEffects + sideEffects,
			Limit:     limits.MaxSideEffects,
		}
	}
	return CheckResult{}
}

// String renders the check result for log lines and decision reasons.
func (r CheckResult) String() string {
	if !r.Exceeded {
		return "within budget"
	}
	return fmt.Sprintf("budget exceeded: %s %d > %d", r.Dimension, r.Projected, r.Limit)
}
