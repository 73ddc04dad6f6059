// Package econ implements the economic gate: role-scoped cost category
// checks and an idempotent, charge-id-keyed unit budget. The same charge id
// always replays the same decision — budget is consumed at most once per
// unit of billable work, no matter how often a caller retries.
package econ

import (
	"fmt"
	"time"

	"github.com/tillerhq/tiller/internal/model"
)

// RolePolicy names the cost categories a role may spend in.
type RolePolicy struct {
	Role              string               `yaml:"role" json:"role"`
	AllowedCategories []model.CostCategory `yaml:"allowed_categories" json:"allowed_categories"`
}

// Allows reports whether the policy admits the category.
func (p RolePolicy) Allows(category model.CostCategory) bool {
	for _, c := range p.AllowedCategories {
		if c == category || c == "*" {
			return true
		}
	}
	return false
}

// Config wires role policies and the rolling budget for the gate.
type Config struct {
	Roles      map[string]RolePolicy `yaml:"roles" json:"roles"`
	AgentRoles map[string]string     `yaml:"agent_roles" json:"agent_roles"`
	Budget     RollingConfig         `yaml:"budget" json:"budget"`
}

// AuditRecord is one row per (identity, charge id): the decision, its
// reason, and the remaining budget at decision time. Looked up before any
// new budget is consumed.
type AuditRecord struct {
	Identity       string             `json:"identity"`
	ChargeID       string             `json:"charge_id"`
	Allowed        bool               `json:"allowed"`
	Reason         string             `json:"reason"`
	ReasonCode     string             `json:"reason_code,omitempty"`
	RequiresReview bool               `json:"requires_human_review"`
	CostUnits      int64              `json:"cost_units"`
	Category       model.CostCategory `json:"category"`
	RemainingUnits int64              `json:"remaining_units"`
	Initiator      model.Initiator    `json:"initiator"`
	DecidedAt      time.Time          `json:"decided_at"`
}

// AuditStore persists audit records keyed by (identity, charge id).
type AuditStore interface {
	Get(identity, chargeID string) (AuditRecord, bool, error)
	Put(rec AuditRecord) error
}

// Decision is the gate outcome.
type Decision struct {
	Allowed        bool        `json:"allowed"`
	Reason         string      `json:"reason"`
	ReasonCode     string      `json:"reason_code,omitempty"`
	RequiresReview bool        `json:"requires_human_review"`
	RemainingUnits int64       `json:"remaining_units"`
	Replayed       bool        `json:"replayed"`
	Record         AuditRecord `json:"record"`
}

// Gate enforces economic policy. Shared state (budget, audit store) is
// identity-scoped; the gate itself holds no per-decision state.
type Gate struct {
	cfg    Config
	budget *RollingBudget
	store  AuditStore
}

// NewGate creates an economic gate.
func NewGate(cfg Config, store AuditStore) *Gate {
	return &Gate{
		cfg:    cfg,
		budget: NewRollingBudget(cfg.Budget),
		store:  store,
	}
}

// Budget exposes the rolling budget (for inspection commands).
func (g *Gate) Budget() *RollingBudget { return g.budget }

// Enforce makes (or replays) the economic decision for one unit of work.
//
// Replay rule: an existing record for the charge id is returned as-is —
// budget is never consumed twice. A previously blocked decision stays
// blocked for non-human initiators; a human-initiated retry also receives
// the stored record rather than re-spending budget.
func (g *Gate) Enforce(identity string, ctx model.RuntimeContext, initiator model.Initiator) (Decision, error) {
	chargeID := ctx.ChargeID()

	if rec, ok, err := g.store.Get(identity, chargeID); err != nil {
		return Decision{}, fmt.Errorf("econ: audit lookup: %w", err)
	} else if ok {
		d := decisionFrom(rec)
		d.Replayed = true
		if !rec.Allowed && !initiator.IsHuman() {
			d.Reason = "previously blocked; retry requires a human initiator"
			d.ReasonCode = model.ReasonRetryNeedsHuman
		}
		return d, nil
	}

	roleName, ok := g.cfg.AgentRoles[ctx.AgentID]
	var policy RolePolicy
	if ok {
		policy, ok = g.cfg.Roles[roleName]
	}
	if !ok {
		return g.record(AuditRecord{
			Identity:       identity,
			ChargeID:       chargeID,
			Reason:         fmt.Sprintf("no role policy for agent %q", ctx.AgentID),
			ReasonCode:     model.ReasonRolePolicyMissing,
			RequiresReview: true,
			CostUnits:      ctx.Economics.CostUnits,
			Category:       ctx.Economics.Category,
			RemainingUnits: g.budget.Remaining(identity),
			Initiator:      initiator,
		})
	}

	if !policy.Allows(ctx.Economics.Category) {
		return g.record(AuditRecord{
			Identity:       identity,
			ChargeID:       chargeID,
			Reason:         fmt.Sprintf("role %q may not spend in category %q", roleName, ctx.Economics.Category),
			ReasonCode:     model.ReasonCategoryDenied,
			CostUnits:      ctx.Economics.CostUnits,
			Category:       ctx.Economics.Category,
			RemainingUnits: g.budget.Remaining(identity),
			Initiator:      initiator,
		})
	}

	remaining, consumed := g.budget.Consume(identity, ctx.Economics.CostUnits)
	if !consumed {
		return g.record(AuditRecord{
			Identity:       identity,
			ChargeID:       chargeID,
			Reason:         fmt.Sprintf("unit budget exhausted: %d units requested, %d remaining", ctx.Economics.CostUnits, remaining),
			ReasonCode:     model.ReasonUnitBudgetExhausted,
			CostUnits:      ctx.Economics.CostUnits,
			Category:       ctx.Economics.Category,
			RemainingUnits: remaining,
			Initiator:      initiator,
		})
	}

	return g.record(AuditRecord{
		Identity:       identity,
		ChargeID:       chargeID,
		Allowed:        true,
		Reason:         fmt.Sprintf("consumed %d units", ctx.Economics.CostUnits),
		CostUnits:      ctx.Economics.CostUnits,
		Category:       ctx.Economics.Category,
		RemainingUnits: remaining,
		Initiator:      initiator,
	})
}

// record stamps, stores, and converts an audit record into a decision.
func (g *Gate) record(rec AuditRecord) (Decision, error) {
	rec.DecidedAt = time.Now().UTC()
	if err := g.store.Put(rec); err != nil {
		return Decision{}, fmt.Errorf("econ: audit store: %w", err)
	}
	return decisionFrom(rec), nil
}

func decisionFrom(rec AuditRecord) Decision {
	return Decision{
		Allowed:        rec.Allowed,
		Reason:         rec.Reason,
		ReasonCode:     rec.ReasonCode,
		RequiresReview: rec.RequiresReview,
		RemainingUnits: rec.RemainingUnits,
		Record:         rec,
	}
}
