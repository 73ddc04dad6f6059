// Package gateway is the single entry point of the governance pipeline.
// It composes the safety, economic, irreversibility, and stewardship gates
// in fixed order, records every outcome to the ledger and the decision
// trail, and owns the tool invocation runtime.
package gateway

import (
	"sync"

	"github.com/tillerhq/tiller/internal/audit"
	"github.com/tillerhq/tiller/internal/budget"
	"github.com/tillerhq/tiller/internal/cache"
	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/econ"
	"github.com/tillerhq/tiller/internal/ledger"
	"github.com/tillerhq/tiller/internal/model"
	"github.com/tillerhq/tiller/internal/safety"
	"github.com/tillerhq/tiller/internal/steward"
	"github.com/tillerhq/tiller/internal/toolrt"
)

// Decision is the aggregate governance outcome for one proposed action.
// Callers must treat Allowed=false as final for that call.
type Decision struct {
	Status              model.Status        `json:"status"`
	Allowed             bool                `json:"allowed"`
	Reasons             []string            `json:"reasons,omitempty"`
	RequiresHumanReview bool                `json:"requires_human_review"`
	Safety              safety.Decision     `json:"safety"`
	Economic            *econ.Decision      `json:"economic,omitempty"`
	Execution           *steward.ExecDecision `json:"execution,omitempty"`
	PolicyHash          string              `json:"policy_hash"`
}

// Gateway wires the gates around the shared stores. All collaborators are
// constructor-injected; there are no module-level singletons.
type Gateway struct {
	mu         sync.RWMutex
	cfg        *config.Config
	policyHash string

	tracker    *budget.Tracker
	cacheSt    *cache.Store
	book       *ledger.Book
	trail      *audit.Trail
	econGate   *econ.Gate
	auditStore econ.AuditStore
	registry   *toolrt.Registry
	runtime    *toolrt.Runtime

	stewMu     sync.Mutex
	stewStates map[string]steward.State
}

// Options carries optional collaborators.
type Options struct {
	Trail      *audit.Trail    // nil disables the on-disk decision trail
	AuditStore econ.AuditStore // nil uses the in-memory store
	Registry   *toolrt.Registry
}

// New creates a gateway from a governance config.
func New(cfg *config.Config, policyHash string, opts Options) *Gateway {
	store := opts.AuditStore
	if store == nil {
		store = econ.NewMemStore()
	}
	registry := opts.Registry
	if registry == nil {
		registry = toolrt.NewRegistry()
	}

	g := &Gateway{
		cfg:        cfg,
		policyHash: policyHash,
		tracker:    budget.NewTracker(cfg.Limits),
		cacheSt:    cache.NewStore(cache.Policy{NoveltyCeiling: cfg.Cache.NoveltyCeiling}),
		book:       ledger.NewBook(),
		trail:      opts.Trail,
		econGate:   econ.NewGate(cfg.EconConfig(), store),
		auditStore: store,
		registry:   registry,
		stewStates: make(map[string]steward.State),
	}
	g.runtime = toolrt.NewRuntime(registry, g, g.tracker, g.cacheSt, g)
	return g
}

// Registry returns the tool registry for registration at wiring time.
func (g *Gateway) Registry() *toolrt.Registry { return g.registry }

// Tracker returns the budget tracker (shared resource, inspection only).
func (g *Gateway) Tracker() *budget.Tracker { return g.tracker }

// PolicyHash returns the hash of the active governance config.
func (g *Gateway) PolicyHash() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policyHash
}

// Config returns the active governance config.
func (g *Gateway) Config() *config.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// IsRegistered implements toolrt.AgentDirectory against the agent directory.
func (g *Gateway) IsRegistered(agentID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg.IsRegistered(agentID)
}

// EnforceRuntimeGovernance runs the gate pipeline for one proposed action:
// safety → economic → irreversibility → stewardship guard. The first
// blocking gate decides the status; the outcome is recorded either way.
func (g *Gateway) EnforceRuntimeGovernance(identity string, rctx model.RuntimeContext, initiator model.Initiator) Decision {
	g.mu.RLock()
	cfg := g.cfg
	hash := g.policyHash
	econGate := g.econGate
	g.mu.RUnlock()

	d := Decision{PolicyHash: hash}

	// Gate 1: safety.
	d.Safety = safety.Evaluate(safety.Request{
		PermissionTier:  rctx.PermissionTier,
		Impact:          rctx.Impact,
		EstimatedCost:   rctx.EstimatedCostCents,
		EstimatedTokens: rctx.EstimatedTokens,
		SideEffects:     rctx.SideEffects,
		Approval:        rctx.Approval,
		Live:            rctx.PermissionTier == model.TierExecute,
	}, g.tracker.Usage(identity), g.tracker.Limits())
	if !d.Safety.Allowed {
		d.Reasons = append(d.Reasons, d.Safety.ReasonCode)
		switch {
		case d.Safety.RequiredApproval:
			d.Status = model.StatusRequireApproval
		case d.Safety.ReasonCode == model.ReasonTierInsufficient:
			d.Status = model.StatusBlock
		default:
			// Budget limits are recoverable: defer, do not block.
			d.Status = model.StatusDefer
		}
		return g.finish(identity, rctx, initiator, d)
	}

	// Gate 2: economic.
	ed, err := econGate.Enforce(identity, rctx, initiator)
	if err != nil {
		d.Status = model.StatusBlock
		d.RequiresHumanReview = true
		d.Reasons = append(d.Reasons, "economic_gate_error")
		return g.finish(identity, rctx, initiator, d)
	}
	d.Economic = &ed
	if !ed.Allowed {
		d.Status = model.StatusBlock
		d.RequiresHumanReview = ed.RequiresReview
		d.Reasons = append(d.Reasons, ed.ReasonCode)
		return g.finish(identity, rctx, initiator, d)
	}

	// Gate 3: irreversibility classification.
	xd := stewardEvaluate(cfg, rctx)
	d.Execution = &xd
	if xd.Status != model.StatusAllow {
		d.Status = model.StatusSafeHold
		d.Reasons = append(d.Reasons, xd.Reasons...)
		return g.finish(identity, rctx, initiator, d)
	}

	// Gate 4: stewardship guard, re-validated every call.
	status, reasons := steward.EvaluateGuard(g.stewardshipState(identity), xd.Impact, rctx.Approval)
	if status != model.StatusAllow {
		d.Status = model.StatusSafeHold
		d.Reasons = append(d.Reasons, reasons...)
		return g.finish(identity, rctx, initiator, d)
	}

	d.Status = model.StatusAllow
	d.Allowed = true
	return g.finish(identity, rctx, initiator, d)
}

// finish records the outcome to the ledger and the decision trail.
func (g *Gateway) finish(identity string, rctx model.RuntimeContext, initiator model.Initiator, d Decision) Decision {
	role := model.RoleBuilder
	if initiator.IsHuman() {
		role = model.RoleHuman
	}

	g.book.Append(identity, ledger.Input{
		ActorRole:     role,
		ActionClass:   rctx.DecisionType,
		HumanApproval: rctx.Approval.Granted,
		Rationale:     rctx.Rationale,
	})

	if g.trail != nil {
		// Trail write failures must not change the decision; the trail is
		// best-effort durable, the in-memory ledger is authoritative.
		_ = g.trail.Record(audit.Entry{
			Identity:   identity,
			AgentID:    rctx.AgentID,
			ActionType: rctx.DecisionType,
			ChargeID:   rctx.ChargeID(),
			Status:     string(d.Status),
			Reasons:    d.Reasons,
			Review:     d.RequiresHumanReview,
			PolicyHash: d.PolicyHash,
		})
	}
	return d
}

// SwapConfig replaces the active governance policy. Budget usage and the
// economic audit history survive the swap; only limits and policy tables
// change. Callers are expected to certify the candidate first (the reload
// path refuses regressions).
func (g *Gateway) SwapConfig(cfg *config.Config, policyHash string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
	g.policyHash = policyHash
	g.tracker.SetLimits(cfg.Limits)
	g.econGate = econ.NewGate(cfg.EconConfig(), g.auditStore)
}

// Ledger returns the identity's ledger records sorted by logical clock.
func (g *Gateway) Ledger(identity string) []ledger.Record {
	return g.book.List(identity)
}

// Book exposes the underlying ledger arena (stewardship operations log
// through it).
func (g *Gateway) Book() *ledger.Book { return g.book }
