package gateway

import (
	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/ledger"
	"github.com/tillerhq/tiller/internal/model"
	"github.com/tillerhq/tiller/internal/steward"
)

// stewardshipState returns the activation state for an identity.
func (g *Gateway) stewardshipState(identity string) steward.State {
	g.stewMu.Lock()
	defer g.stewMu.Unlock()
	return g.stewStates[identity]
}

// StewardshipState reports whether stewardship is active for the identity.
func (g *Gateway) StewardshipState(identity string) steward.State {
	return g.stewardshipState(identity)
}

// ApplyStewardshipHandoff attempts the inactive → active transition for the
// identity. The attempt and outcome are double-logged to the ledger.
func (g *Gateway) ApplyStewardshipHandoff(identity string, in steward.ReadinessInput) steward.HandoffResult {
	g.mu.RLock()
	th := g.cfg.Thresholds
	g.mu.RUnlock()

	g.stewMu.Lock()
	defer g.stewMu.Unlock()

	next, res := steward.ApplyHandoff(g.stewStates[identity], identity, in, th, g.book)
	g.stewStates[identity] = next
	return res
}

// ResetStewardship attempts the active → inactive transition.
func (g *Gateway) ResetStewardship(identity string, approval model.Approval) steward.HandoffResult {
	g.stewMu.Lock()
	defer g.stewMu.Unlock()

	next, res := steward.Reset(g.stewStates[identity], identity, approval, g.book)
	g.stewStates[identity] = next
	return res
}

// RecordEmergencyAction records a steward emergency override, independent
// of the current activation state.
func (g *Gateway) RecordEmergencyAction(identity string, action steward.EmergencyAction, approval model.Approval, explanation string) (ledger.Record, error) {
	return steward.RecordEmergency(identity, action, approval, explanation, g.book)
}

func stewardEvaluate(cfg *config.Config, rctx model.RuntimeContext) steward.ExecDecision {
	return steward.EvaluateExecution(steward.ExecRequest{
		ActionKey:   rctx.DecisionType,
		MockMode:    cfg.MockMode,
		AutoExecute: rctx.AutoExecute,
		Approval:    rctx.Approval,
		Rationale:   rctx.Rationale,
		CoolingOff:  rctx.CoolingOff,
		NotBefore:   rctx.NotBefore,
		DriftScore:  rctx.DriftScore,
	}, cfg.ActionTable(), cfg.Thresholds)
}

func stewardGuard(g *Gateway, identity string, impact model.ImpactLevel, approval model.Approval) (model.Status, []string) {
	return steward.EvaluateGuard(g.stewardshipState(identity), impact, approval)
}

func stewardReason(reasons []string) string {
	if len(reasons) == 0 {
		return "safe_hold"
	}
	return reasons[0]
}
