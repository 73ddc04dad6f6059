package gateway

import (
	"context"

	"github.com/tillerhq/tiller/internal/audit"
	"github.com/tillerhq/tiller/internal/ledger"
	"github.com/tillerhq/tiller/internal/model"
	"github.com/tillerhq/tiller/internal/toolrt"
)

// InvokeTool resolves and invokes a registered tool under full governance.
// The gateway itself is wired into the runtime as the enforcement hook, so
// the economic and irreversibility gates run before any execution; the
// runtime adds contract validation, the safety gate, caching, and the
// timeout. Failures come back as classified results, never errors. The
// outcome — success or any failure — is recorded to the ledger and the
// decision trail like every other decision.
func (g *Gateway) InvokeTool(ctx context.Context, call toolrt.Call, rctx *model.RuntimeContext) toolrt.Result {
	tool := g.registry.Lookup(call.Tool)
	res := g.runtime.Invoke(ctx, tool, call, rctx)
	g.recordInvocation(call, rctx, res)
	return res
}

// recordInvocation writes the invocation outcome to the ledger and the
// decision trail. A call without an identity is rejected before anything
// runs and carries nothing to attribute the record to, so it is skipped.
func (g *Gateway) recordInvocation(call toolrt.Call, rctx *model.RuntimeContext, res toolrt.Result) {
	if call.Identity == "" {
		return
	}

	status := model.StatusAllow
	var reasons []string
	if !res.Success {
		if res.Failure == model.FailureBudgetExceeded {
			status = model.StatusDefer
		} else {
			status = model.StatusBlock
		}
		reasons = []string{res.Reason}
	}

	actionClass := call.Tool
	var agentID, chargeID, rationale string
	approved := false
	if rctx != nil {
		if rctx.DecisionType != "" {
			actionClass = rctx.DecisionType
		}
		agentID = rctx.AgentID
		chargeID = rctx.ChargeID()
		rationale = rctx.Rationale
		approved = rctx.Approval.Granted
	}

	g.book.Append(call.Identity, ledger.Input{
		ActorRole:     model.RoleBuilder,
		ActionClass:   actionClass,
		HumanApproval: approved,
		Rationale:     rationale,
	})

	if g.trail != nil {
		_ = g.trail.Record(audit.Entry{
			Identity:   call.Identity,
			AgentID:    agentID,
			ActionType: actionClass,
			ChargeID:   chargeID,
			Status:     string(status),
			Reasons:    reasons,
			PolicyHash: g.PolicyHash(),
		})
	}
}

// Enforce implements toolrt.EnforcementHook: the economic gate, the
// irreversibility classification, and the stewardship guard, in that
// order. The safety gate is not repeated here — the runtime runs it
// against the budget tracker itself.
func (g *Gateway) Enforce(ctx context.Context, identity string, rctx model.RuntimeContext) (bool, string, error) {
	g.mu.RLock()
	cfg := g.cfg
	econGate := g.econGate
	g.mu.RUnlock()

	ed, err := econGate.Enforce(identity, rctx, model.InitiatorAgent)
	if err != nil {
		return false, "", err
	}
	if !ed.Allowed {
		return false, ed.ReasonCode, nil
	}

	xd := stewardEvaluate(cfg, rctx)
	if xd.Status != model.StatusAllow {
		return false, stewardReason(xd.Reasons), nil
	}

	status, reasons := stewardGuard(g, identity, xd.Impact, rctx.Approval)
	if status != model.StatusAllow {
		return false, stewardReason(reasons), nil
	}

	return true, "", nil
}
