package tiller

import (
	"context"

	"github.com/tillerhq/tiller/internal/model"
)

// ToolFunc is the function signature that Wrap guards. The caller provides
// an Action describing the intended operation.
type ToolFunc func(ctx context.Context, action Action) (any, error)

// Wrap returns a new ToolFunc that runs the governance pipeline before
// calling fn. A held or blocked decision returns a *BlockedError without
// calling fn; a hold also opens an approval request keyed by the charge
// id, so a later Wrap call after human approval goes through.
func (c *Client) Wrap(fn ToolFunc) ToolFunc {
	return func(ctx context.Context, action Action) (any, error) {
		rctx := toRuntimeContext(action)
		if a, err := c.approvals.Grant(rctx.ChargeID()); err == nil && a.Granted {
			rctx = rctx.WithApproval(a)
		}

		d := c.gw.EnforceRuntimeGovernance(c.cfg.identity, rctx, model.Initiator(c.cfg.initiator))
		if d.Allowed {
			// Record actual consumption once the tool ran.
			out, err := fn(ctx, action)
			if err == nil {
				c.gw.Tracker().Charge(c.cfg.identity, action.CostCents, action.Tokens, action.SideEffects)
			}
			return out, err
		}

		if d.Status == model.StatusRequireApproval || d.Status == model.StatusSafeHold {
			c.approvals.Open(rctx.ChargeID(), c.cfg.identity, action.Type, action.Rationale)
		}

		return nil, &BlockedError{
			Action:   action,
			Status:   Status(d.Status),
			Reasons:  d.Reasons,
			ChargeID: rctx.ChargeID(),
		}
	}
}
