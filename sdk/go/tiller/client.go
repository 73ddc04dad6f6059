package tiller

import (
	"fmt"

	"github.com/tillerhq/tiller/internal/approval"
	"github.com/tillerhq/tiller/internal/audit"
	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/gateway"
	"github.com/tillerhq/tiller/internal/model"
)

// Client holds the governance pipeline for in-process enforcement.
// Thread-safe for concurrent tool calls.
type Client struct {
	cfg       clientConfig
	gw        *gateway.Gateway
	approvals *approval.Store
	trail     *audit.Trail
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{
		identity:  "default",
		initiator: string(model.InitiatorAgent),
	}
	for _, o := range opts {
		o(&cfg)
	}

	gcfg, hash, err := config.LoadWithHash(cfg.configPath)
	if err != nil {
		return nil, fmt.Errorf("tiller: load governance config: %w", err)
	}

	var trail *audit.Trail
	if cfg.trailPath != "" {
		trail, err = audit.Open(cfg.trailPath)
		if err != nil {
			return nil, fmt.Errorf("tiller: open decision trail: %w", err)
		}
	}

	dir := cfg.approvalDir
	if dir == "" {
		dir = approval.DefaultDir()
	}
	approvals, err := approval.NewStore(dir)
	if err != nil {
		if trail != nil {
			trail.Close()
		}
		return nil, fmt.Errorf("tiller: create approval store: %w", err)
	}

	return &Client{
		cfg:       cfg,
		gw:        gateway.New(gcfg, hash, gateway.Options{Trail: trail}),
		approvals: approvals,
		trail:     trail,
	}, nil
}

// Close closes the decision trail if one was opened.
func (c *Client) Close() error {
	if c.trail != nil {
		return c.trail.Close()
	}
	return nil
}

// Check runs the pipeline for an action without executing anything.
func (c *Client) Check(action Action) Result {
	rctx := toRuntimeContext(action)
	if a, err := c.approvals.Grant(rctx.ChargeID()); err == nil && a.Granted {
		rctx = rctx.WithApproval(a)
	}

	d := c.gw.EnforceRuntimeGovernance(c.cfg.identity, rctx, model.Initiator(c.cfg.initiator))
	return Result{
		Status:              Status(d.Status),
		Reasons:             d.Reasons,
		RequiresHumanReview: d.RequiresHumanReview,
		ChargeID:            rctx.ChargeID(),
		PolicyHash:          d.PolicyHash,
	}
}

// Usage returns the identity's recorded budget consumption.
func (c *Client) Usage() (costCents, tokens, sideEffects int64) {
	u := c.gw.Tracker().Usage(c.cfg.identity)
	return u.CostCents, u.Tokens, u.SideEffects
}
