package toolrt

import (
	"context"
	"fmt"
	"time"

	"github.com/tillerhq/tiller/internal/budget"
	"github.com/tillerhq/tiller/internal/cache"
	"github.com/tillerhq/tiller/internal/model"
	"github.com/tillerhq/tiller/internal/safety"
)

// DefaultTimeout bounds a tool execution when the call does not set one.
const DefaultTimeout = 30 * time.Second

// CacheRef attaches a cache context to a call. Nil means no caching.
type CacheRef struct {
	GoalID      string
	GoalVersion string
}

// Call is a strongly-typed request to a named tool.
type Call struct {
	Tool     string
	Identity string
	Tier     model.PermissionTier
	Impact   model.ImpactLevel
	Input    map[string]any
	Timeout  time.Duration
	Cache    *CacheRef

	// DisableUsageRecording skips the post-success budget charge.
	// The default (false) records usage.
	DisableUsageRecording bool
}

// Result is the terminal outcome of an invocation. Once returned it is
// never revised.
type Result struct {
	Success   bool              `json:"success"`
	Output    map[string]any    `json:"output,omitempty"`
	Failure   model.FailureType `json:"failure,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Retryable bool              `json:"retryable"`
	Cached    bool              `json:"cached"`
	Duration  time.Duration     `json:"duration"`
}

// AgentDirectory answers whether an agent is registered.
type AgentDirectory interface {
	IsRegistered(agentID string) bool
}

// EnforcementHook is an optional external governance check consulted after
// structural validation and before the safety gate. Returning an error
// fails closed.
type EnforcementHook interface {
	Enforce(ctx context.Context, identity string, rctx model.RuntimeContext) (allowed bool, reason string, err error)
}

// Runtime executes validated tool calls under governance.
type Runtime struct {
	registry *Registry
	agents   AgentDirectory
	tracker  *budget.Tracker
	cache    *cache.Store
	hook     EnforcementHook
}

// NewRuntime creates a runtime. cache and hook may be nil.
func NewRuntime(registry *Registry, agents AgentDirectory, tracker *budget.Tracker, cacheStore *cache.Store, hook EnforcementHook) *Runtime {
	return &Runtime{
		registry: registry,
		agents:   agents,
		tracker:  tracker,
		cache:    cacheStore,
		hook:     hook,
	}
}

func failure(f model.FailureType, reason string) Result {
	return Result{Failure: f, Reason: reason, Retryable: f.Retryable()}
}

// Invoke validates and executes one tool call. It never returns an error:
// all failure paths produce a classified Result.
//
// Validation order (first failure short-circuits): call shape → tool name →
// tier allowed by tool → governance context present → domain/decision-type
// present → agent registered → tool domain vs context domain → context tier
// vs call tier → declared impact vs tool impact → input contract. Then the
// external enforcement hook, then the safety gate, then the cache, then the
// guarded execution with a timeout.
func (r *Runtime) Invoke(ctx context.Context, tool *Tool, call Call, gctx *model.RuntimeContext) Result {
	if tool == nil || call.Tool == "" || call.Identity == "" {
		return failure(model.FailureSchemaValidation, "call shape invalid: tool and identity are required")
	}
	if call.Tool != tool.Name() {
		return failure(model.FailureSchemaValidation, fmt.Sprintf("call names tool %q but %q was resolved", call.Tool, tool.Name()))
	}
	if !tool.AllowsTier(call.Tier) {
		return failure(model.FailurePermissionDenied, fmt.Sprintf("tool %q does not admit tier %q", tool.Name(), call.Tier))
	}
	if gctx == nil {
		return failure(model.FailurePolicyBlocked, model.ReasonContextMissing)
	}
	if gctx.Domain == "" || gctx.DecisionType == "" {
		return failure(model.FailurePolicyBlocked, "governance context incomplete: domain and decision type required")
	}
	if r.agents == nil || !r.agents.IsRegistered(gctx.AgentID) {
		return failure(model.FailurePermissionDenied, fmt.Sprintf("agent %q is not registered", gctx.AgentID))
	}
	if tool.Domain() != "" && tool.Domain() != gctx.Domain {
		return failure(model.FailurePolicyBlocked, fmt.Sprintf("tool domain %q does not match context domain %q", tool.Domain(), gctx.Domain))
	}
	if gctx.PermissionTier != call.Tier {
		return failure(model.FailurePermissionDenied, fmt.Sprintf("context tier %q does not match call tier %q", gctx.PermissionTier, call.Tier))
	}
	if call.Impact != tool.Impact() {
		return failure(model.FailurePolicyBlocked, model.ReasonImpactMismatch)
	}
	if err := tool.ValidateInput(call.Input); err != nil {
		return failure(model.FailureSchemaValidation, fmt.Sprintf("input contract: %v", err))
	}

	if r.hook != nil {
		allowed, reason, err := r.hook.Enforce(ctx, call.Identity, *gctx)
		if err != nil {
			return failure(model.FailurePolicyBlocked, fmt.Sprintf("enforcement error (fail closed): %v", err))
		}
		if !allowed {
			return failure(model.FailurePolicyBlocked, reason)
		}
	}

	sd := safety.Evaluate(safety.Request{
		PermissionTier:  call.Tier,
		Impact:          call.Impact,
		EstimatedCost:   gctx.EstimatedCostCents,
		EstimatedTokens: gctx.EstimatedTokens,
		SideEffects:     gctx.SideEffects,
		Approval:        gctx.Approval,
		Live:            true,
	}, r.tracker.Usage(call.Identity), r.tracker.Limits())
	if !sd.Allowed {
		switch sd.ReasonCode {
		case model.ReasonTierInsufficient:
			return failure(model.FailurePermissionDenied, sd.Reason)
		case model.ReasonApprovalRequired:
			return failure(model.FailurePolicyBlocked, sd.Reason)
		default:
			return failure(model.FailureBudgetExceeded, sd.Reason)
		}
	}

	class := cache.Classification{
		Impact:      call.Impact,
		Novelty:     gctx.Novelty,
		Exploration: gctx.Exploration,
	}

	var key cache.Key
	cacheable := false
	if r.cache != nil && call.Cache != nil && r.cache.Policy().Evaluate(class).Allowed {
		hash, err := cache.HashInput(call.Input)
		if err != nil {
			return failure(model.FailureSchemaValidation, fmt.Sprintf("input not hashable: %v", err))
		}
		key = cache.Key{
			Kind:        "tool_output",
			TaskType:    tool.TaskType(),
			GoalID:      call.Cache.GoalID,
			GoalVersion: call.Cache.GoalVersion,
			InputHash:   hash,
		}
		cacheable = true

		// A validated hit short-circuits execution: zero additional cost.
		if entry, ok := r.cache.Get(call.Identity, key); ok {
			return Result{Success: true, Output: entry.Payload, Cached: true}
		}
	}

	output, res := r.execute(ctx, tool, call)
	if res.Failure != "" {
		return res
	}

	if err := tool.ValidateOutput(output); err != nil {
		dur := res.Duration
		res = failure(model.FailureSchemaValidation, fmt.Sprintf("output contract: %v", err))
		res.Duration = dur
		return res
	}

	if cacheable {
		// Policy is re-evaluated inside Put: context may have changed
		// between lookup and write.
		r.cache.Put(call.Identity, key, output, class)
	}

	if !call.DisableUsageRecording {
		r.tracker.Charge(call.Identity, gctx.EstimatedCostCents, gctx.EstimatedTokens, gctx.SideEffects)
	}

	res.Success = true
	res.Output = output
	return res
}

// execute races the guarded handler against the call's timeout. Timing out
// abandons the in-flight execution; any budget already consumed on the
// debit-before-execute path is intentionally not rolled back (fail closed).
func (r *Runtime) execute(ctx context.Context, tool *Tool, call Call) (map[string]any, Result) {
	timeout := call.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output map[string]any
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		out, err := tool.Execute(execCtx, newGuardToken(), call.Input)
		done <- outcome{output: out, err: err}
	}()

	select {
	case <-execCtx.Done():
		res := failure(model.FailureTimeout, fmt.Sprintf("tool %q timed out after %s", tool.Name(), timeout))
		res.Duration = time.Since(start)
		return nil, res
	case o := <-done:
		dur := time.Since(start)
		if o.err != nil {
			res := failure(model.FailureToolRuntime, o.err.Error())
			res.Duration = dur
			return nil, res
		}
		return o.output, Result{Duration: dur}
	}
}
