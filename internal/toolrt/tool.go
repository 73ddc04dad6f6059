// Package toolrt is the tool invocation runtime: contract validation,
// permission checks, cache consultation, and governed execution of
// registered tools. Invoke never returns an error — every failure path is
// a typed Result with a failure classification.
package toolrt

import (
	"context"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tillerhq/tiller/internal/model"
)

// Handler is the tool's own logic. It only ever runs inside a guard token
// issued by the runtime, which proves the call passed the validation order.
type Handler func(ctx context.Context, input map[string]any) (map[string]any, error)

// GuardToken proves a tool execution was routed through the runtime.
// Only the runtime can issue a usable token; the zero value is rejected.
type GuardToken struct {
	issued bool
}

func newGuardToken() GuardToken { return GuardToken{issued: true} }

// Spec declares a tool: its contracts, impact, and permission surface.
// Schemas are JSON Schema documents; empty means "any input/output".
type Spec struct {
	Name         string
	Domain       string // "" = usable in any domain
	Impact       model.ImpactLevel
	AllowedTiers []model.PermissionTier
	TaskType     string // cache key component; defaults to Name
	InputSchema  string
	OutputSchema string
	Handler      Handler
}

// Tool is a registered, compiled tool. The handler is unexported so tools
// cannot be executed except through Execute with a runtime-issued token.
type Tool struct {
	name         string
	domain       string
	impact       model.ImpactLevel
	allowedTiers []model.PermissionTier
	taskType     string
	inputSchema  *jsonschema.Schema
	outputSchema *jsonschema.Schema
	handler      Handler
}

// Name returns the tool's registered name.
func (t *Tool) Name() string { return t.name }

// Domain returns the tool's declared domain ("" for any).
func (t *Tool) Domain() string { return t.domain }

// Impact returns the tool's declared impact level.
func (t *Tool) Impact() model.ImpactLevel { return t.impact }

// TaskType returns the cache task-type component.
func (t *Tool) TaskType() string { return t.taskType }

// AllowsTier reports whether the tool admits the permission tier.
func (t *Tool) AllowsTier(tier model.PermissionTier) bool {
	for _, a := range t.allowedTiers {
		if a == tier {
			return true
		}
	}
	return false
}

// ValidateInput checks input against the tool's input contract.
func (t *Tool) ValidateInput(input map[string]any) error {
	if t.inputSchema == nil {
		return nil
	}
	return t.inputSchema.Validate(jsonValue(input))
}

// ValidateOutput checks output against the tool's output contract.
func (t *Tool) ValidateOutput(output map[string]any) error {
	if t.outputSchema == nil {
		return nil
	}
	return t.outputSchema.Validate(jsonValue(output))
}

// Execute runs the handler. It refuses tokens not issued by the runtime,
// which keeps the validation order impossible to bypass.
func (t *Tool) Execute(ctx context.Context, token GuardToken, input map[string]any) (map[string]any, error) {
	if !token.issued {
		return nil, fmt.Errorf("toolrt: tool %q executed outside the invocation runtime", t.name)
	}
	return t.handler(ctx, input)
}

// Registry maps tool names to compiled tools. It is constructor-injected
// into the runtime — never a module-level singleton — so tests can build
// isolated registries.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register compiles the spec's contracts and adds the tool.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("toolrt: register: tool name required")
	}
	if spec.Handler == nil {
		return fmt.Errorf("toolrt: register %q: handler required", spec.Name)
	}
	if !spec.Impact.Valid() {
		return fmt.Errorf("toolrt: register %q: invalid impact %q", spec.Name, spec.Impact)
	}
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("toolrt: register %q: already registered", spec.Name)
	}

	in, err := compileSchema(spec.Name+"/input", spec.InputSchema)
	if err != nil {
		return fmt.Errorf("toolrt: register %q: input contract: %w", spec.Name, err)
	}
	out, err := compileSchema(spec.Name+"/output", spec.OutputSchema)
	if err != nil {
		return fmt.Errorf("toolrt: register %q: output contract: %w", spec.Name, err)
	}

	taskType := spec.TaskType
	if taskType == "" {
		taskType = spec.Name
	}
	tiers := spec.AllowedTiers
	if len(tiers) == 0 {
		tiers = []model.PermissionTier{model.TierSuggest, model.TierExecute}
	}

	r.tools[spec.Name] = &Tool{
		name:         spec.Name,
		domain:       spec.Domain,
		impact:       spec.Impact,
		allowedTiers: tiers,
		taskType:     taskType,
		inputSchema:  in,
		outputSchema: out,
		handler:      spec.Handler,
	}
	return nil
}

// Lookup returns the tool by name, or nil.
func (r *Registry) Lookup(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

func compileSchema(name, doc string) (*jsonschema.Schema, error) {
	if doc == "" {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://tiller.schemas.local/tools/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// jsonValue normalizes a payload into the JSON value shapes the validator
// expects (maps, slices, float64, string, bool, nil).
func jsonValue(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return normalize(m)
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}
