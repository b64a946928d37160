package runtime

import (
	"context"
	"encoding/json"

	"github.com/corehost/agentcore/internal/domain"
	"github.com/corehost/agentcore/internal/herr"
	"github.com/corehost/agentcore/internal/toolregistry"
	"github.com/google/uuid"
)

// AgentResolver looks up an agent definition and its effective model by
// name, the way internal/agentmgr.Manager does. Declared locally (rather
// than importing agentmgr) to keep runtime free of a dependency on the
// manager's own settings/JSON-loading concerns.
type AgentResolver interface {
	Resolve(name string) (domain.AgentDefinition, string, bool)
}

// InvokeAgentArgs is the JSON shape InvokeAgent's tool schema accepts.
type InvokeAgentArgs struct {
	Agent  string `json:"agent"`
	Prompt string `json:"prompt"`
}

// InvokeAgentSchema is the JSON schema advertised for the InvokeAgent tool.
var InvokeAgentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"agent":  map[string]any{"type": "string"},
		"prompt": map[string]any{"type": "string"},
	},
	"required": []any{"agent", "prompt"},
}

type callerKey struct{}

// withCallerAgent records which agent's turn is in flight, so a single
// shared invoke_agent registration can look up the correct caller's
// allowed_agents at call time instead of one caller being baked in at
// registration (the registry has no concept of "registered per caller").
func withCallerAgent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, callerKey{}, name)
}

func callerAgent(ctx context.Context) string {
	name, _ := ctx.Value(callerKey{}).(string)
	return name
}

// RegisterInvokeAgent installs the InvokeAgent built-in tool (§4.4, §4.7)
// into registry, once, for every agent in the host. The calling agent is
// read back out of ctx (set by Turn) so resolver.Resolve determines which
// allowed_agents gate applies per call, rather than per registration.
// systemFor builds a child agent's system prompt the way the Controller
// does for a top-level turn.
func (r *Runtime) RegisterInvokeAgent(registry *toolregistry.Registry, resolver AgentResolver, systemFor func(domain.AgentDefinition) string) error {
	spec := domain.ToolSpec{
		Name:        "invoke_agent",
		Description: "Delegate a sub-task to another agent and return its final text response.",
		JSONSchema:  InvokeAgentSchema,
		Origin:      domain.BuiltinOrigin(),
	}

	invoke := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a InvokeAgentArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}

		caller, _, ok := resolver.Resolve(callerAgent(ctx))
		if !ok || !caller.AllowsAgent(a.Agent) {
			return nil, herr.New(herr.UserInput, "invoke_agent.not_allowed")
		}

		depth := nestingDepth(ctx)
		if depth >= r.cfg.MaxNestingDepth {
			return nil, herr.New(herr.UserInput, "invoke_agent.nesting_too_deep")
		}

		child, model, ok := resolver.Resolve(a.Agent)
		if !ok {
			return nil, herr.New(herr.UserInput, "invoke_agent.unknown_agent")
		}

		sectionID := uuid.NewString()
		r.bus.Publish(domain.StreamEvent{
			Kind:        domain.EventNestedAgentStarted,
			ParentAgent: caller.Name,
			ChildAgent:  child.Name,
			SectionID:   sectionID,
		})

		childCtx := WithNestingDepth(ctx, depth+1)
		childCtx = withCallerAgent(childCtx, child.Name)
		history := []domain.Message{{Role: domain.RoleUser, Parts: []domain.Part{domain.Text(a.Prompt)}}}
		toolSpecs := registry.List(toolregistry.ListFilter{AllowedToolNames: child.AllowedTools})

		result, err := r.Turn(childCtx, child.Name, model, history, systemFor(child), toolSpecs)

		r.bus.Publish(domain.StreamEvent{
			Kind:        domain.EventNestedAgentFinished,
			ParentAgent: caller.Name,
			ChildAgent:  child.Name,
			SectionID:   sectionID,
		})

		if err != nil {
			return nil, err
		}

		var reply string
		for i := len(result) - 1; i >= 0; i-- {
			if result[i].Role == domain.RoleAssistant {
				reply = result[i].TextContent()
				break
			}
		}
		payload, _ := json.Marshal(map[string]string{"response": reply})
		return payload, nil
	}

	return registry.Register(spec, invoke)
}
